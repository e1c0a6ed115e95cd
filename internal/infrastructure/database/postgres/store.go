// Package postgres implements the Document Store Gateway (C5) against a
// PostgreSQL-backed GORM handle, substituting for the logical schema's
// Oracle DSN (see DESIGN.md for the justification).
package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/domain/ports"
)

type store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) ports.Store {
	return &store{db: db}
}

// LoadEmission returns the newest row sharing the given FiscalDocumentId, or
// nil if none exists.
func (s *store) LoadEmission(ctx context.Context, id entity.FiscalDocumentId) (*entity.EmissionRecord, error) {
	var rec entity.EmissionRecord
	err := s.db.WithContext(ctx).
		Where("id_docfis = ?", int64(id)).
		Order("id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewStoreError("load emission", err)
	}
	return &rec, nil
}

func (s *store) LoadHeader(ctx context.Context, id entity.FiscalDocumentId) (*entity.DocumentHeader, error) {
	var hdr entity.DocumentHeader
	err := s.db.WithContext(ctx).
		Where("id_doc = ?", int64(id)).
		First(&hdr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewStoreError("load document header", err)
	}
	return &hdr, nil
}

// UpdateEmission applies a field-level, idempotent update to the newest
// emission row for id. Re-applying the same fields is harmless: this is a
// plain overwrite, not an increment.
func (s *store) UpdateEmission(ctx context.Context, id entity.FiscalDocumentId, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&entity.EmissionRecord{}).
		Where("id_docfis = ? AND id = (SELECT MAX(id) FROM tb_de_emissao WHERE id_docfis = ?)", int64(id), int64(id)).
		Updates(fields)
	if result.Error != nil {
		return errs.NewStoreError("update emission", result.Error)
	}
	return nil
}

func (s *store) UpdateHeader(ctx context.Context, id entity.FiscalDocumentId, code *int, description *string) error {
	fields := map[string]interface{}{}
	if code != nil {
		fields["cod_status"] = *code
	}
	if description != nil {
		fields["desc_status"] = *description
	}
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&entity.DocumentHeader{}).
		Where("id_doc = ?", int64(id)).
		Updates(fields)
	if result.Error != nil {
		return errs.NewStoreError("update document header", result.Error)
	}
	return nil
}
