// Package validator implements the Schema Validator (C14): validating
// SIFEN document and event XML against the official XSD set before signing
// and before submission.
package validator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	xsdvalidate "github.com/terminalstatic/go-xsd-validate"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

// XMLValidator enforces compliance of SIFEN XML against its XSD set.
type XMLValidator interface {
	Validate(ctx context.Context, xmlData []byte, schemaName string) error
	ValidateDocument(ctx context.Context, xmlData []byte) error
	ValidateEvent(ctx context.Context, xmlData []byte) error
	DownloadSifenSchemas(ctx context.Context) error
}

type xmlValidator struct {
	schemasDir string
	schemas    map[string]*xsdvalidate.XsdHandler
	mu         sync.RWMutex
	httpClient *http.Client
}

// NewXMLValidator creates a validator rooted at schemasDir, creating the
// directory if absent.
func NewXMLValidator(schemasDir string) (XMLValidator, error) {
	v := &xmlValidator{
		schemasDir: schemasDir,
		schemas:    make(map[string]*xsdvalidate.XsdHandler),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if err := os.MkdirAll(schemasDir, 0o755); err != nil {
		return nil, errs.NewConfigError("create schemas directory", err)
	}
	return v, nil
}

func (v *xmlValidator) Validate(ctx context.Context, xmlData []byte, schemaName string) error {
	handler, err := v.getSchema(schemaName)
	if err != nil {
		return errs.NewMalformedDocumentError(fmt.Sprintf("load schema %s", schemaName), err)
	}
	if err := handler.ValidateMem(xmlData, xsdvalidate.ValidErrDefault); err != nil {
		return errs.NewMalformedDocumentError(fmt.Sprintf("XML does not conform to %s", schemaName), err)
	}
	return nil
}

func (v *xmlValidator) getSchema(schemaName string) (*xsdvalidate.XsdHandler, error) {
	v.mu.RLock()
	if handler, ok := v.schemas[schemaName]; ok {
		v.mu.RUnlock()
		return handler, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if handler, ok := v.schemas[schemaName]; ok {
		return handler, nil
	}

	schemaPath := filepath.Join(v.schemasDir, schemaName+".xsd")
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("schema file not found: %s", schemaPath)
	}
	handler, err := xsdvalidate.NewXsdHandlerUrl(schemaPath, xsdvalidate.ParsErrDefault)
	if err != nil {
		return nil, err
	}
	v.schemas[schemaName] = handler
	return handler, nil
}

// ValidateDocument validates an unsigned or signed <DE> document against the
// SIFEN document reception schema (siRecepDE_v150).
func (v *xmlValidator) ValidateDocument(ctx context.Context, xmlData []byte) error {
	return v.Validate(ctx, xmlData, "siRecepDE_v150")
}

// ValidateEvent validates a cancellation event fragment against the SIFEN
// event reception schema.
func (v *xmlValidator) ValidateEvent(ctx context.Context, xmlData []byte) error {
	return v.Validate(ctx, xmlData, "siRecepEvento_v150")
}

// DownloadSifenSchemas fetches the SIFEN XSD set used above. Grounded on the
// same "fetch once, cache locally" approach used for the sibling ecosystem's
// official schema downloads.
func (v *xmlValidator) DownloadSifenSchemas(ctx context.Context) error {
	schemas := map[string]string{
		"siRecepDE_v150.xsd":     "https://ekuatia.set.gov.py/sifen/xsd/siRecepDE_v150.xsd",
		"siRecepEvento_v150.xsd": "https://ekuatia.set.gov.py/sifen/xsd/siRecepEvento_v150.xsd",
		"siRecepLoteDE_v150.xsd": "https://ekuatia.set.gov.py/sifen/xsd/siRecepLoteDE_v150.xsd",
		"siConsLoteDE_v150.xsd":  "https://ekuatia.set.gov.py/sifen/xsd/siConsLoteDE_v150.xsd",
	}
	for name, url := range schemas {
		if err := v.downloadSchema(ctx, name, url); err != nil {
			return fmt.Errorf("download schema %s: %w", name, err)
		}
	}
	v.mu.Lock()
	v.schemas = make(map[string]*xsdvalidate.XsdHandler)
	v.mu.Unlock()
	return nil
}

func (v *xmlValidator) downloadSchema(ctx context.Context, name, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d downloading schema", resp.StatusCode)
	}
	file, err := os.Create(filepath.Join(v.schemasDir, name))
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, resp.Body)
	return err
}
