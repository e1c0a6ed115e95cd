// Package ports defines the boundaries the document lifecycle engine depends
// on without caring about their concrete implementation: persistence,
// deferred delivery, and outward publishing.
package ports

import (
	"context"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
)

// Store is the Document Store Gateway (C5). Implementations must return the
// newest row when several EmissionRecords share a FiscalDocumentId, and must
// apply updates as single-row, auto-commit writes.
type Store interface {
	LoadEmission(ctx context.Context, id entity.FiscalDocumentId) (*entity.EmissionRecord, error)
	LoadHeader(ctx context.Context, id entity.FiscalDocumentId) (*entity.DocumentHeader, error)
	UpdateEmission(ctx context.Context, id entity.FiscalDocumentId, fields map[string]interface{}) error
	UpdateHeader(ctx context.Context, id entity.FiscalDocumentId, code *int, description *string) error
}

// Scheduler is the Delay-Requeue Scheduler (C6). SchedulePoll publishes a
// persistent message to the delay queue; it dead-letters into the main
// queue after the configured TTL.
type Scheduler interface {
	SchedulePoll(ctx context.Context, id entity.FiscalDocumentId, attempts int) error
}

// Publisher is the outward-facing half of the Publisher API (§6): the
// operations an upstream system invokes to inject work into the main queue.
// Unlike Scheduler, these publish directly to the main queue with no delay.
type Publisher interface {
	Submit(ctx context.Context, id entity.FiscalDocumentId) error
	Poll(ctx context.Context, id entity.FiscalDocumentId) error
	Cancel(ctx context.Context, id entity.FiscalDocumentId, reason string) error
}
