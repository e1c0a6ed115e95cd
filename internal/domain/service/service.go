// Package service implements the Action Dispatcher and the submit/poll/cancel
// handlers (C7-C10): the orchestration layer that ties C1-C6 together into
// the document lifecycle.
package service

import (
	"context"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/domain/ports"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/cancelevent"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/qr"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/signer"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/soapclient"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/validator"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

// Decision is the dispatcher's verdict on a delivered broker message. It is
// the Go expression of the spec's ack/nack-without-requeue dichotomy; the
// broker is never asked to requeue synchronously.
type Decision int

const (
	Ack Decision = iota
	NackNoRequeue
)

// Endpoints carries the SIFEN URLs a handler needs; kept separate from
// *config.AppConfig so this package does not depend on the config package.
type Endpoints struct {
	SubmitURL       string
	QueryURL        string
	EventURL        string
	QRBaseURL       string
	MaxPollAttempts int
}

// Dispatcher is the Action Dispatcher (C7). It owns every collaborator a
// handler needs and centralises the ack/nack decision.
type Dispatcher struct {
	Store         ports.Store
	Scheduler     ports.Scheduler
	Materializer  credential.Materializer
	Signer        signer.Signer
	QR            qr.Generator
	CancelBuilder cancelevent.Builder
	SOAPClient    soapclient.Client
	Validator     validator.XMLValidator
	Endpoints     Endpoints
	Log           logger.Logger
}

func NewDispatcher(
	store ports.Store,
	scheduler ports.Scheduler,
	materializer credential.Materializer,
	sig signer.Signer,
	qrGen qr.Generator,
	cancelBuilder cancelevent.Builder,
	soap soapclient.Client,
	xsd validator.XMLValidator,
	endpoints Endpoints,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		Store:         store,
		Scheduler:     scheduler,
		Materializer:  materializer,
		Signer:        sig,
		QR:            qrGen,
		CancelBuilder: cancelBuilder,
		SOAPClient:    soap,
		Validator:     xsd,
		Endpoints:     endpoints,
		Log:           log,
	}
}

// Dispatch parses the broker body, loads the document rows, and routes to
// the matching handler. Per §4.7: a missing id, an unroutable action, or a
// vanished business object all ack-and-drop; a handler exception becomes
// nack-without-requeue; everything else is left to the handler's own
// ack/nack verdict.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) Decision {
	msg, err := entity.ParseActionMessage(body)
	if err != nil {
		if err == entity.ErrMissingID || err == entity.ErrUnknownAction {
			d.Log.Warn("dropping unroutable action message", logger.F("error", err.Error()))
			return Ack
		}
		d.Log.Error("failed to decode action message", logger.F("error", err.Error()))
		return NackNoRequeue
	}

	emission, err := d.Store.LoadEmission(ctx, msg.ID)
	if err != nil {
		d.Log.Error("failed to load emission", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	if emission == nil {
		d.Log.Warn("emission not found, dropping", logger.F("id", msg.ID))
		return Ack
	}

	header, err := d.Store.LoadHeader(ctx, msg.ID)
	if err != nil {
		d.Log.Error("failed to load header", logger.F("id", msg.ID), logger.F("error", err.Error()))
		return NackNoRequeue
	}
	if header == nil {
		d.Log.Warn("document header not found, dropping", logger.F("id", msg.ID))
		return Ack
	}

	switch msg.Kind {
	case entity.ActionSubmit:
		return d.handleSubmit(ctx, msg, emission)
	case entity.ActionPoll:
		return d.handlePoll(ctx, msg, emission)
	case entity.ActionCancel:
		return d.handleCancel(ctx, msg, emission)
	default:
		d.Log.Warn("unknown action kind, dropping", logger.F("id", msg.ID))
		return Ack
	}
}

// isTerminal reports whether a lifecycle code represents a resting state
// that should also be reflected on the external-facing DocumentHeader.
// "900" (awaiting poll / transient reprocessing) is the only non-terminal
// code this core produces.
func isTerminal(code string) bool {
	return code != entity.StatusAwaitingPoll
}
