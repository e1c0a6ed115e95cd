package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/domain/ports"
)

const minCancelReasonLength = 5

// ErrReasonTooShort is the sentinel for the cancellation reason length
// guard, mirroring the ValueError original_source/publisher.py raises for
// the same condition. Callers distinguish it (e.g. the HTTP shim maps it to
// 422) with errors.Is.
var ErrReasonTooShort = errs.NewMalformedDocumentError(
	fmt.Sprintf("cancellation reason must be at least %d characters", minCancelReasonLength), nil)

// publisher implements ports.Publisher by publishing action messages to the
// main queue, matching the external JSON schema.
type publisher struct {
	channel   *amqp.Channel
	mainQueue string
}

// NewPublisher wraps an already-open channel. Topology must already be
// declared on this connection via Declare.
func NewPublisher(channel *amqp.Channel, mainQueue string) ports.Publisher {
	return &publisher{channel: channel, mainQueue: mainQueue}
}

func (p *publisher) Submit(ctx context.Context, id entity.FiscalDocumentId) error {
	body, err := entity.MarshalSubmit(id)
	if err != nil {
		return errs.NewTransportError("marshal submit message", err)
	}
	return p.publish(ctx, body)
}

func (p *publisher) Poll(ctx context.Context, id entity.FiscalDocumentId) error {
	body, err := entity.MarshalPoll(id, 1)
	if err != nil {
		return errs.NewTransportError("marshal poll message", err)
	}
	return p.publish(ctx, body)
}

func (p *publisher) Cancel(ctx context.Context, id entity.FiscalDocumentId, reason string) error {
	if len(reason) < minCancelReasonLength {
		return ErrReasonTooShort
	}
	body, err := entity.MarshalCancel(id, reason)
	if err != nil {
		return errs.NewTransportError("marshal cancel message", err)
	}
	return p.publish(ctx, body)
}

func (p *publisher) publish(ctx context.Context, body []byte) error {
	err := p.channel.PublishWithContext(ctx,
		"",
		p.mainQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return errs.NewTransportError("publish action message", err)
	}
	return nil
}
