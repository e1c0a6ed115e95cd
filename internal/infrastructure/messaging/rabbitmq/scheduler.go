package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
	"github.com/oscar-duarte/sifen-worker/internal/domain/ports"
)

// scheduler publishes poll retries to the TTL delay queue so they land back
// on the main queue after DelayTTLMs once the broker dead-letters them.
type scheduler struct {
	channel    *amqp.Channel
	delayQueue string
}

func NewScheduler(channel *amqp.Channel, delayQueue string) ports.Scheduler {
	return &scheduler{channel: channel, delayQueue: delayQueue}
}

func (s *scheduler) SchedulePoll(ctx context.Context, id entity.FiscalDocumentId, attempts int) error {
	body, err := entity.MarshalPoll(id, attempts)
	if err != nil {
		return errs.NewTransportError("marshal poll retry message", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"", // default exchange: routing key addresses the queue directly
		s.delayQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return errs.NewTransportError("publish poll retry to delay queue", err)
	}
	return nil
}
