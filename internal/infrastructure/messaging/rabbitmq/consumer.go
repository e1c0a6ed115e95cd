package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscar-duarte/sifen-worker/internal/domain/service"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

// Consumer drives the main queue at prefetch=1, routing each delivery
// through the Dispatcher and translating its verdict into the matching
// broker acknowledgement. The broker is never used as a synchronous retry
// queue: NackNoRequeue means an operator must intervene, not that the
// broker should redeliver.
type Consumer struct {
	channel    *amqp.Channel
	mainQueue  string
	dispatcher *service.Dispatcher
	log        logger.Logger
}

func NewConsumer(channel *amqp.Channel, mainQueue string, dispatcher *service.Dispatcher, log logger.Logger) *Consumer {
	return &Consumer{channel: channel, mainQueue: mainQueue, dispatcher: dispatcher, log: log}
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.mainQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", c.mainQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	decision := c.dispatcher.Dispatch(ctx, d.Body)
	switch decision {
	case service.Ack:
		if err := d.Ack(false); err != nil {
			c.log.Error("failed to ack delivery", logger.F("error", err.Error()))
		}
	case service.NackNoRequeue:
		if err := d.Nack(false, false); err != nil {
			c.log.Error("failed to nack delivery", logger.F("error", err.Error()))
		}
	}
}
