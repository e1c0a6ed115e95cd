// Package rabbitmq implements the Delay-Requeue Scheduler (C6): broker
// topology declaration, the main-queue consumer, the delay-queue scheduler,
// and the publisher used by the HTTP shim.
package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscar-duarte/sifen-worker/internal/domain/errs"
)

// Topology names the exchanges and queues of the delay-requeue scheme.
type Topology struct {
	MainQueue       string
	DelayQueue      string
	DLXExchange     string
	DelayRoutingKey string
	DelayTTLMs      int
	PrefetchCount   int
}

// Declare sets up the DLX exchange, the main queue bound to it, and the
// TTL delay queue whose dead-letter exchange is the DLX, so expired messages
// are routed back to the main queue. Order matters: the DLX must exist
// before the main queue binds to it.
func Declare(ch *amqp.Channel, top Topology) error {
	if err := ch.ExchangeDeclare(
		top.DLXExchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return errs.NewTransportError("declare DLX exchange", err)
	}

	if _, err := ch.QueueDeclare(
		top.MainQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return errs.NewTransportError("declare main queue", err)
	}

	if err := ch.QueueBind(
		top.MainQueue,
		top.DelayRoutingKey,
		top.DLXExchange,
		false,
		nil,
	); err != nil {
		return errs.NewTransportError("bind main queue to DLX", err)
	}

	if _, err := ch.QueueDeclare(
		top.DelayQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl":             int32(top.DelayTTLMs),
			"x-dead-letter-exchange":    top.DLXExchange,
			"x-dead-letter-routing-key": top.DelayRoutingKey,
		},
	); err != nil {
		return errs.NewTransportError("declare delay queue", err)
	}

	if err := ch.Qos(top.PrefetchCount, 0, false); err != nil {
		return errs.NewTransportError("set QoS prefetch", err)
	}

	return nil
}
