package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

// DefaultConsumer is the durable name of the logging consumer.
const DefaultConsumer = "gtingest-event-log"

// consumerFactory is the subset of jetstream.JetStream used to attach a consumer.
type consumerFactory interface {
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// Consumer logs every CollateralChanged event it receives. It gives
// operators a live view of what the pipeline emitted.
type Consumer struct {
	js      consumerFactory
	stream  string
	subject string
	durable string
	log     *slog.Logger

	cc jetstream.ConsumeContext
}

// NewConsumer creates a consumer; call Start to begin receiving.
func NewConsumer(js consumerFactory, stream, subject string, log *slog.Logger) *Consumer {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		js:      js,
		stream:  stream,
		subject: subject,
		durable: DefaultConsumer,
		log:     log.With("component", "event_consumer"),
	}
}

// Start attaches a durable consumer and processes messages in the background
// until Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.stream, jetstream.ConsumerConfig{
		Durable:       c.durable,
		FilterSubject: c.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s on %s: %w", c.durable, c.stream, err)
	}

	cc, err := cons.Consume(c.handle)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.subject, err)
	}
	c.cc = cc

	c.log.Info("event consumer started", "stream", c.stream, "subject", c.subject)
	return nil
}

// Stop ends consumption.
func (c *Consumer) Stop() {
	if c.cc != nil {
		c.cc.Stop()
		c.cc = nil
	}
}

// handle decodes and logs one message. Undecodable messages are terminated
// so they are not redelivered forever.
func (c *Consumer) handle(msg jetstream.Msg) {
	var ev ingest.CollateralChanged
	if err := json.Unmarshal(msg.Data(), &ev); err != nil {
		c.log.Warn("undecodable event", "subject", msg.Subject(), "error", err)
		if err := msg.Term(); err != nil {
			c.log.Debug("term failed", "error", err)
		}
		return
	}

	c.log.Info("collateral changed",
		"event_id", ev.EventID,
		"collateral_key", ev.CollateralKey,
		"changed_time", ev.ChangedTime,
		"guarantor_name", ev.GuarantorName.String,
		"actual_amount", ingest.FormatDecimal(ev.ActualAmount),
		"causation", msg.Headers().Get(HeaderCausation),
	)

	if err := msg.Ack(); err != nil {
		c.log.Warn("ack failed", "event_id", ev.EventID, "error", err)
	}
}
