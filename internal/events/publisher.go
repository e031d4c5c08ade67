// Package events publishes and consumes CollateralChanged events on NATS
// JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

// DefaultSubject is the subject CollateralChanged events are published on.
const DefaultSubject = "collateral.changed"

// DefaultStream is the JetStream stream capturing the event subject.
const DefaultStream = "COLLATERAL"

// Header names set on every event message.
const (
	HeaderCausation  = "Causation"
	HeaderEventType  = "Event-Type"
	HeaderStreamType = "Stream-Type"
)

// EventTypeCollateralChanged is the Event-Type header value.
const EventTypeCollateralChanged = "CollateralChanged"

// streamPublisher is the subset of jetstream.JetStream used for publishing.
type streamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// streamManager creates the stream on startup.
type streamManager interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// Publisher implements ingest.EventPublisher.
type Publisher struct {
	js      streamPublisher
	subject string
}

// NewPublisher returns a publisher sending to subject. An empty subject
// selects DefaultSubject.
func NewPublisher(js streamPublisher, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{js: js, subject: subject}
}

// EnsureStream creates or updates the stream that stores the event subject.
func EnsureStream(ctx context.Context, js streamManager, stream, subject string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	return nil
}

// PublishEvent sends ev and waits for the stream acknowledgment. The event
// id doubles as the JetStream message id, so a retried publish of the same
// event is deduplicated by the server.
func (p *Publisher) PublishEvent(ctx context.Context, ev ingest.CollateralChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(jetstream.MsgIDHeader, ev.EventID)
	msg.Header.Set(HeaderCausation, ev.Causation)
	msg.Header.Set(HeaderEventType, EventTypeCollateralChanged)
	msg.Header.Set(HeaderStreamType, ev.StreamID.Type)

	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish event %s to %s: %w", ev.EventID, p.subject, err)
	}
	return nil
}
