// Package queue publishes canonical records to a Kafka topic.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Scheme is the URL scheme accepted by ParseURL.
const Scheme = "kafka"

// ErrInvalidURL is returned when the queue URL cannot be used.
var ErrInvalidURL = errors.New("invalid queue url")

// Destination is a parsed queue URL.
type Destination struct {
	Brokers []string
	Topic   string
}

// String renders the destination back into URL form.
func (d Destination) String() string {
	return Scheme + "://" + strings.Join(d.Brokers, ",") + "/" + d.Topic
}

// ParseURL parses kafka://host:port[,host:port...]/topic.
func ParseURL(raw string) (Destination, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), Scheme+"://")
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q: scheme must be %s://", ErrInvalidURL, raw, Scheme)
	}

	hosts, topic, _ := strings.Cut(rest, "/")
	topic = strings.Trim(topic, "/")
	if topic == "" {
		return Destination{}, fmt.Errorf("%w: %q: missing topic", ErrInvalidURL, raw)
	}
	if strings.Contains(topic, "/") {
		return Destination{}, fmt.Errorf("%w: %q: topic must be a single path segment", ErrInvalidURL, raw)
	}

	var brokers []string
	for _, h := range strings.Split(hosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.Contains(h, ":") {
			h += ":9092"
		}
		brokers = append(brokers, h)
	}
	if len(brokers) == 0 {
		return Destination{}, fmt.Errorf("%w: %q: no brokers", ErrInvalidURL, raw)
	}

	return Destination{Brokers: brokers, Topic: topic}, nil
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends one message per record. The message key is the record's
// system id so updates to one instrument stay on one partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	version string
	now     func() time.Time
}

// NewPublisher creates a publisher for dest. schemaVersion is sent as a
// message header so consumers can tell alias table revisions apart.
func NewPublisher(dest Destination, schemaVersion string) (*Publisher, error) {
	if len(dest.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(dest.Brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic:   dest.Topic,
		version: schemaVersion,
		now:     time.Now,
	}, nil
}

// Publish writes body to the topic and waits for all in-sync replicas.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte) error {
	msg := kafka.Message{
		Topic: p.topic,
		Value: body,
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "schema-version", Value: []byte(p.version)},
		},
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending writes and releases connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
