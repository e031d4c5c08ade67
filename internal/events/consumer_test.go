package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	jetstream.Msg
	data    []byte
	headers nats.Header
	acked   bool
	termed  bool
}

func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Headers() nats.Header { return m.headers }
func (m *fakeMsg) Subject() string      { return DefaultSubject }
func (m *fakeMsg) Ack() error           { m.acked = true; return nil }
func (m *fakeMsg) Term() error          { m.termed = true; return nil }

type fakeConsumeContext struct {
	jetstream.ConsumeContext
	stopped bool
}

func (c *fakeConsumeContext) Stop() { c.stopped = true }

type fakeConsumer struct {
	jetstream.Consumer
	handler jetstream.MessageHandler
	cc      *fakeConsumeContext
}

func (c *fakeConsumer) Consume(handler jetstream.MessageHandler, opts ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	c.handler = handler
	return c.cc, nil
}

type fakeFactory struct {
	cfg      jetstream.ConsumerConfig
	stream   string
	consumer *fakeConsumer
	err      error
}

func (f *fakeFactory) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.stream, f.cfg = stream, cfg
	return f.consumer, nil
}

func TestConsumer_StartHandleStop(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	factory := &fakeFactory{consumer: &fakeConsumer{cc: &fakeConsumeContext{}}}
	c := NewConsumer(factory, DefaultStream, "", log)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, DefaultStream, factory.stream)
	assert.Equal(t, DefaultSubject, factory.cfg.FilterSubject)
	assert.Equal(t, DefaultConsumer, factory.cfg.Durable)
	require.NotNil(t, factory.consumer.handler)

	ev := sampleEvent()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	hdr := nats.Header{}
	hdr.Set(HeaderCausation, ev.Causation)
	msg := &fakeMsg{data: data, headers: hdr}

	factory.consumer.handler(msg)

	assert.True(t, msg.acked)
	assert.Contains(t, logs.String(), `"collateral_key":"ABC123"`)
	assert.Contains(t, logs.String(), `"actual_amount":"1000.00"`)

	c.Stop()
	assert.True(t, factory.consumer.cc.stopped)
}

func TestConsumer_UndecodableMessageTerminated(t *testing.T) {
	c := NewConsumer(&fakeFactory{}, DefaultStream, "", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	msg := &fakeMsg{data: []byte("not json"), headers: nats.Header{}}
	c.handle(msg)

	assert.True(t, msg.termed)
	assert.False(t, msg.acked)
}

func TestConsumer_StartError(t *testing.T) {
	c := NewConsumer(&fakeFactory{err: errors.New("stream not found")}, "MISSING", "", nil)
	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")

	assert.NotPanics(t, c.Stop)
}
