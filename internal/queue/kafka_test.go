package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Destination
		wantErr bool
	}{
		{
			name: "single broker",
			raw:  "kafka://localhost:9092/guarantees",
			want: Destination{Brokers: []string{"localhost:9092"}, Topic: "guarantees"},
		},
		{
			name: "several brokers and default port",
			raw:  "kafka://k1:9093, k2 ,k3:9094/collateral.raw",
			want: Destination{Brokers: []string{"k1:9093", "k2:9092", "k3:9094"}, Topic: "collateral.raw"},
		},
		{
			name: "trailing slash",
			raw:  "kafka://k1:9092/topic/",
			want: Destination{Brokers: []string{"k1:9092"}, Topic: "topic"},
		},
		{name: "wrong scheme", raw: "sqs://queue/topic", wantErr: true},
		{name: "missing topic", raw: "kafka://k1:9092", wantErr: true},
		{name: "empty topic", raw: "kafka://k1:9092/", wantErr: true},
		{name: "no brokers", raw: "kafka:///topic", wantErr: true},
		{name: "nested topic", raw: "kafka://k1/a/b", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestination_String(t *testing.T) {
	d := Destination{Brokers: []string{"a:1", "b:2"}, Topic: "t"}
	assert.Equal(t, "kafka://a:1,b:2/t", d.String())

	parsed, err := ParseURL(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &Publisher{writer: w, topic: "guarantees", version: "2024.1", now: func() time.Time { return fixed }}

	require.NoError(t, p.Publish(context.Background(), "ABC123", []byte(`{"gtiSystemId":"ABC123"}`)))
	require.NoError(t, p.Publish(context.Background(), "", []byte(`{}`)))

	require.Len(t, w.msgs, 2)
	msg := w.msgs[0]
	assert.Equal(t, "guarantees", msg.Topic)
	assert.Equal(t, []byte("ABC123"), msg.Key)
	assert.Equal(t, fixed, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "schema-version", Value: []byte("2024.1")})
	assert.Nil(t, w.msgs[1].Key, "records without identity are published without a key")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: w, topic: "guarantees", now: time.Now}

	err := p.Publish(context.Background(), "k", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guarantees")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewPublisher(Destination{Topic: "t"}, "v")
	assert.Error(t, err)

	p, err := NewPublisher(Destination{Brokers: []string{"localhost:9092"}, Topic: "t"}, "v")
	require.NoError(t, err)
	assert.NotNil(t, p)
}
