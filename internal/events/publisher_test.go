package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gtingest/internal/ingest"
)

type fakeJS struct {
	msgs       []*nats.Msg
	publishErr error
	streams    []jetstream.StreamConfig
	streamErr  error
}

func (f *fakeJS) PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: DefaultStream, Sequence: uint64(len(f.msgs))}, nil
}

func (f *fakeJS) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.streams = append(f.streams, cfg)
	return nil, nil
}

func sampleEvent() ingest.CollateralChanged {
	rec := &ingest.Record{
		SystemID:      pgtype.Text{String: "ABC123", Valid: true},
		GuarantorName: pgtype.Text{String: "First Bank", Valid: true},
	}
	rec.ActualAmount, _ = ingest.ParseDecimal("1,000.00")
	return ingest.NewCollateralChanged(rec, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestPublisher_PublishEvent(t *testing.T) {
	js := &fakeJS{}
	p := NewPublisher(js, "")
	ev := sampleEvent()

	require.NoError(t, p.PublishEvent(context.Background(), ev))
	require.Len(t, js.msgs, 1)

	msg := js.msgs[0]
	assert.Equal(t, DefaultSubject, msg.Subject)
	assert.Equal(t, ev.EventID, msg.Header.Get(jetstream.MsgIDHeader))
	assert.Equal(t, ingest.CauseUnknown, msg.Header.Get(HeaderCausation))
	assert.Equal(t, EventTypeCollateralChanged, msg.Header.Get(HeaderEventType))
	assert.Equal(t, ingest.CollateralStreamType, msg.Header.Get(HeaderStreamType))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "ABC123", body["collateralKey"])
	assert.Equal(t, "First Bank", body["guarantorName"])
	assert.Equal(t, map[string]any{"type": "Collateral", "id": "ABC123"}, body["streamId"])
}

func TestPublisher_CustomSubjectAndError(t *testing.T) {
	js := &fakeJS{publishErr: errors.New("no responders")}
	p := NewPublisher(js, "collateral.test")

	err := p.PublishEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collateral.test")
	assert.ErrorIs(t, err, js.publishErr)
}

func TestEnsureStream(t *testing.T) {
	js := &fakeJS{}
	require.NoError(t, EnsureStream(context.Background(), js, DefaultStream, DefaultSubject))
	require.Len(t, js.streams, 1)
	assert.Equal(t, DefaultStream, js.streams[0].Name)
	assert.Equal(t, []string{DefaultSubject}, js.streams[0].Subjects)

	js.streamErr = errors.New("insufficient resources")
	assert.Error(t, EnsureStream(context.Background(), js, DefaultStream, DefaultSubject))
}
