package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSinkPanic wraps a panic recovered from a sink dispatch.
var ErrSinkPanic = errors.New("sink panicked")

// dispatch runs fn under its own deadline and converts a panic into an error,
// so one misbehaving sink cannot take down the row loop.
//
// The deadline is carried by the context passed to fn; sinks must honor it.
func dispatch(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()

	return fn(ctx)
}

// sinkOutcome is the result of one dispatch for one row.
type sinkOutcome struct {
	Sink string
	Err  error
}

// fanOut sends rec to every configured sink in fixed order: queue, store,
// event. Every sink is attempted regardless of earlier failures.
func (p *Pipeline) fanOut(ctx context.Context, rec *Record) []sinkOutcome {
	out := make([]sinkOutcome, 0, 3)

	if p.queue != nil {
		out = append(out, sinkOutcome{SinkQueue, dispatch(ctx, p.opts.SinkTimeout, func(ctx context.Context) error {
			return p.publishRecord(ctx, rec)
		})})
	}
	if p.store != nil {
		out = append(out, sinkOutcome{SinkStore, dispatch(ctx, p.opts.SinkTimeout, func(ctx context.Context) error {
			return p.storeRecord(ctx, rec)
		})})
	}
	if p.events != nil {
		out = append(out, sinkOutcome{SinkEvent, dispatch(ctx, p.opts.SinkTimeout, func(ctx context.Context) error {
			return p.events.PublishEvent(ctx, NewCollateralChanged(rec, p.opts.Clock()))
		})})
	}

	return out
}
