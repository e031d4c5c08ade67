package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// DefaultSinkTimeout bounds a single sink dispatch when no timeout is configured.
const DefaultSinkTimeout = 10 * time.Second

// Recorder receives pipeline measurements. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	RowProcessed()
	MalformedRow()
	UnparseableCell(field string)
	SinkDispatched(sink string, err error)
	FileFinished(state FileState, bytesRead int64, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RowProcessed()                                {}
func (nopRecorder) MalformedRow()                                {}
func (nopRecorder) UnparseableCell(string)                       {}
func (nopRecorder) SinkDispatched(string, error)                 {}
func (nopRecorder) FileFinished(FileState, int64, time.Duration) {}

// Options tune a Pipeline. Zero values are replaced by defaults.
type Options struct {
	SinkTimeout     time.Duration
	MissingIDPolicy MissingIDPolicy
	SentinelKey     string
	VerifyKey       string // looked up in the store after every batch when set
	Recorder        Recorder
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Option mutates Options.
type Option func(*Options)

func WithSinkTimeout(d time.Duration) Option { return func(o *Options) { o.SinkTimeout = d } }

func WithMissingIDPolicy(p MissingIDPolicy, sentinel string) Option {
	return func(o *Options) {
		o.MissingIDPolicy = p
		o.SentinelKey = sentinel
	}
}

func WithVerifyKey(key string) Option       { return func(o *Options) { o.VerifyKey = key } }
func WithRecorder(r Recorder) Option        { return func(o *Options) { o.Recorder = r } }
func WithLogger(l *slog.Logger) Option      { return func(o *Options) { o.Logger = l } }
func WithClock(now func() time.Time) Option { return func(o *Options) { o.Clock = now } }

// Pipeline reads CSV files, maps every data row to a Record and fans it out
// to the queue, the store and the event bus.
//
// A Pipeline processes one batch at a time on the calling goroutine. Rows are
// handled in file order and the three dispatches of a row run sequentially.
// Nil sinks are skipped.
type Pipeline struct {
	mapper *Mapper
	queue  QueuePublisher
	store  RecordStore
	events EventPublisher
	opts   Options
}

// NewPipeline creates a Pipeline.
func NewPipeline(mapper *Mapper, queue QueuePublisher, store RecordStore, events EventPublisher, opts ...Option) *Pipeline {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.SinkTimeout <= 0 {
		o.SinkTimeout = DefaultSinkTimeout
	}
	if o.MissingIDPolicy == "" {
		o.MissingIDPolicy = MissingIDSkip
	}
	if o.SentinelKey == "" {
		o.SentinelKey = DefaultSentinelKey
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}

	return &Pipeline{
		mapper: mapper,
		queue:  queue,
		store:  store,
		events: events,
		opts:   o,
	}
}

/* ----------------------------------------
	Batch
---------------------------------------- */

// RunBatch processes keys in order. When keys is empty every object the
// source lists is processed.
//
// A file that cannot be opened or read fails on its own; the remaining files
// still run. The returned error joins every file-level failure and is nil
// when all files reached the done state. The result is always populated.
func (p *Pipeline) RunBatch(ctx context.Context, src Source, keys []string) (BatchResult, error) {
	start := p.opts.Clock()
	batch := BatchResult{
		BatchID:      uuid.NewString(),
		SinkFailures: map[string]int{},
	}
	log := p.opts.Logger.With("batch_id", batch.BatchID)

	if len(keys) == 0 {
		listed, err := src.List(ctx)
		if err != nil {
			batch.Duration = p.opts.Clock().Sub(start)
			return batch, fmt.Errorf("list source objects: %w", err)
		}
		keys = listed
	}

	log.Info("batch started", "files", len(keys))

	var errs []error
	for _, key := range keys {
		res, err := p.runFile(ctx, src, key)
		if err != nil {
			errs = append(errs, err)
		}

		batch.Files = append(batch.Files, res)
		batch.Rows += res.Rows
		if res.Failed() {
			batch.FailedFiles++
		}
		for sink, n := range res.SinkFailures {
			batch.SinkFailures[sink] += n
		}
	}

	batch.Verification = p.verify(ctx, log)
	batch.Duration = p.opts.Clock().Sub(start)

	log.Info("batch finished",
		"files", len(batch.Files),
		"failed_files", batch.FailedFiles,
		"rows", batch.Rows,
		"sink_failures", batch.SinkFailures,
		"duration", batch.Duration,
	)

	return batch, errors.Join(errs...)
}

func (p *Pipeline) runFile(ctx context.Context, src Source, key string) (FileResult, error) {
	rc, err := src.Open(ctx, key)
	if err != nil {
		err = fmt.Errorf("open %s: %w", key, err)
		p.opts.Logger.Error("file failed", "file", key, "error", err)
		p.opts.Recorder.FileFinished(StateFailed, 0, 0)
		return FileResult{
			Name:         key,
			State:        StateFailed,
			SinkFailures: map[string]int{},
			Error:        err.Error(),
		}, err
	}
	defer rc.Close()

	return p.ProcessFile(ctx, key, rc)
}

// verify performs the post-batch read-only lookup. Its result is logged and
// reported but never changes the batch outcome.
func (p *Pipeline) verify(ctx context.Context, log *slog.Logger) string {
	if p.opts.VerifyKey == "" || p.store == nil {
		return ""
	}

	var (
		item  Item
		found bool
	)
	err := dispatch(ctx, p.opts.SinkTimeout, func(ctx context.Context) error {
		var err error
		item, found, err = p.store.Lookup(ctx, p.opts.VerifyKey)
		return err
	})

	switch {
	case err != nil:
		log.Warn("verification lookup failed", "key", p.opts.VerifyKey, "error", err)
		return "error"
	case !found:
		log.Info("verification key not found", "key", p.opts.VerifyKey)
		return "missing"
	default:
		log.Info("verification key found", "key", p.opts.VerifyKey, "attributes", len(item.Attributes))
		return "found"
	}
}

/* ----------------------------------------
	Single file
---------------------------------------- */

// ProcessFile runs one file through the state machine
// start -> header_read -> row_processed* -> done | file_failed.
//
// Cell and sink problems are row-level: they are counted in the result and
// never stop later rows. A stream read error or context cancellation ends
// the file as failed and is returned; rows already dispatched stay dispatched.
func (p *Pipeline) ProcessFile(ctx context.Context, name string, r io.Reader) (FileResult, error) {
	start := p.opts.Clock()
	res := FileResult{
		Name:         name,
		State:        StateStart,
		SinkFailures: map[string]int{},
	}
	log := p.opts.Logger.With("file", name)

	body, counter := WrapForStreaming(r)
	cr := csv.NewReader(body)
	cr.FieldsPerRecord = -1

	finish := func(state FileState, err error) (FileResult, error) {
		res.State = state
		res.BytesRead = counter.BytesRead
		res.Duration = p.opts.Clock().Sub(start)
		p.opts.Recorder.FileFinished(state, res.BytesRead, res.Duration)

		if err != nil {
			err = fmt.Errorf("file %s: %w", name, err)
			res.Error = err.Error()
			log.Error("file failed", "rows", res.Rows, "error", err)
			return res, err
		}

		log.Info("file processed",
			"rows", res.Rows,
			"malformed_rows", res.MalformedRows,
			"unparseable_cells", res.Unparseable,
			"sink_failures", res.SinkFailures,
			"bytes", res.BytesRead,
			"duration", res.Duration,
		)
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return finish(StateFailed, fmt.Errorf("operation cancelled: %w", err))
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		log.Info("file has no header row")
		return finish(StateDone, nil)
	}
	if err != nil {
		return finish(StateFailed, fmt.Errorf("read header: %w", err))
	}

	fm := p.mapper.ForHeader(header)
	res.State = StateHeaderRead
	log.Debug("header read", "columns", len(header), "resolved_fields", fm.Resolved())
	if fm.Resolved() == 0 {
		log.Warn("header matches no known field", "header", strings.Join(header, ","))
	}

	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return finish(StateFailed, fmt.Errorf("operation cancelled: %w", err))
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.MalformedRows++
			p.opts.Recorder.MalformedRow()
			log.Warn("malformed row skipped", "line", parseErr.StartLine, "error", parseErr.Err)
			continue
		}
		if err != nil {
			return finish(StateFailed, fmt.Errorf("read row: %w", err))
		}

		if isEmptyRow(row) {
			continue
		}

		line, _ := cr.FieldPos(0)
		p.processRow(ctx, log, fm, row, line, &res)
		res.State = StateRowProcessed
	}

	return finish(StateDone, nil)
}

// processRow maps one row and fans the record out. It never fails; every
// problem is recorded in res.
func (p *Pipeline) processRow(ctx context.Context, log *slog.Logger, fm *FileMapper, row []string, line int, res *FileResult) {
	rec, diag := fm.Map(row)
	res.Rows++
	p.opts.Recorder.RowProcessed()

	systemID, _ := rec.Identity()

	if n := len(diag.Unparseable); n > 0 {
		res.Unparseable += n
		for _, field := range diag.Unparseable {
			p.opts.Recorder.UnparseableCell(field)
		}
		log.Debug("unparseable cells", "line", line, "system_id", systemID, "fields", diag.Unparseable)
	}

	for _, o := range p.fanOut(ctx, rec) {
		p.opts.Recorder.SinkDispatched(o.Sink, o.Err)
		if o.Err == nil {
			continue
		}
		res.SinkFailures[o.Sink]++
		log.Warn("sink dispatch failed",
			"line", line,
			"sink", o.Sink,
			"system_id", systemID,
			"error", o.Err,
		)
	}
}

func (p *Pipeline) publishRecord(ctx context.Context, rec *Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key, _ := rec.Identity()
	return p.queue.Publish(ctx, key, body)
}

func (p *Pipeline) storeRecord(ctx context.Context, rec *Record) error {
	item, err := BuildItem(rec, p.opts.MissingIDPolicy, p.opts.SentinelKey)
	if err != nil {
		return err
	}
	if _, ok := rec.Identity(); !ok {
		p.opts.Logger.Warn("record without system id stored under sentinel key", "key", item.Key)
	}
	return p.store.Upsert(ctx, item)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
