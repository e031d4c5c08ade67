package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/gtingest/internal/config"
	"github.com/JonMunkholm/gtingest/internal/events"
	"github.com/JonMunkholm/gtingest/internal/ingest"
	"github.com/JonMunkholm/gtingest/internal/metrics"
	"github.com/JonMunkholm/gtingest/internal/natsclient"
	"github.com/JonMunkholm/gtingest/internal/queue"
	"github.com/JonMunkholm/gtingest/internal/source"
	"github.com/JonMunkholm/gtingest/internal/store"
	"github.com/JonMunkholm/gtingest/internal/web"
)

// app holds every long-lived component built from the configuration.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Pipeline
	nats     *natsclient.Client
	queue    *queue.Publisher
	pool     *pgxpool.Pool
	redis    *redis.Client
	source   ingest.Source
	pipeline *ingest.Pipeline
	checks   map[string]web.HealthCheck

	closers []func()
}

// newApp connects every sink and the source. On error everything already
// opened is closed again.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, checks: map[string]web.HealthCheck{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.metrics, err = metrics.New(); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	table, err := loadAliases(cfg.Ingest.AliasFile)
	if err != nil {
		return nil, err
	}
	log.Info("alias table loaded", "version", table.Version(), "fields", len(table.Fields()))

	// Event bus and object store share one NATS connection.
	a.nats, err = natsclient.Connect(ctx, cfg.Events.NATSURL, natsclient.DefaultOptions("gtingest"), log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { a.nats.Close() })
	a.checks["nats"] = func(context.Context) error {
		if !a.nats.Healthy() {
			return errors.New("nats disconnected")
		}
		return nil
	}

	if err := events.EnsureStream(ctx, a.nats.JS, cfg.Events.Stream, cfg.Events.Subject); err != nil {
		return nil, err
	}
	eventPub := events.NewPublisher(a.nats.JS, cfg.Events.Subject)

	dest, err := queue.ParseURL(cfg.Queue.URL)
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	if a.queue, err = queue.NewPublisher(dest, table.Version()); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { a.queue.Close() })
	log.Info("queue configured", "destination", dest.String())

	recordStore, err := a.openStore(ctx, table.Version(), log)
	if err != nil {
		return nil, err
	}

	if a.source, err = a.openSource(ctx, log); err != nil {
		return nil, err
	}

	policy, err := ingest.ParseMissingIDPolicy(cfg.Store.MissingIDPolicy)
	if err != nil {
		return nil, err
	}

	a.pipeline = ingest.NewPipeline(ingest.NewMapper(table), a.queue, recordStore, eventPub,
		ingest.WithSinkTimeout(cfg.Ingest.SinkTimeout),
		ingest.WithMissingIDPolicy(policy, cfg.Store.SentinelKey),
		ingest.WithVerifyKey(cfg.Ingest.VerifyKey),
		ingest.WithRecorder(a.metrics),
		ingest.WithLogger(log),
	)

	return a, nil
}

func loadAliases(path string) (ingest.AliasTable, error) {
	if path == "" {
		return ingest.DefaultAliasTable(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ingest.AliasTable{}, fmt.Errorf("open alias file: %w", err)
	}
	defer f.Close()

	table, err := ingest.LoadAliasTable(f)
	if err != nil {
		return ingest.AliasTable{}, fmt.Errorf("alias file %s: %w", path, err)
	}
	return table, nil
}

func (a *app) openStore(ctx context.Context, schemaVersion string, log *slog.Logger) (ingest.RecordStore, error) {
	switch a.cfg.Store.Backend {
	case "redis":
		client, err := store.Connect(ctx, a.cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, func() { client.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("store connected", "backend", "redis", "prefix", a.cfg.Store.RedisPrefix)
		return store.NewRedis(client, a.cfg.Store.RedisPrefix), nil

	default:
		poolConfig, err := pgxpool.ParseConfig(a.cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(a.cfg.Database.MaxConns)
		poolConfig.MinConns = int32(a.cfg.Database.MinConns)
		poolConfig.MaxConnLifetime = a.cfg.Database.MaxConnLifetime
		poolConfig.MaxConnIdleTime = a.cfg.Database.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.checks["postgres"] = pool.Ping

		pg := store.NewPostgres(pool, schemaVersion)
		if a.cfg.Database.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		log.Info("store connected", "backend", "postgres", "max_conns", a.cfg.Database.MaxConns)
		return pg, nil
	}
}

func (a *app) openSource(ctx context.Context, log *slog.Logger) (ingest.Source, error) {
	if a.cfg.Source.Backend == "dir" {
		dir, err := source.NewDir(a.cfg.Source.Dir)
		if err != nil {
			return nil, err
		}
		log.Info("source configured", "backend", "dir", "dir", a.cfg.Source.Dir)
		return dir, nil
	}

	bucket, err := source.OpenBucket(ctx, a.nats.JS, a.cfg.Source.Bucket)
	if err != nil {
		return nil, err
	}
	log.Info("source configured", "backend", "objectstore", "bucket", bucket.Bucket())
	return bucket, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
