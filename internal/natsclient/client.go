// Package natsclient owns the NATS connection shared by the event bus and
// the object store source.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Options configure the connection.
type Options struct {
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
	DrainTimeout  time.Duration
}

// DefaultOptions returns the connection settings used by the service.
func DefaultOptions(name string) Options {
	return Options{
		Name:          name,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		DrainTimeout:  10 * time.Second,
	}
}

// Client bundles a core NATS connection with its JetStream context.
type Client struct {
	Conn *nats.Conn
	JS   jetstream.JetStream
}

// buildConnectionOptions maps Options onto nats.Option values and wires
// connection state changes into the logger.
func buildConnectionOptions(o Options, log *slog.Logger) []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(o.MaxReconnects),
		nats.ReconnectWait(o.ReconnectWait),
		nats.Timeout(o.Timeout),
		nats.DrainTimeout(o.DrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Debug("nats connection closed")
		}),
	}
	if o.Name != "" {
		opts = append(opts, nats.Name(o.Name))
	}
	return opts
}

// Connect dials url and initializes JetStream. The context bounds the
// initial dial only.
func Connect(ctx context.Context, url string, o Options, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(url, buildConnectionOptions(o, log)...)
		done <- result{conn, err}
	}()

	var conn *nats.Conn
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connect nats: %w", r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connect nats: %w", ctx.Err())
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	log.Info("connected to nats", "url", conn.ConnectedUrlRedacted())
	return &Client{Conn: conn, JS: js}, nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	if err := c.Conn.Drain(); err != nil {
		c.Conn.Close()
		return err
	}
	return nil
}

// Healthy reports whether the connection is currently up.
func (c *Client) Healthy() bool {
	return c != nil && c.Conn != nil && c.Conn.IsConnected()
}
