// Package notify publishes finished jobs to a NATS subject so that other
// services can react to completions without polling the device.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/seantiz/qdevice/internal/model"
)

// DefaultSubject is the subject prefix completion events are published on.
const DefaultSubject = "qdevice.jobs"

// Config configures a Publisher.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Subject is the prefix events are published under. Default: DefaultSubject.
	Subject string

	// Name is an optional NATS connection name.
	Name string

	// FlushTimeout bounds how long Record waits for the server to
	// acknowledge a publish. Default: 2s.
	FlushTimeout time.Duration
}

// Publisher publishes one JSON message per finished job on
// <subject>.<status>. It implements the engine's recorder hook.
type Publisher struct {
	nc           *nats.Conn
	subject      string
	flushTimeout time.Duration
	logger       *slog.Logger
}

// Connect dials the NATS server described by cfg.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = 2 * time.Second
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	return &Publisher{nc: nc, subject: subject, flushTimeout: flush, logger: logger}, nil
}

// Subject returns the subject a record with the given status is published on.
func (p *Publisher) Subject(status model.JobStatus) string {
	return p.subject + "." + status.String()
}

// Record publishes rec and waits for the server to receive it.
func (p *Publisher) Record(ctx context.Context, rec model.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.Subject(rec.Status),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Qdevice-Job-Id", strconv.FormatInt(rec.JobID, 10))
	if rec.SessionID != "" {
		msg.Header.Set("Qdevice-Session-Id", rec.SessionID)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish job %d: %w", rec.JobID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.flushTimeout)
	defer cancel()
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush job %d: %w", rec.JobID, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
