// AngelaMos | 2026
// publishers.go

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "audit")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	if e.Type == LoginFailed || e.Type == RefreshRejected {
		level = slog.LevelWarn
	}
	if e.Type == RefreshReuseDetected {
		level = slog.LevelError
	}

	p.logger.Log(ctx, level, "auth event",
		"type", e.Type,
		"user_id", e.UserID,
		"username", e.Username,
		"family_id", e.FamilyID,
		"revoked", e.Revoked,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// RedisPublisher appends events to a capped Redis stream.
type RedisPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisPublisher(client redis.Cmdable, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(e.Type),
			"user_id": e.UserID,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	return nil
}

func (p *RedisPublisher) Close() error { return nil }

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes events to JetStream under <subject>.<type>.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetStream
	subject string
}

func NewNATSPublisher(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open jetstream: %w", err)
	}

	return &NATSPublisher{conn: nc, js: js, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subj := p.subject + "." + string(e.Type)
	if _, err := p.js.Publish(subj, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}

	return nil
}

func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

type MetricsPublisher struct {
	events *prometheus.CounterVec
}

func NewMetricsPublisher(reg prometheus.Registerer, namespace string) *MetricsPublisher {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Authentication events by type.",
	}, []string{"type"})
	reg.MustRegister(events)

	return &MetricsPublisher{events: events}
}

func (p *MetricsPublisher) Publish(_ context.Context, e Event) error {
	p.events.WithLabelValues(string(e.Type)).Inc()
	return nil
}

func (p *MetricsPublisher) Close() error { return nil }
