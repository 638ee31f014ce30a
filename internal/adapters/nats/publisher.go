package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// Subjects published by the service.
const (
	SubjectLocated       = "groupmap.geo.located"
	SubjectLocateError   = "groupmap.geo.error"
	SubjectSyncCompleted = "groupmap.sync.completed"
)

// LocateErrorEvent is the payload of SubjectLocateError.
type LocateErrorEvent struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "GROUPMAP_GEO",
			Subjects:  []string{"groupmap.geo.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "GROUPMAP_SYNC",
			Subjects:  []string{"groupmap.sync.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishLocated(ctx context.Context, result *domain.GeoResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectLocated+"."+string(sourceToken(result.Type)), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishLocateError(ctx context.Context, message string) error {
	data, err := json.Marshal(LocateErrorEvent{Message: message, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectLocateError, data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishSyncCompleted(ctx context.Context, event *domain.SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectSyncCompleted, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("groupmap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

func sourceToken(s domain.GeoSource) domain.GeoSource {
	if s == domain.GeoSourceNone {
		return "unknown"
	}
	return s
}
