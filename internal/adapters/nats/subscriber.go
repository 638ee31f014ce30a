package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber.
//
// Sync notifications use a plain (non-durable) subscription: every API
// instance has to see every event to invalidate its own cache generation.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber opens its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn}, nil
}

func (s *Subscriber) SubscribeSyncCompleted(ctx context.Context, handler func(ctx context.Context, event *domain.SyncEvent) error) error {
	sub, err := s.conn.Subscribe(SubjectSyncCompleted, func(msg *nats.Msg) {
		var event domain.SyncEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("bad sync event", "error", err)
			return
		}
		if err := handler(ctx, &event); err != nil {
			slog.Error("sync event handler", "inv_type", event.InvType, "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
