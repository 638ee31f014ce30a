package ports

import (
	"context"
	"errors"
	"net"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishLocated(ctx context.Context, result *domain.GeoResult) error
	PublishLocateError(ctx context.Context, message string) error
	PublishSyncCompleted(ctx context.Context, event *domain.SyncEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSyncCompleted(ctx context.Context, handler func(ctx context.Context, event *domain.SyncEvent) error) error
}

// ErrCacheMiss is returned by CacheService.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// IPLocator resolves a best-effort location for a client address.
type IPLocator interface {
	Locate(ctx context.Context, ip net.IP) (*domain.GeoResult, error)
}
