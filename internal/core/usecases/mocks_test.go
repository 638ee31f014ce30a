package usecases_test

import (
	"context"
	"net"
	"sync"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/ports"
)

// --- Mock InvolvementRepository ---

type mockInvolvementRepo struct {
	findNearbyFn func(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error)
	listByTypeFn func(ctx context.Context, invType string) ([]domain.ItemRecord, error)
	getByIDFn    func(ctx context.Context, id int64) (*domain.ItemRecord, error)
}

func (m *mockInvolvementRepo) UpsertBatch(ctx context.Context, items []domain.ItemRecord) error {
	return nil
}

func (m *mockInvolvementRepo) GetByID(ctx context.Context, id int64) (*domain.ItemRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockInvolvementRepo) ListByType(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
	if m.listByTypeFn != nil {
		return m.listByTypeFn(ctx, invType)
	}
	return nil, nil
}

func (m *mockInvolvementRepo) FindNearby(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lng, invType, limit)
	}
	return nil, nil
}

// --- Mock StatsRepository ---

type mockStatsRepo struct {
	stats []domain.TypeStats
}

func (m *mockStatsRepo) Stats(ctx context.Context) ([]domain.TypeStats, error) {
	return m.stats, nil
}

// --- In-memory CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, ports.ErrCacheMiss
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock IPLocator ---

type mockIPLocator struct {
	locateFn func(ctx context.Context, ip net.IP) (*domain.GeoResult, error)
	calls    int
}

func (m *mockIPLocator) Locate(ctx context.Context, ip net.IP) (*domain.GeoResult, error) {
	m.calls++
	if m.locateFn != nil {
		return m.locateFn(ctx, ip)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	located  []domain.GeoResult
	failures []string
	synced   []domain.SyncEvent
}

func (m *mockPublisher) PublishLocated(ctx context.Context, result *domain.GeoResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.located = append(m.located, *result)
	return nil
}

func (m *mockPublisher) PublishLocateError(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, message)
	return nil
}

func (m *mockPublisher) PublishSyncCompleted(ctx context.Context, event *domain.SyncEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, *event)
	return nil
}
