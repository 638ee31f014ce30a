package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/ports"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
	"github.com/samirrijal/groupmap/internal/pkg/telemetry"
)

// SmallGroupType is the involvement type listed by small-group nearby queries.
const SmallGroupType = "smallgroup"

// ErrInvalidCoordinates is returned for a latitude or longitude out of range.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// InvolvementConfig bounds nearby queries and sets the cache lifetime.
type InvolvementConfig struct {
	DefaultLimit int
	MaxLimit     int
	CacheTTL     int // seconds
}

func (c InvolvementConfig) withDefaults() InvolvementConfig {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 3
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 25
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 300
	}
	return c
}

// InvolvementService serves mappable records and nearby queries.
//
// Cached entries carry a generation in their key; a completed sync bumps it
// so every entry written before the sync is ignored.
type InvolvementService struct {
	repo  ports.InvolvementRepository
	stats ports.StatsRepository
	cache ports.CacheService
	cfg   InvolvementConfig
	gen   atomic.Uint64
}

var _ geolocate.NearbySource = (*InvolvementService)(nil)

// NewInvolvementService creates a new InvolvementService. stats and cache may be nil.
func NewInvolvementService(repo ports.InvolvementRepository, stats ports.StatsRepository, cache ports.CacheService, cfg InvolvementConfig) *InvolvementService {
	return &InvolvementService{repo: repo, stats: stats, cache: cache, cfg: cfg.withDefaults()}
}

// ClampLimit applies the default and maximum nearby limits.
func (s *InvolvementService) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}

// Nearby lists the records closest to q's point, each with its distance in
// meters. Small-group queries ignore q.InvType.
func (s *InvolvementService) Nearby(ctx context.Context, q geolocate.NearbyQuery) ([]domain.ItemRecord, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "InvolvementService.Nearby")
	defer span.End()

	if q.Lat < -90 || q.Lat > 90 || q.Lng < -180 || q.Lng > 180 {
		return nil, ErrInvalidCoordinates
	}
	invType := q.InvType
	if q.Kind == geolocate.NearbySmallGroups {
		invType = SmallGroupType
	}
	limit := s.ClampLimit(q.Limit)
	span.SetAttributes(
		attribute.String("nearby.kind", string(q.Kind)),
		attribute.String("nearby.inv_type", invType),
		attribute.Int("nearby.limit", limit),
	)
	metrics.NearbyQueries.WithLabelValues(string(q.Kind)).Inc()

	key := fmt.Sprintf("nearby:g%d:%s:%.3f:%.3f:%d", s.gen.Load(), invType, q.Lat, q.Lng, limit)
	var out []domain.ItemRecord
	if s.cacheGet(ctx, "nearby", key, &out) {
		return out, nil
	}

	out, err := s.repo.FindNearby(ctx, q.Lat, q.Lng, invType, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	s.cacheSet(ctx, key, out)
	return out, nil
}

// Items returns the batch of records of one involvement type.
func (s *InvolvementService) Items(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "InvolvementService.Items")
	defer span.End()
	span.SetAttributes(attribute.String("inv_type", invType))

	if invType == "" {
		return nil, fmt.Errorf("involvement type must not be empty")
	}

	key := fmt.Sprintf("items:g%d:%s", s.gen.Load(), invType)
	var out []domain.ItemRecord
	if s.cacheGet(ctx, "items", key, &out) {
		return out, nil
	}

	out, err := s.repo.ListByType(ctx, invType)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s: %w", invType, err)
	}
	s.cacheSet(ctx, key, out)
	return out, nil
}

// GetByID returns a single record.
func (s *InvolvementService) GetByID(ctx context.Context, id int64) (*domain.ItemRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats reports stored records per involvement type.
func (s *InvolvementService) Stats(ctx context.Context) ([]domain.TypeStats, error) {
	if s.stats == nil {
		return nil, nil
	}
	return s.stats.Stats(ctx)
}

// Generation is the current cache generation.
func (s *InvolvementService) Generation() uint64 { return s.gen.Load() }

// HandleSyncCompleted invalidates cached entries after new records were loaded.
func (s *InvolvementService) HandleSyncCompleted(ctx context.Context, event *domain.SyncEvent) error {
	gen := s.gen.Add(1)
	slog.InfoContext(ctx, "sync completed, cache generation bumped",
		"inv_type", event.InvType, "count", event.Count, "generation", gen)
	return nil
}

func (s *InvolvementService) cacheGet(ctx context.Context, op, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get", "key", key, "error", err)
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *InvolvementService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, s.cfg.CacheTTL)
	}
}
