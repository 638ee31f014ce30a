package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"

	"go.opentelemetry.io/otel"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/ports"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
	"github.com/samirrijal/groupmap/internal/pkg/telemetry"
)

// ErrLocationUnknown is returned when no location can be derived from the
// client address.
var ErrLocationUnknown = errors.New("location unknown")

// LocationUnknownMessage is the user-facing text for ErrLocationUnknown.
const LocationUnknownMessage = "Could not determine your location."

// GeolocateService resolves client addresses to approximate locations.
type GeolocateService struct {
	ips   ports.IPLocator
	cache ports.CacheService
	ttl   int
}

// NewGeolocateService creates a new GeolocateService. cache may be nil.
func NewGeolocateService(ips ports.IPLocator, cache ports.CacheService, ttlSeconds int) *GeolocateService {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &GeolocateService{ips: ips, cache: cache, ttl: ttlSeconds}
}

// Locate returns the location of ip with source "ip".
func (s *GeolocateService) Locate(ctx context.Context, ip net.IP) (*domain.GeoResult, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "GeolocateService.Locate")
	defer span.End()

	if ip == nil {
		metrics.GeolocateLookups.WithLabelValues("ip", "error").Inc()
		return nil, ErrLocationUnknown
	}

	key := "geo:ip:" + ip.String()
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var res domain.GeoResult
			if err := json.Unmarshal(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("geolocate").Inc()
				metrics.GeolocateLookups.WithLabelValues("ip", "ok").Inc()
				return &res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geolocate").Inc()
	}

	res, err := s.ips.Locate(ctx, ip)
	if err != nil {
		span.RecordError(err)
		metrics.GeolocateLookups.WithLabelValues("ip", "error").Inc()
		slog.DebugContext(ctx, "ip lookup failed", "ip", ip.String(), "error", err)
		return nil, ErrLocationUnknown
	}
	res.Type = domain.GeoSourceIP
	metrics.GeolocateLookups.WithLabelValues("ip", "ok").Inc()

	if s.cache != nil {
		if data, err := json.Marshal(res); err == nil {
			_ = s.cache.Set(ctx, key, data, s.ttl)
		}
	}
	return res, nil
}

// ForClient binds the service to one client address.
func (s *GeolocateService) ForClient(ip net.IP) geolocate.ServerLocator {
	return clientLocator{svc: s, ip: ip}
}

type clientLocator struct {
	svc *GeolocateService
	ip  net.IP
}

func (c clientLocator) Geolocate(ctx context.Context) (*domain.GeoResult, error) {
	return c.svc.Locate(ctx, c.ip)
}

// EventBroadcaster forwards location outcomes to the event bus.
type EventBroadcaster struct {
	pub ports.EventPublisher
}

var _ geolocate.Broadcaster = EventBroadcaster{}

// NewEventBroadcaster creates a broadcaster over pub.
func NewEventBroadcaster(pub ports.EventPublisher) EventBroadcaster {
	return EventBroadcaster{pub: pub}
}

func (b EventBroadcaster) Located(ctx context.Context, res domain.GeoResult) {
	metrics.GeolocateLookups.WithLabelValues(string(res.Type), "ok").Inc()
	if b.pub == nil {
		return
	}
	if err := b.pub.PublishLocated(ctx, &res); err != nil {
		slog.WarnContext(ctx, "publish located", "error", err)
	}
}

func (b EventBroadcaster) LocateFailed(ctx context.Context, msg string) {
	if b.pub == nil {
		return
	}
	if err := b.pub.PublishLocateError(ctx, msg); err != nil {
		slog.WarnContext(ctx, "publish locate error", "error", err)
	}
}
