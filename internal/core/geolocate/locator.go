// Package geolocate resolves the user's location from a device sensor or the
// server, caching the result and broadcasting outcomes.
package geolocate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// Human-readable labels for device results and the placeholder shown before
// any result.
const (
	HumanDevice  = "Your Location"
	HumanLoading = "Loading..."
)

// Source selects which lookups a Resolve may use.
type Source int

const (
	SourceBoth Source = iota
	SourceNav
	SourceIP
)

// ParseSource reads "nav", "ip" or "both"; anything else means both.
func ParseSource(s string) Source {
	switch s {
	case string(domain.GeoSourceNav):
		return SourceNav
	case string(domain.GeoSourceIP):
		return SourceIP
	default:
		return SourceBoth
	}
}

func (s Source) String() string {
	switch s {
	case SourceNav:
		return string(domain.GeoSourceNav)
	case SourceIP:
		return string(domain.GeoSourceIP)
	default:
		return "both"
	}
}

func (s Source) nav() bool { return s == SourceBoth || s == SourceNav }
func (s Source) ip() bool  { return s == SourceBoth || s == SourceIP }

func (s Source) accepts(t domain.GeoSource) bool {
	switch t {
	case domain.GeoSourceNav:
		return s.nav()
	case domain.GeoSourceIP:
		return s.ip()
	default:
		return false
	}
}

// PermissionState is the device's geolocation permission.
type PermissionState string

const (
	PermissionUnknown PermissionState = ""
	PermissionPrompt  PermissionState = "prompt"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Sensor is a device able to report its position.
type Sensor interface {
	// Permission returns the permission state without prompting.
	Permission(ctx context.Context) (PermissionState, error)
	// CurrentPosition asks the device for a fix. Failures should be *Error.
	CurrentPosition(ctx context.Context) (lat, lng float64, err error)
}

// ServerLocator resolves an approximate location server side.
type ServerLocator interface {
	Geolocate(ctx context.Context) (*domain.GeoResult, error)
}

// Broadcaster is told about every located result and every failure.
type Broadcaster interface {
	Located(ctx context.Context, result domain.GeoResult)
	LocateFailed(ctx context.Context, message string)
}

// Locator caches the last resolved location. A newer Resolve supersedes any
// in-flight one: the older call's late results are dropped.
type Locator struct {
	sensor      Sensor
	server      ServerLocator
	broadcaster []Broadcaster
	log         *slog.Logger

	gen atomic.Uint64

	mu         sync.Mutex
	cached     *domain.GeoResult
	permission PermissionState
}

// Option configures a Locator.
type Option func(*Locator)

func WithSensor(s Sensor) Option {
	return func(l *Locator) { l.sensor = s }
}

func WithServer(s ServerLocator) Option {
	return func(l *Locator) { l.server = s }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(l *Locator) { l.broadcaster = append(l.broadcaster, b) }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Locator) { l.log = log }
}

// NewLocator creates a Locator with an empty cache.
func NewLocator(opts ...Option) *Locator {
	l := &Locator{log: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// HasSensor reports whether a device sensor is attached and, for sensors
// that know it, whether the device supports geolocation at all.
func (l *Locator) HasSensor() bool {
	if l.sensor == nil {
		return false
	}
	if a, ok := l.sensor.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// Cached returns the cached result.
func (l *Locator) Cached() (domain.GeoResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		return domain.GeoResult{}, false
	}
	return *l.cached, true
}

// Current returns the cached result or the loading placeholder.
func (l *Locator) Current() domain.GeoResult {
	if res, ok := l.Cached(); ok {
		return res
	}
	return domain.GeoResult{Human: HumanLoading}
}

// Refresh drops the cached result.
func (l *Locator) Refresh() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

// Resolve finds the user's location using the sources pref allows and
// blocks until every attempt settled. A cached result of an acceptable
// source is delivered right away; the device is then still asked once if
// its permission was never queried, refreshing the cache silently.
//
// Device and server attempts run concurrently. The first success calls
// onSuccess; later ones only refresh the cache. onError is called once when
// no attempt succeeded.
func (l *Locator) Resolve(ctx context.Context, pref Source, onSuccess func(domain.GeoResult), onError func(error)) {
	wantNav, wantIP := pref.nav(), pref.ip()

	if res, ok := l.Cached(); ok && pref.accepts(res.Type) {
		onSuccess(res)
		if !wantNav || l.sensor == nil || res.Permission != string(PermissionUnknown) {
			return
		}
		onSuccess, onError = nil, nil
		wantIP = false
	}

	var attempts []func(context.Context) (domain.GeoResult, error)
	if wantNav && l.sensor != nil {
		attempts = append(attempts, l.fromSensor)
	}
	if wantIP && l.server != nil {
		attempts = append(attempts, l.fromServer)
	}
	if len(attempts) == 0 {
		l.log.Debug("no geolocation option", "source", pref)
		if onError != nil {
			onError(ErrNoGeolocationOption)
		}
		return
	}
	// Only issuing attempts supersedes earlier calls; a cache hit leaves
	// their results free to land.
	gen := l.gen.Add(1)

	var (
		wg   sync.WaitGroup
		won  atomic.Bool
		mu   sync.Mutex
		errs []error
	)
	for _, attempt := range attempts {
		wg.Add(1)
		go func(attempt func(context.Context) (domain.GeoResult, error)) {
			defer wg.Done()

			res, err := attempt(ctx)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				if !errors.Is(err, errNotGranted) && l.gen.Load() == gen {
					l.failed(ctx, err)
				}
				return
			}
			if !l.store(gen, res) {
				l.log.Debug("dropping superseded location", "type", res.Type)
				return
			}
			if won.CompareAndSwap(false, true) && onSuccess != nil {
				onSuccess(res)
			}
			l.located(ctx, res)
		}(attempt)
	}
	wg.Wait()

	if won.Load() || onError == nil || l.gen.Load() != gen {
		return
	}
	onError(firstReportable(errs))
}

// LocateDevice asks the device directly, prompting for permission when the
// platform does. It supersedes any in-flight Resolve.
func (l *Locator) LocateDevice(ctx context.Context, onSuccess func(domain.GeoResult), onError func(error)) {
	gen := l.gen.Add(1)
	if l.sensor == nil {
		if onError != nil {
			onError(ErrNoGeolocationOption)
		}
		return
	}

	res, err := l.position(ctx)
	if l.gen.Load() != gen {
		return
	}
	if err != nil {
		l.failed(ctx, err)
		if onError != nil {
			onError(err)
		}
		return
	}
	if !l.store(gen, res) {
		return
	}
	if onSuccess != nil {
		onSuccess(res)
	}
	l.located(ctx, res)
}

func (l *Locator) fromSensor(ctx context.Context) (domain.GeoResult, error) {
	state, err := l.sensor.Permission(ctx)
	if err != nil {
		l.log.Warn("geolocation permission query failed", "error", err)
		return domain.GeoResult{}, errNotGranted
	}
	l.setPermission(state)
	if state != PermissionGranted {
		return domain.GeoResult{}, errNotGranted
	}
	return l.position(ctx)
}

func (l *Locator) position(ctx context.Context) (domain.GeoResult, error) {
	lat, lng, err := l.sensor.CurrentPosition(ctx)
	if err != nil {
		return domain.GeoResult{}, Categorize(err)
	}
	return domain.GeoResult{
		Lat:        lat,
		Lng:        lng,
		Type:       domain.GeoSourceNav,
		Permission: string(PermissionGranted),
		Human:      HumanDevice,
	}, nil
}

func (l *Locator) fromServer(ctx context.Context) (domain.GeoResult, error) {
	res, err := l.server.Geolocate(ctx)
	if err != nil {
		return domain.GeoResult{}, &Error{Kind: KindPositionUnavailable, Message: err.Error(), Err: err}
	}
	out := *res
	out.Type = domain.GeoSourceIP
	return out, nil
}

func (l *Locator) setPermission(state PermissionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.permission = state
	if l.cached != nil {
		l.cached.Permission = string(state)
	}
}

// store caches res unless gen was superseded.
func (l *Locator) store(gen uint64, res domain.GeoResult) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen.Load() != gen {
		return false
	}
	if res.Permission == "" {
		res.Permission = string(l.permission)
	}
	l.cached = &res
	return true
}

func (l *Locator) located(ctx context.Context, res domain.GeoResult) {
	l.log.Debug("located", "type", res.Type, "human", res.Human)
	for _, b := range l.broadcaster {
		b.Located(ctx, res)
	}
}

func (l *Locator) failed(ctx context.Context, err error) {
	msg := Categorize(err).Message
	l.log.Info("geolocation attempt failed", "error", err)
	for _, b := range l.broadcaster {
		b.LocateFailed(ctx, msg)
	}
}

func firstReportable(errs []error) error {
	for _, err := range errs {
		if !errors.Is(err, errNotGranted) {
			return err
		}
	}
	return ErrNoGeolocationOption
}
