package geolocate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
)

type fakeSensor struct {
	perm     geolocate.PermissionState
	lat, lng float64
	err      error
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
}

func (s *fakeSensor) Permission(context.Context) (geolocate.PermissionState, error) {
	return s.perm, nil
}

func (s *fakeSensor) CurrentPosition(ctx context.Context) (float64, float64, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.lat, s.lng, s.err
}

type fakeServer struct {
	res     *domain.GeoResult
	err     error
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *fakeServer) Geolocate(context.Context) (*domain.GeoResult, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	out := *s.res
	return &out, nil
}

type recorder struct {
	mu      sync.Mutex
	located []domain.GeoResult
	failed  []string
}

func (r *recorder) Located(_ context.Context, res domain.GeoResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.located = append(r.located, res)
}

func (r *recorder) LocateFailed(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, msg)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.located), len(r.failed)
}

type outcome struct {
	mu      sync.Mutex
	results []domain.GeoResult
	errs    []error
}

func (o *outcome) success(res domain.GeoResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func (o *outcome) failure(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func bilbao() *domain.GeoResult {
	return &domain.GeoResult{Lat: 43.26, Lng: -2.93, Human: "Bilbao, Spain"}
}

func TestResolve_DeviceGranted(t *testing.T) {
	rec := &recorder{}
	loc := geolocate.NewLocator(
		geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionGranted, lat: 40, lng: -75}),
		geolocate.WithBroadcaster(rec),
	)
	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceNav, out.success, out.failure)

	require.Len(t, out.results, 1)
	assert.Empty(t, out.errs)
	res := out.results[0]
	assert.Equal(t, domain.GeoSourceNav, res.Type)
	assert.Equal(t, "granted", res.Permission)
	assert.Equal(t, geolocate.HumanDevice, res.Human)
	assert.Equal(t, 40.0, res.Lat)

	cached, ok := loc.Cached()
	require.True(t, ok)
	assert.Equal(t, res, cached)
	located, failed := rec.counts()
	assert.Equal(t, 1, located)
	assert.Equal(t, 0, failed)
}

func TestResolve_ServerFallback(t *testing.T) {
	loc := geolocate.NewLocator(
		geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionPrompt}),
		geolocate.WithServer(&fakeServer{res: bilbao()}),
	)
	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceBoth, out.success, out.failure)

	require.Len(t, out.results, 1)
	assert.Empty(t, out.errs)
	assert.Equal(t, domain.GeoSourceIP, out.results[0].Type)
	assert.Equal(t, "Bilbao, Spain", out.results[0].Human)

	cached, _ := loc.Cached()
	assert.Equal(t, "prompt", cached.Permission)
}

func TestResolve_FirstSuccessWins(t *testing.T) {
	sensor := &fakeSensor{perm: geolocate.PermissionGranted, lat: 40, lng: -75, release: make(chan struct{})}
	rec := &recorder{}
	loc := geolocate.NewLocator(
		geolocate.WithSensor(sensor),
		geolocate.WithServer(&fakeServer{res: bilbao()}),
		geolocate.WithBroadcaster(rec),
	)

	var out outcome
	first := make(chan domain.GeoResult, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		loc.Resolve(context.Background(), geolocate.SourceBoth, func(res domain.GeoResult) {
			out.success(res)
			first <- res
		}, out.failure)
	}()

	select {
	case res := <-first:
		assert.Equal(t, domain.GeoSourceIP, res.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server result was not delivered")
	}
	close(sensor.release)
	<-done

	assert.Len(t, out.results, 1, "later successes only refresh the cache")
	cached, _ := loc.Cached()
	assert.Equal(t, domain.GeoSourceNav, cached.Type)
	located, _ := rec.counts()
	assert.Equal(t, 2, located)
}

func TestResolve_NoOption(t *testing.T) {
	tests := []struct {
		name string
		opts []geolocate.Option
		pref geolocate.Source
	}{
		{"no sensor", nil, geolocate.SourceNav},
		{"permission not granted", []geolocate.Option{geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionPrompt})}, geolocate.SourceNav},
		{"no server", []geolocate.Option{geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionGranted})}, geolocate.SourceIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			loc := geolocate.NewLocator(append(tt.opts, geolocate.WithBroadcaster(rec))...)
			var out outcome
			loc.Resolve(context.Background(), tt.pref, out.success, out.failure)

			assert.Empty(t, out.results)
			require.Len(t, out.errs, 1)
			assert.ErrorIs(t, out.errs[0], geolocate.ErrNoGeolocationOption)
			_, failed := rec.counts()
			assert.Equal(t, 0, failed)
		})
	}
}

func TestResolve_DeviceErrorIsCategorized(t *testing.T) {
	rec := &recorder{}
	loc := geolocate.NewLocator(
		geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionGranted, err: geolocate.FromCode(1)}),
		geolocate.WithBroadcaster(rec),
	)
	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceNav, out.success, out.failure)

	require.Len(t, out.errs, 1)
	assert.ErrorIs(t, out.errs[0], geolocate.ErrPermissionDenied)
	assert.Equal(t, "User denied the request for Geolocation.", out.errs[0].Error())
	assert.Equal(t, []string{"User denied the request for Geolocation."}, rec.failed)
}

func TestResolve_AllFailReportsOnce(t *testing.T) {
	rec := &recorder{}
	loc := geolocate.NewLocator(
		geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionGranted, err: context.DeadlineExceeded}),
		geolocate.WithServer(&fakeServer{err: errors.New("lookup failed")}),
		geolocate.WithBroadcaster(rec),
	)
	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceBoth, out.success, out.failure)

	assert.Empty(t, out.results)
	assert.Len(t, out.errs, 1)
	_, failed := rec.counts()
	assert.Equal(t, 2, failed)
	_, ok := loc.Cached()
	assert.False(t, ok)
}

func TestResolve_CacheHitRefreshesUnknownPermission(t *testing.T) {
	sensor := &fakeSensor{perm: geolocate.PermissionGranted, lat: 40, lng: -75}
	server := &fakeServer{res: bilbao()}
	loc := geolocate.NewLocator(geolocate.WithSensor(sensor), geolocate.WithServer(server))

	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceIP, out.success, out.failure)
	require.Len(t, out.results, 1)
	assert.Equal(t, "", out.results[0].Permission)

	loc.Resolve(context.Background(), geolocate.SourceBoth, out.success, out.failure)
	require.Len(t, out.results, 2, "cache hit is delivered once")
	assert.Equal(t, domain.GeoSourceIP, out.results[1].Type)
	assert.Equal(t, int32(1), sensor.calls.Load())
	assert.Equal(t, int32(1), server.calls.Load(), "refresh does not ask the server again")

	cached, _ := loc.Cached()
	assert.Equal(t, domain.GeoSourceNav, cached.Type)

	loc.Resolve(context.Background(), geolocate.SourceBoth, out.success, out.failure)
	require.Len(t, out.results, 3)
	assert.Equal(t, domain.GeoSourceNav, out.results[2].Type)
	assert.Equal(t, int32(1), sensor.calls.Load(), "known permission skips the refresh")
	assert.Empty(t, out.errs)
}

func TestResolve_CachedSourceMustBeAccepted(t *testing.T) {
	server := &fakeServer{res: bilbao()}
	loc := geolocate.NewLocator(geolocate.WithServer(server))

	var out outcome
	loc.Resolve(context.Background(), geolocate.SourceIP, out.success, out.failure)
	loc.Resolve(context.Background(), geolocate.SourceNav, out.success, out.failure)

	assert.Len(t, out.results, 1)
	require.Len(t, out.errs, 1)
	assert.ErrorIs(t, out.errs[0], geolocate.ErrNoGeolocationOption)
}

func TestResolve_SupersededCallIsDropped(t *testing.T) {
	server := &fakeServer{res: bilbao(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	loc := geolocate.NewLocator(
		geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionGranted, lat: 40, lng: -75}),
		geolocate.WithServer(server),
	)

	var stale outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		loc.Resolve(context.Background(), geolocate.SourceIP, stale.success, stale.failure)
	}()
	<-server.entered

	var fresh outcome
	loc.Resolve(context.Background(), geolocate.SourceNav, fresh.success, fresh.failure)
	require.Len(t, fresh.results, 1)

	close(server.release)
	<-done

	assert.Empty(t, stale.results)
	assert.Empty(t, stale.errs)
	cached, _ := loc.Cached()
	assert.Equal(t, domain.GeoSourceNav, cached.Type)
}

func TestResolve_CacheHitKeepsInFlightCall(t *testing.T) {
	sensor := &fakeSensor{
		perm: geolocate.PermissionGranted, lat: 40, lng: -75,
		entered: make(chan struct{}, 1), release: make(chan struct{}),
	}
	loc := geolocate.NewLocator(geolocate.WithSensor(sensor), geolocate.WithServer(&fakeServer{res: bilbao()}))

	var first outcome
	loc.Resolve(context.Background(), geolocate.SourceIP, first.success, first.failure)
	require.Len(t, first.results, 1)

	var device outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		loc.Resolve(context.Background(), geolocate.SourceNav, device.success, device.failure)
	}()
	<-sensor.entered

	var cached outcome
	loc.Resolve(context.Background(), geolocate.SourceIP, cached.success, cached.failure)
	require.Len(t, cached.results, 1)
	assert.Equal(t, domain.GeoSourceIP, cached.results[0].Type)

	close(sensor.release)
	<-done

	require.Len(t, device.results, 1)
	assert.Equal(t, domain.GeoSourceNav, device.results[0].Type)
	res, _ := loc.Cached()
	assert.Equal(t, domain.GeoSourceNav, res.Type)
}

type availabilitySensor struct {
	fakeSensor
	available bool
}

func (s *availabilitySensor) Available() bool { return s.available }

func TestHasSensor(t *testing.T) {
	assert.False(t, geolocate.NewLocator().HasSensor())
	assert.True(t, geolocate.NewLocator(geolocate.WithSensor(&fakeSensor{})).HasSensor())
	assert.False(t, geolocate.NewLocator(geolocate.WithSensor(&availabilitySensor{})).HasSensor())
	assert.True(t, geolocate.NewLocator(geolocate.WithSensor(&availabilitySensor{available: true})).HasSensor())
}

func TestLocateDevice(t *testing.T) {
	loc := geolocate.NewLocator(geolocate.WithSensor(&fakeSensor{perm: geolocate.PermissionPrompt, lat: 1, lng: 2}))
	var out outcome
	loc.LocateDevice(context.Background(), out.success, out.failure)

	require.Len(t, out.results, 1)
	assert.Equal(t, domain.GeoSourceNav, out.results[0].Type)

	none := geolocate.NewLocator()
	none.LocateDevice(context.Background(), out.success, out.failure)
	require.Len(t, out.errs, 1)
	assert.ErrorIs(t, out.errs[0], geolocate.ErrNoGeolocationOption)
}

func TestCurrentAndRefresh(t *testing.T) {
	loc := geolocate.NewLocator(geolocate.WithServer(&fakeServer{res: bilbao()}))
	assert.Equal(t, geolocate.HumanLoading, loc.Current().Human)

	loc.Resolve(context.Background(), geolocate.SourceBoth, func(domain.GeoResult) {}, func(error) {})
	assert.Equal(t, "Bilbao, Spain", loc.Current().Human)

	loc.Refresh()
	_, ok := loc.Cached()
	assert.False(t, ok)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		want error
		msg  string
	}{
		{geolocate.FromCode(1), geolocate.ErrPermissionDenied, "User denied the request for Geolocation."},
		{geolocate.FromCode(2), geolocate.ErrPositionUnavailable, "Location information is unavailable."},
		{geolocate.FromCode(3), geolocate.ErrTimeout, "The request to get user location timed out."},
		{geolocate.FromCode(9), geolocate.ErrUnknown, "An unknown error occurred."},
		{context.DeadlineExceeded, geolocate.ErrTimeout, "The request to get user location timed out."},
		{errors.New("boom"), geolocate.ErrUnknown, "An unknown error occurred."},
	}
	for _, tt := range tests {
		got := geolocate.Categorize(tt.err)
		assert.ErrorIs(t, got, tt.want)
		assert.Equal(t, tt.msg, got.Message)
	}
	assert.ErrorIs(t, geolocate.Categorize(context.DeadlineExceeded), context.DeadlineExceeded)
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, geolocate.SourceNav, geolocate.ParseSource("nav"))
	assert.Equal(t, geolocate.SourceIP, geolocate.ParseSource("ip"))
	assert.Equal(t, geolocate.SourceBoth, geolocate.ParseSource("both"))
	assert.Equal(t, "both", geolocate.ParseSource("").String())
}
