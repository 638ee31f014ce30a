// Package mapsession runs one interactive map for one connected client.
//
// A Session owns its View, Registry and Viewport and mutates them only from
// the goroutine running Run. Smooth zooms, location lookups and nearby
// queries run on their own goroutines and post their results back.
package mapsession

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/viewport"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
)

// Sender delivers outbound messages to the client.
type Sender interface {
	Send(msg Outbound) error
}

// Config wires a Session to its collaborators.
type Config struct {
	InvType   string
	Records   []domain.ItemRecord
	Viewport  *viewport.Viewport
	Zoomer    *mapview.Zoomer
	Server    geolocate.ServerLocator
	Nearby    geolocate.NearbySource
	Broadcast geolocate.Broadcaster
	FarAwayKm float64
	// Place builds the page; nil places the records with default options.
	Place  func(recs []domain.ItemRecord, invType string, vp *viewport.Viewport, opts ...mapview.ViewOption) *mapview.View
	Logger *slog.Logger
}

// Session is one client's map.
type Session struct {
	cfg    Config
	view   *mapview.View
	vp     *viewport.Viewport
	zoomer *mapview.Zoomer
	loc    *geolocate.Locator
	finder *geolocate.NearbyFinder
	sensor *reportedSensor
	out    Sender
	log    *slog.Logger

	ctx           context.Context
	events        chan func()
	done          chan struct{}
	boundsPending atomic.Bool
	cancelSubs    []func()

	elements *elementBuffer
	banners  *bannerBuffer
	lastHash string
	lastView viewport.State
}

// New places cfg.Records on cfg.Viewport and prepares the session. Call Run
// to start processing.
func New(cfg Config, out Sender) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Viewport == nil {
		cfg.Viewport = viewport.New()
	}
	if cfg.Zoomer == nil {
		cfg.Zoomer = mapview.NewZoomer(mapview.DefaultZoomStep)
	}

	s := &Session{
		ctx:      context.Background(),
		cfg:      cfg,
		vp:       cfg.Viewport,
		zoomer:   cfg.Zoomer,
		sensor:   &reportedSensor{},
		out:      out,
		log:      log,
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		elements: &elementBuffer{},
		banners:  &bannerBuffer{},
	}

	opts := []geolocate.Option{geolocate.WithSensor(s.sensor), geolocate.WithLogger(log)}
	if cfg.Server != nil {
		opts = append(opts, geolocate.WithServer(cfg.Server))
	}
	if cfg.Broadcast != nil {
		opts = append(opts, geolocate.WithBroadcaster(cfg.Broadcast))
	}
	s.loc = geolocate.NewLocator(opts...)
	if cfg.Nearby != nil {
		s.finder = geolocate.NewNearbyFinder(s.loc, cfg.Nearby)
	}

	viewOpts := []mapview.ViewOption{
		mapview.WithElementSink(s.elements),
		mapview.WithBannerSink(s.banners),
		mapview.WithLogger(log),
	}
	if cfg.Place != nil {
		s.view = cfg.Place(cfg.Records, cfg.InvType, s.vp, viewOpts...)
	} else {
		reg := mapview.NewRegistry(log)
		s.view = mapview.NewView(reg, viewOpts...)
		reg.PlaceItems(reg.AddRecords(mapview.ShortClassInvolvement, cfg.Records), s.vp)
		s.view.ApplyFilters(mapview.FilterSet{})
	}

	s.view.RegisterShowOnMap(func(req *mapview.ZoomRequest, err error) {
		if err != nil {
			s.sendError("item is not on the map")
			return
		}
		if req != nil {
			s.startZoom(*req)
		}
	})
	s.view.Router().Register(mapview.ActionLocate, mapview.PageIdentity, func() { s.locateDevice(s.ctx) })
	return s
}

// View exposes the session's view for inspection.
func (s *Session) View() *mapview.View { return s.view }

// Locator exposes the session's locator.
func (s *Session) Locator() *geolocate.Locator { return s.loc }

// Run processes events until ctx is done. It sends the initial state first.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.ctx = ctx

	s.cancelSubs = append(s.cancelSubs,
		s.vp.OnBoundsChanged(func() { s.postBoundsChanged() }),
	)
	defer func() {
		for _, c := range s.cancelSubs {
			c()
		}
	}()

	s.sendInit()
	s.flush()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.events:
			fn()
			s.flush()
		}
	}
}

// Post schedules fn on the session goroutine. It never blocks.
func (s *Session) Post(fn func()) {
	select {
	case s.events <- fn:
	default:
		go func() {
			select {
			case s.events <- fn:
			case <-s.done:
			}
		}()
	}
}

// Deliver schedules handling of a client message.
func (s *Session) Deliver(ctx context.Context, msg Inbound) {
	s.Post(func() { s.handle(ctx, msg) })
}

func (s *Session) postBoundsChanged() {
	if !s.boundsPending.CompareAndSwap(false, true) {
		return
	}
	s.Post(func() {
		s.boundsPending.Store(false)
		s.view.BoundsChanged()
	})
}

func (s *Session) handle(ctx context.Context, msg Inbound) {
	switch msg.Type {
	case InView:
		s.vp.SetView(orb.Point{msg.Lng, msg.Lat}, msg.Zoom, msg.Width, msg.Height)

	case InHover:
		it, ok := s.item(msg.SC, msg.ID)
		if !ok {
			s.sendError("unknown item")
			return
		}
		s.view.SetHighlighted(it, msg.On)

	case InFilter:
		metrics.FilterApplications.Inc()
		s.view.SetFilter(msg.Key, msg.Value)

	case InFilters:
		metrics.FilterApplications.Inc()
		s.view.ApplyFilters(mapview.FilterSet(msg.Filters))

	case InHash:
		if !s.view.Router().Handle(msg.Fragment, mapview.ActionNone) {
			s.log.Debug("unhandled fragment", "fragment", msg.Fragment)
		}

	case InClick:
		mk, ok := s.view.Registry().Marker(s.vp, msg.Marker)
		if !ok {
			s.sendError("unknown marker")
			return
		}
		s.startZoom(s.view.MarkerClicked(mk))

	case InReset:
		s.view.ResetToFit(s.vp)

	case InDevice:
		s.sensor.report(msg.Supported, msg.Permission, msg.Fix, msg.ErrorCode)

	case InLocate:
		if msg.Refresh {
			s.loc.Refresh()
		}
		s.locate(ctx, geolocate.ParseSource(msg.Source))

	case InNearby:
		s.nearby(ctx, msg)

	default:
		s.sendError("unknown message type: " + msg.Type)
	}
}

func (s *Session) item(sc string, id int64) (*mapview.Item, bool) {
	sc, ok := mapview.ParseShortClass(sc)
	if !ok {
		return nil, false
	}
	return s.view.Registry().Item(mapview.Identity{ShortClass: sc, ID: id})
}

func (s *Session) startZoom(req mapview.ZoomRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-s.done
		cancel()
	}()
	go func() {
		defer cancel()
		if _, err := s.zoomer.Zoom(ctx, req); err != nil && !errors.Is(err, mapview.ErrSuperseded) && !errors.Is(err, context.Canceled) {
			s.log.Warn("smooth zoom", "error", err)
		}
	}()
}

func (s *Session) locate(ctx context.Context, pref geolocate.Source) {
	go s.loc.Resolve(ctx, pref,
		func(res domain.GeoResult) {
			s.Post(func() { s.send(OutLocated, res) })
		},
		func(err error) {
			s.Post(func() { s.send(OutLocateError, map[string]string{"message": locateMessage(err)}) })
		},
	)
}

func (s *Session) locateDevice(ctx context.Context) {
	go s.loc.LocateDevice(ctx,
		func(res domain.GeoResult) {
			s.Post(func() { s.send(OutLocated, res) })
		},
		func(err error) {
			s.Post(func() { s.send(OutLocateError, map[string]string{"message": locateMessage(err)}) })
		},
	)
}

func (s *Session) nearby(ctx context.Context, msg Inbound) {
	if s.finder == nil {
		s.sendError("nearby listings are not available")
		return
	}
	kind := geolocate.NearbyInvolvements
	if msg.Kind == string(geolocate.NearbySmallGroups) {
		kind = geolocate.NearbySmallGroups
	}
	hasSensor := s.loc.HasSensor()
	go s.finder.Find(ctx, kind, msg.InvType, msg.Limit,
		func(recs []domain.ItemRecord, res domain.GeoResult) {
			data := NearbyData{Items: recs, Location: res}
			if recs == nil {
				data.Items = []domain.ItemRecord{}
			}
			if s.cfg.FarAwayKm > 0 && geolocate.FarAway(res, recs, s.cfg.FarAwayKm) {
				data.FarAway = true
				data.Message = geolocate.FarAwayMessage(res, hasSensor)
			}
			s.Post(func() { s.send(OutNearby, data) })
		},
		func(err error) {
			s.Post(func() { s.sendError(locateMessage(err)) })
		},
	)
}

func locateMessage(err error) string {
	var e *geolocate.Error
	switch {
	case errors.As(err, &e):
		return e.Message
	case errors.Is(err, geolocate.ErrNoGeolocationOption):
		return "No geolocation option available"
	default:
		return err.Error()
	}
}

// flush sends every state change accumulated since the last flush.
func (s *Session) flush() {
	if dirty := s.vp.TakeDirty(); len(dirty) > 0 {
		s.send(OutMarkers, dirty)
	}
	if st := s.vp.State(); st != s.lastView {
		s.lastView = st
		s.send(OutViewport, st)
	}
	if changes := s.elements.take(); len(changes) > 0 {
		s.send(OutElements, changes)
	}
	if b := s.banners.take(); len(b) > 0 {
		s.send(OutBanners, b)
	}
	if h := s.view.Router().Current(); h != s.lastHash {
		s.lastHash = h
		s.send(OutHash, map[string]string{"fragment": h})
	}
}

func (s *Session) sendInit() {
	reg := s.view.Registry()
	data := InitData{
		InvType:             s.cfg.InvType,
		Items:               len(reg.Items()),
		Markers:             len(reg.MarkersOn(s.vp)),
		ItemsWithoutMarkers: []int64{},
		Viewport:            s.vp.State(),
	}
	for _, it := range reg.ItemsWithoutMarkers() {
		data.ItemsWithoutMarkers = append(data.ItemsWithoutMarkers, it.ID())
	}
	s.lastView = data.Viewport
	s.send(OutInit, data)
}

func (s *Session) sendError(msg string) {
	s.send(OutError, map[string]string{"message": msg})
}

func (s *Session) send(typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode outbound", "type", typ, "error", err)
		return
	}
	if err := s.out.Send(Outbound{Type: typ, Data: data}); err != nil {
		s.log.Debug("send outbound", "type", typ, "error", err)
	}
}

// elementBuffer collects element visibility changes between flushes. Only
// the session goroutine touches it.
type elementBuffer struct {
	order   []mapview.Identity
	pending map[mapview.Identity]bool
}

func (b *elementBuffer) SetElementVisible(id mapview.Identity, visible bool) {
	if b.pending == nil {
		b.pending = make(map[mapview.Identity]bool)
	}
	if _, ok := b.pending[id]; !ok {
		b.order = append(b.order, id)
	}
	b.pending[id] = visible
}

func (b *elementBuffer) take() []ElementChange {
	if len(b.order) == 0 {
		return nil
	}
	out := make([]ElementChange, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, ElementChange{Attr: id.DataAttr(), Visible: b.pending[id]})
	}
	b.order, b.pending = nil, nil
	return out
}

// bannerBuffer collects banner display values ("none" or "") between flushes.
type bannerBuffer struct {
	pending map[mapview.Banner]string
}

func (b *bannerBuffer) SetBannerVisible(banner mapview.Banner, visible bool) {
	if b.pending == nil {
		b.pending = make(map[mapview.Banner]string)
	}
	if visible {
		b.pending[banner] = ""
	} else {
		b.pending[banner] = "none"
	}
}

func (b *bannerBuffer) take() map[mapview.Banner]string {
	out := b.pending
	b.pending = nil
	return out
}
