// Package viewport is a headless map: it tracks zoom, center and the visible
// rectangle of a pixel viewport and records marker state instead of drawing.
package viewport

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/mapview"
)

// Defaults match the interactive map pages.
const (
	DefaultMinZoom = 2
	DefaultMaxZoom = 15
	DefaultWidth   = 800
	DefaultHeight  = 600
)

// State is a serializable view of the viewport.
type State struct {
	Zoom   int           `json:"zoom"`
	Lat    float64       `json:"lat"`
	Lng    float64       `json:"lng"`
	Bounds domain.Bounds `json:"bounds"`
	Known  bool          `json:"known"`
}

// Viewport implements mapview.Map. It is safe for concurrent use; listeners
// run on the goroutine that caused the change, after the lock is released.
type Viewport struct {
	mu sync.Mutex

	width, height    int
	minZoom, maxZoom int
	zoom             int
	center           orb.Point
	known            bool
	fitted           *orb.Bound

	markers []*Marker

	nextSub    int
	zoomSubs   map[int]func(int)
	boundsSubs map[int]func()
}

// Option configures a Viewport.
type Option func(*Viewport)

// WithSize sets the pixel size.
func WithSize(width, height int) Option {
	return func(v *Viewport) {
		if width > 0 {
			v.width = width
		}
		if height > 0 {
			v.height = height
		}
	}
}

// WithZoomRange sets the allowed zoom levels.
func WithZoomRange(minZoom, maxZoom int) Option {
	return func(v *Viewport) {
		if minZoom >= 0 && maxZoom >= minZoom {
			v.minZoom, v.maxZoom = minZoom, maxZoom
		}
	}
}

// New creates a viewport at its minimum zoom with unknown bounds.
func New(opts ...Option) *Viewport {
	v := &Viewport{
		width:      DefaultWidth,
		height:     DefaultHeight,
		minZoom:    DefaultMinZoom,
		maxZoom:    DefaultMaxZoom,
		zoomSubs:   make(map[int]func(int)),
		boundsSubs: make(map[int]func()),
	}
	for _, o := range opts {
		o(v)
	}
	v.zoom = v.minZoom
	return v
}

var _ mapview.Map = (*Viewport)(nil)

func (v *Viewport) AddMarker(opts mapview.MarkerOptions) mapview.MarkerHandle {
	mk := &Marker{
		pos:       opts.Position,
		color:     opts.Color,
		animation: opts.Animation,
		visible:   true,
		dirty:     true,
	}
	v.mu.Lock()
	mk.id = len(v.markers)
	v.markers = append(v.markers, mk)
	v.mu.Unlock()
	return mk
}

// Markers returns every placed marker.
func (v *Viewport) Markers() []*Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*Marker, len(v.markers))
	copy(out, v.markers)
	return out
}

// TakeDirty returns the markers changed since the previous call.
func (v *Viewport) TakeDirty() []MarkerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []MarkerState
	for _, mk := range v.markers {
		if mk.takeDirty() {
			out = append(out, mk.State())
		}
	}
	return out
}

func (v *Viewport) Zoom() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

func (v *Viewport) MinZoom() int { return v.minZoom }
func (v *Viewport) MaxZoom() int { return v.maxZoom }

func (v *Viewport) SetZoom(zoom int) {
	v.mu.Lock()
	zoom = v.clamp(zoom)
	if zoom == v.zoom {
		v.mu.Unlock()
		return
	}
	v.zoom = zoom
	v.fitted = nil
	zs, bs := v.listeners()
	v.mu.Unlock()

	notify(zs, bs, zoom, true)
}

func (v *Viewport) Center() orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

func (v *Viewport) PanTo(p orb.Point) {
	v.mu.Lock()
	v.center = p
	v.known = true
	v.fitted = nil
	zs, bs := v.listeners()
	zoom := v.zoom
	v.mu.Unlock()

	notify(zs, bs, zoom, false)
}

// FitBounds centers on b at the highest zoom that shows it. The reported
// bounds always contain b until the next zoom or pan.
func (v *Viewport) FitBounds(b orb.Bound) {
	v.mu.Lock()
	prev := v.zoom
	v.zoom = fitZoom(b, v.minZoom, v.maxZoom, v.width, v.height)
	v.center = b.Center()
	v.known = true
	v.fitted = &b
	zoom := v.zoom
	zs, bs := v.listeners()
	v.mu.Unlock()

	notify(zs, bs, zoom, zoom != prev)
}

// SetView applies a viewport reported by a client: center, zoom and size.
func (v *Viewport) SetView(center orb.Point, zoom, width, height int) {
	v.mu.Lock()
	prev := v.zoom
	v.center = center
	v.zoom = v.clamp(zoom)
	if width > 0 {
		v.width = width
	}
	if height > 0 {
		v.height = height
	}
	v.known = true
	v.fitted = nil
	zoom = v.zoom
	zs, bs := v.listeners()
	v.mu.Unlock()

	notify(zs, bs, zoom, zoom != prev)
}

func (v *Viewport) Bounds() (orb.Bound, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds()
}

func (v *Viewport) bounds() (orb.Bound, bool) {
	if !v.known {
		return orb.Bound{}, false
	}
	b := visibleBound(v.center, v.zoom, v.width, v.height)
	if v.fitted != nil {
		b = b.Union(*v.fitted)
	}
	return b, true
}

// State snapshots zoom, center and bounds.
func (v *Viewport) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := State{Zoom: v.zoom, Lat: v.center.Lat(), Lng: v.center.Lon()}
	if b, ok := v.bounds(); ok {
		s.Known = true
		s.Bounds = domain.Bounds{South: b.Min.Lat(), West: b.Min.Lon(), North: b.Max.Lat(), East: b.Max.Lon()}
	}
	return s
}

func (v *Viewport) OnZoomChanged(fn func(int)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.zoomSubs[id] = fn
	return func() {
		v.mu.Lock()
		delete(v.zoomSubs, id)
		v.mu.Unlock()
	}
}

func (v *Viewport) OnBoundsChanged(fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.boundsSubs[id] = fn
	return func() {
		v.mu.Lock()
		delete(v.boundsSubs, id)
		v.mu.Unlock()
	}
}

func (v *Viewport) clamp(zoom int) int {
	if zoom < v.minZoom {
		return v.minZoom
	}
	if zoom > v.maxZoom {
		return v.maxZoom
	}
	return zoom
}

// listeners copies the subscriber lists; callers hold mu.
func (v *Viewport) listeners() ([]func(int), []func()) {
	zs := make([]func(int), 0, len(v.zoomSubs))
	for _, fn := range v.zoomSubs {
		zs = append(zs, fn)
	}
	bs := make([]func(), 0, len(v.boundsSubs))
	for _, fn := range v.boundsSubs {
		bs = append(bs, fn)
	}
	return zs, bs
}

func notify(zs []func(int), bs []func(), zoom int, zoomChanged bool) {
	if zoomChanged {
		for _, fn := range zs {
			fn(zoom)
		}
	}
	for _, fn := range bs {
		fn()
	}
}
