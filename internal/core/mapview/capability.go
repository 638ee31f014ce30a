// Package mapview keeps items, map markers, filters and viewport warnings
// consistent with each other.
//
// A View and its Registry are not safe for concurrent use. Callers run all
// mutations from one goroutine and hand asynchronous work (smooth zoom,
// geolocation) to other goroutines that post their results back.
package mapview

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// Animation is a marker animation state.
type Animation int

const (
	AnimationNone Animation = iota
	AnimationBounce
	AnimationDrop
)

func (a Animation) String() string {
	switch a {
	case AnimationBounce:
		return "bounce"
	case AnimationDrop:
		return "drop"
	default:
		return "none"
	}
}

// MarkerOptions describe a pin to place.
type MarkerOptions struct {
	Position  orb.Point
	Color     string
	Animation Animation
}

// MarkerHandle is a placed pin on a rendered map.
type MarkerHandle interface {
	Position() orb.Point
	SetPosition(p orb.Point)
	SetIcon(fillColor string)
	SetLabel(label *domain.Label)
	SetTitle(title string)
	SetVisible(visible bool)
	Animation() Animation
	SetAnimation(a Animation)
}

// Map is the viewport capability of a rendered map. Bounds reports false
// until the map has a known visible rectangle. The cancel funcs returned by
// the subscriptions remove the listener.
type Map interface {
	AddMarker(opts MarkerOptions) MarkerHandle

	Zoom() int
	SetZoom(zoom int)
	MinZoom() int
	MaxZoom() int

	Center() orb.Point
	PanTo(p orb.Point)
	FitBounds(b orb.Bound)
	Bounds() (orb.Bound, bool)

	OnBoundsChanged(fn func()) (cancel func())
	OnZoomChanged(fn func(zoom int)) (cancel func())
}

// ElementSink shows or hides page elements bound to an item
// (data-<shortclass>="<id>").
type ElementSink interface {
	SetElementVisible(id Identity, visible bool)
}

// Banner names a viewport warning banner.
type Banner string

const (
	BannerVisibleOnly         Banner = "visibleOnly"
	BannerVisibleAndInvisible Banner = "visibleAndInvisible"
	BannerZoomOrReset         Banner = "zoomOrReset"
)

// Banners lists every banner in display order.
var Banners = []Banner{BannerVisibleOnly, BannerVisibleAndInvisible, BannerZoomOrReset}

// BannerSink toggles warning banners.
type BannerSink interface {
	SetBannerVisible(b Banner, visible bool)
}
