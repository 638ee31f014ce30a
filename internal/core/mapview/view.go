package mapview

import (
	"errors"
	"log/slog"

	"github.com/paulmach/orb"
)

// ErrNotMapped is returned when an item to show has no marker.
var ErrNotMapped = errors.New("item has no map marker")

// Warnings are the viewport conditions that drive the warning banners.
type Warnings struct {
	ExcludesSomeVisibleMarkers   bool `json:"excludes_some_visible_markers"`
	IncludesBothInAndOutOfBounds bool `json:"includes_both_in_and_out_of_bounds"`
	HasHiddenAndVisibleSiblings  bool `json:"has_hidden_and_visible_siblings"`
}

// Banners maps the conditions to banner visibility.
func (w Warnings) Banners() map[Banner]bool {
	return map[Banner]bool{
		BannerVisibleOnly:         w.ExcludesSomeVisibleMarkers && !w.HasHiddenAndVisibleSiblings,
		BannerVisibleAndInvisible: w.HasHiddenAndVisibleSiblings,
		BannerZoomOrReset:         w.ExcludesSomeVisibleMarkers,
	}
}

// ZoomRequest is a smooth zoom the caller should run, usually off the event
// goroutine, through a Zoomer.
type ZoomRequest struct {
	Map    Map
	Target orb.Point
}

// View ties a registry to the page around it: filters, element visibility,
// banners and deep-link routing.
type View struct {
	reg      *Registry
	filters  FilterSet
	router   *Router
	elements ElementSink
	banners  BannerSink
	log      *slog.Logger

	shown      map[Identity]bool
	bannerSeen map[Banner]bool
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithElementSink routes element visibility changes to s.
func WithElementSink(s ElementSink) ViewOption {
	return func(v *View) { v.elements = s }
}

// WithBannerSink routes banner changes to s.
func WithBannerSink(s BannerSink) ViewOption {
	return func(v *View) { v.banners = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ViewOption {
	return func(v *View) { v.log = l }
}

// NewView creates a view over reg with no active filters.
func NewView(reg *Registry, opts ...ViewOption) *View {
	v := &View{
		reg:        reg,
		filters:    FilterSet{},
		log:        slog.Default(),
		shown:      make(map[Identity]bool),
		bannerSeen: make(map[Banner]bool),
	}
	for _, o := range opts {
		o(v)
	}
	v.router = NewRouter(v.log)
	return v
}

func (v *View) Registry() *Registry { return v.reg }
func (v *View) Router() *Router     { return v.router }

// Filters returns a copy of the active filter set.
func (v *View) Filters() FilterSet { return v.filters.Clone() }

// ApplyFilters replaces the filter set (dropping keys whose value is empty)
// and re-evaluates every item, then
// refreshes every marker once, element visibility and banners. It returns
// how many items changed visibility.
func (v *View) ApplyFilters(fs FilterSet) int {
	v.filters = fs.Clone()

	changed := 0
	for _, it := range v.reg.items {
		want := v.filters.Matches(it.Attributes)
		if it.visible != want {
			it.visible = want
			changed++
		}
	}

	for _, mk := range v.reg.markers {
		mk.UpdateLabel(mk.highlighted())
	}
	v.applyElements()
	v.updateBanners()

	v.log.Debug("filters applied", "filters", len(v.filters), "changed", changed)
	return changed
}

// SetFilter changes one filter key (an empty value clears it) and
// re-evaluates every item.
func (v *View) SetFilter(key, value string) int {
	fs := v.filters.Clone()
	fs.Set(key, value)
	return v.ApplyFilters(fs)
}

// Warnings computes the viewport conditions across every map.
func (v *View) Warnings() Warnings {
	w := Warnings{ExcludesSomeVisibleMarkers: v.excludesSomeVisibleMarkers()}
	for _, it := range v.reg.items {
		if it.Visible() && it.inAndOutOfBounds() {
			w.IncludesBothInAndOutOfBounds = true
			break
		}
	}
	w.HasHiddenAndVisibleSiblings = w.IncludesBothInAndOutOfBounds
	return w
}

func (v *View) excludesSomeVisibleMarkers() bool {
	for _, mk := range v.reg.markers {
		if mk.Visible() && !mk.InBounds() {
			return true
		}
	}
	return false
}

// ElementVisible is the effective visibility of the item's page elements.
// Out-of-view items are only hidden while some visible marker is excluded.
func (v *View) ElementVisible(it *Item) bool {
	return it.Visible() && (it.InBounds() || !v.excludesSomeVisibleMarkers())
}

// BoundsChanged refreshes element visibility (on pages listing more than one
// item) and banners after the viewport moved.
func (v *View) BoundsChanged() {
	if len(v.reg.items) > 1 {
		v.applyElements()
	}
	v.updateBanners()
}

// ResetToFit fits m to every marker ever placed on it and clears the
// current deep link.
func (v *View) ResetToFit(m Map) {
	v.router.Clear()
	if b, ok := v.reg.BoundsOf(m); ok {
		m.FitBounds(b)
	}
	v.BoundsChanged()
}

// SetHighlighted moves an item between idle and highlighted. Highlighted
// markers bounce unless the page holds a single item, and drop their labels
// while animating.
func (v *View) SetHighlighted(it *Item, on bool) {
	if it.highlighted == on {
		return
	}
	it.highlighted = on
	bounce := len(v.reg.items) > 1

	for _, mk := range it.markers {
		h := mk.Handle()
		if on {
			if bounce && h.Animation() != AnimationBounce {
				h.SetAnimation(AnimationBounce)
			}
			mk.UpdateLabel(true)
			continue
		}
		if !mk.highlighted() {
			h.SetAnimation(AnimationNone)
		}
		mk.UpdateLabel(mk.highlighted())
	}
}

// MarkerClicked clears the deep link and returns the zoom toward the marker.
func (v *View) MarkerClicked(mk *Marker) ZoomRequest {
	v.router.Clear()
	return ZoomRequest{Map: mk.m, Target: mk.pos}
}

// ShowOnMap deep-links the item and returns the zoom toward its marker. An
// item drawn at several places hides every other item instead and returns
// nil.
func (v *View) ShowOnMap(it *Item) (*ZoomRequest, error) {
	v.router.Apply(ActionShowOnMap, it.ident)

	switch len(it.markers) {
	case 0:
		v.log.Warn("item cannot be shown on the map", "item", it.ident.String())
		return nil, ErrNotMapped
	case 1:
		mk := it.markers[0]
		return &ZoomRequest{Map: mk.m, Target: mk.pos}, nil
	}

	v.log.Warn("item has several markers, hiding the others", "item", it.ident.String(), "markers", len(it.markers))
	for _, other := range v.reg.items {
		if other != it {
			other.visible = false
		}
	}
	for _, mk := range v.reg.markers {
		mk.UpdateLabel(mk.highlighted())
	}
	v.applyElements()
	v.updateBanners()
	return nil, nil
}

// RegisterShowOnMap makes every mapped item reachable through a
// tp-showonmap fragment. fn receives the resulting zoom request.
func (v *View) RegisterShowOnMap(fn func(*ZoomRequest, error)) {
	for _, it := range v.reg.items {
		if len(it.markers) == 0 {
			continue
		}
		it := it
		v.router.Register(ActionShowOnMap, it.ident, func() {
			fn(v.ShowOnMap(it))
		})
	}
}

func (v *View) applyElements() {
	if v.elements == nil {
		return
	}
	excludes := v.excludesSomeVisibleMarkers()
	for _, it := range v.reg.items {
		show := it.Visible() && (it.InBounds() || !excludes)
		if prev, ok := v.shown[it.ident]; ok && prev == show {
			continue
		}
		v.shown[it.ident] = show
		v.elements.SetElementVisible(it.ident, show)
	}
}

func (v *View) updateBanners() {
	if v.banners == nil {
		return
	}
	for b, show := range v.Warnings().Banners() {
		if prev, ok := v.bannerSeen[b]; ok && prev == show {
			continue
		}
		v.bannerSeen[b] = show
		v.banners.SetBannerVisible(b, show)
	}
}
