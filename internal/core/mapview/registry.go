package mapview

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

type markerKey struct {
	m   Map
	key string
}

// Registry owns the items of a page and the markers they are drawn on.
type Registry struct {
	items          []*Item
	byID           map[Identity]*Item
	markers        []*Marker
	byKey          map[markerKey]*Marker
	withoutMarkers []*Item
	log            *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byID:  make(map[Identity]*Item),
		byKey: make(map[markerKey]*Marker),
		log:   log,
	}
}

// AddRecords instantiates items for a batch of records. Records already known
// under the same identity return the existing item. Records without an id are
// skipped.
func (r *Registry) AddRecords(shortClass string, recs []domain.ItemRecord) []*Item {
	out := make([]*Item, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == 0 {
			r.log.Warn("skipping record without id", "name", rec.Name)
			continue
		}
		id := Identity{ShortClass: shortClass, ID: rec.ID}
		if it, ok := r.byID[id]; ok {
			out = append(out, it)
			continue
		}
		it := newItem(shortClass, rec)
		r.byID[id] = it
		r.items = append(r.items, it)
		out = append(out, it)
	}
	return out
}

// Items returns every item in insertion order.
func (r *Registry) Items() []*Item { return r.items }

// Item looks an item up by identity.
func (r *Registry) Item(id Identity) (*Item, bool) {
	it, ok := r.byID[id]
	return it, ok
}

// Markers returns every marker in creation order.
func (r *Registry) Markers() []*Marker { return r.markers }

// Marker looks a marker up by map and coordinate key.
func (r *Registry) Marker(m Map, key string) (*Marker, bool) {
	mk, ok := r.byKey[markerKey{m: m, key: key}]
	return mk, ok
}

// MarkersOn returns the markers placed on m.
func (r *Registry) MarkersOn(m Map) []*Marker {
	var out []*Marker
	for _, mk := range r.markers {
		if mk.m == m {
			out = append(out, mk)
		}
	}
	return out
}

// ItemsWithoutMarkers returns placed items that had no usable coordinate.
func (r *Registry) ItemsWithoutMarkers() []*Item { return r.withoutMarkers }

// PlaceItems draws items on m, reusing one marker per coordinate, and fits
// the viewport to the placed markers once. It returns the number of markers
// created.
func (r *Registry) PlaceItems(items []*Item, m Map) int {
	var (
		bound   orb.Bound
		placed  bool
		created int
	)

	for _, it := range items {
		for _, p := range it.Geo {
			if !p.Valid() {
				continue
			}
			lat, lng := *p.Lat, *p.Lng
			key := CoordinateKey(lat, lng)

			mk, ok := r.byKey[markerKey{m: m, key: key}]
			if !ok {
				pos := orb.Point{lng, lat}
				mk = &Marker{
					key:   key,
					m:     m,
					pos:   pos,
					color: it.Color,
					log:   r.log,
					handle: m.AddMarker(MarkerOptions{
						Position:  pos,
						Color:     it.Color,
						Animation: AnimationDrop,
					}),
				}
				r.byKey[markerKey{m: m, key: key}] = mk
				r.markers = append(r.markers, mk)
				created++
			}

			mk.link(it)
			mk.UpdateLabel(mk.highlighted())

			if placed {
				bound = bound.Extend(mk.pos)
			} else {
				bound = mk.pos.Bound()
				placed = true
			}
		}

		if len(it.markers) == 0 && !r.listedWithoutMarkers(it) {
			r.withoutMarkers = append(r.withoutMarkers, it)
		}
	}

	if placed {
		m.FitBounds(bound)
	}
	return created
}

func (r *Registry) listedWithoutMarkers(it *Item) bool {
	for _, other := range r.withoutMarkers {
		if other == it {
			return true
		}
	}
	return false
}

// BoundsOf returns the bounding box of every marker ever placed on m.
func (r *Registry) BoundsOf(m Map) (orb.Bound, bool) {
	var (
		bound orb.Bound
		found bool
	)
	for _, mk := range r.markers {
		if mk.m != m {
			continue
		}
		if found {
			bound = bound.Extend(mk.pos)
		} else {
			bound = mk.pos.Bound()
			found = true
		}
	}
	return bound, found
}
