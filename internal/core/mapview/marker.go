package mapview

import (
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/pkg/colors"
	"github.com/samirrijal/groupmap/internal/pkg/listjoin"
)

// Marker is a pin shared by every item located at one coordinate of one map.
type Marker struct {
	key    string
	m      Map
	pos    orb.Point
	items  []*Item
	color  string
	handle MarkerHandle
	log    *slog.Logger
}

// CoordinateKey returns the "lat,lng" key for a point.
func CoordinateKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

func (mk *Marker) Key() string          { return mk.key }
func (mk *Marker) Map() Map             { return mk.m }
func (mk *Marker) Position() orb.Point  { return mk.pos }
func (mk *Marker) Items() []*Item       { return mk.items }
func (mk *Marker) Color() string        { return mk.color }
func (mk *Marker) Handle() MarkerHandle { return mk.handle }

// VisibleItems returns the linked items whose flag is set, in link order.
func (mk *Marker) VisibleItems() []*Item {
	out := make([]*Item, 0, len(mk.items))
	for _, it := range mk.items {
		if it.visible {
			out = append(out, it)
		}
	}
	return out
}

// Visible reports whether at least one linked item is visible.
func (mk *Marker) Visible() bool {
	for _, it := range mk.items {
		if it.visible {
			return true
		}
	}
	return false
}

// InBounds reports whether the marker lies in its map's visible rectangle.
// A map without known bounds counts every marker as in bounds.
func (mk *Marker) InBounds() bool {
	b, ok := mk.m.Bounds()
	if !ok {
		return true
	}
	return b.Contains(mk.pos)
}

func (mk *Marker) highlighted() bool {
	for _, it := range mk.items {
		if it.highlighted {
			return true
		}
	}
	return false
}

// link connects the marker and the item in both directions, once.
func (mk *Marker) link(it *Item) {
	found := false
	for _, other := range mk.items {
		if other == it {
			found = true
			break
		}
	}
	if !found {
		mk.items = append(mk.items, it)
	}
	for _, other := range it.markers {
		if other == mk {
			return
		}
	}
	it.markers = append(it.markers, mk)
}

// UpdateLabel recomputes color, title, label and handle visibility from the
// currently visible items. Labels are dropped while highlighted.
func (mk *Marker) UpdateLabel(highlighted bool) {
	visible := mk.VisibleItems()

	if len(visible) > 0 {
		tokens := make([]string, 0, len(visible))
		for _, it := range visible {
			tokens = append(tokens, it.Color)
		}
		if c, err := colors.Average(tokens); err != nil {
			mk.log.Warn("marker color unchanged", "marker", mk.key, "error", err)
		} else {
			mk.color = c
			mk.handle.SetIcon(c)
		}
	}
	mk.handle.SetVisible(len(visible) > 0)

	names := make([]string, 0, len(visible))
	for _, it := range visible {
		names = append(names, it.Name)
	}
	mk.handle.SetTitle(listjoin.Join(names))

	if highlighted {
		mk.handle.SetLabel(nil)
		return
	}
	mk.handle.SetLabel(labelFor(visible))
}

func labelFor(visible []*Item) *domain.Label {
	if len(visible) > 1 {
		return &domain.Label{
			Text:     strconv.Itoa(len(visible)),
			Color:    "#000000",
			FontSize: "100%",
		}
	}
	for _, it := range visible {
		if it.Icon != nil {
			l := *it.Icon
			return &l
		}
	}
	return nil
}
