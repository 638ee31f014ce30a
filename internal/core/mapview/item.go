package mapview

import (
	"strings"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

const defaultItemColor = "#000"

// Item is a mappable record. Its visibility flag is the only state changed
// after creation.
type Item struct {
	ident      Identity
	Name       string
	PostID     int64
	InvType    string
	Color      string
	Geo        []domain.GeoPoint
	Attributes map[string]domain.Attribute
	Icon       *domain.Label

	visible     bool
	highlighted bool
	markers     []*Marker
}

func newItem(shortClass string, rec domain.ItemRecord) *Item {
	it := &Item{
		ident:      Identity{ShortClass: shortClass, ID: rec.ID},
		Name:       strings.ReplaceAll(rec.Name, "&amp;", "&"),
		PostID:     rec.PostID,
		InvType:    rec.InvType,
		Color:      rec.Color,
		Attributes: rec.Attributes,
		Icon:       rec.Icon,
		visible:    true,
	}
	if it.Color == "" {
		it.Color = defaultItemColor
	}
	for _, p := range rec.Geo {
		it.Geo = append(it.Geo, p.Rounded())
	}
	return it
}

func (it *Item) Identity() Identity { return it.ident }
func (it *Item) ID() int64          { return it.ident.ID }

// Markers returns the markers the item is drawn on.
func (it *Item) Markers() []*Marker { return it.markers }

// Highlighted reports the hover state.
func (it *Item) Highlighted() bool { return it.highlighted }

// Enabled is the item's own visibility flag, as set by filters.
func (it *Item) Enabled() bool { return it.visible }

// Visible reports whether the item is shown: its flag is set and it either
// has no markers or at least one of them is visible.
func (it *Item) Visible() bool {
	if !it.visible {
		return false
	}
	if len(it.markers) == 0 {
		return true
	}
	for _, mk := range it.markers {
		if mk.Visible() {
			return true
		}
	}
	return false
}

// InBounds reports whether any of the item's markers lies in its map's bounds.
func (it *Item) InBounds() bool {
	for _, mk := range it.markers {
		if mk.InBounds() {
			return true
		}
	}
	return false
}

// inAndOutOfBounds reports whether the item has markers both inside and
// outside of the visible rectangle.
func (it *Item) inAndOutOfBounds() bool {
	var in, out bool
	for _, mk := range it.markers {
		if mk.InBounds() {
			in = true
		} else {
			out = true
		}
	}
	return in && out
}
