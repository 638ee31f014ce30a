package viewport

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/mapview"
)

// MarkerState is a serializable view of a marker.
type MarkerState struct {
	ID        int           `json:"id"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	Color     string        `json:"color"`
	Label     *domain.Label `json:"label,omitempty"`
	Title     string        `json:"title"`
	Visible   bool          `json:"visible"`
	Animation string        `json:"animation"`
}

// Marker records what a rendered pin would show.
type Marker struct {
	mu sync.Mutex

	id        int
	pos       orb.Point
	color     string
	label     *domain.Label
	title     string
	visible   bool
	animation mapview.Animation
	dirty     bool
}

var _ mapview.MarkerHandle = (*Marker)(nil)

// ID is the marker's index on its viewport.
func (m *Marker) ID() int { return m.id }

func (m *Marker) Position() orb.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Marker) SetPosition(p orb.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos != p {
		m.pos = p
		m.dirty = true
	}
}

func (m *Marker) SetIcon(fillColor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.color != fillColor {
		m.color = fillColor
		m.dirty = true
	}
}

func (m *Marker) SetLabel(label *domain.Label) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !sameLabel(m.label, label) {
		m.label = label
		m.dirty = true
	}
}

func (m *Marker) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.title != title {
		m.title = title
		m.dirty = true
	}
}

func (m *Marker) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.visible != visible {
		m.visible = visible
		m.dirty = true
	}
}

func (m *Marker) Animation() mapview.Animation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.animation
}

func (m *Marker) SetAnimation(a mapview.Animation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.animation != a {
		m.animation = a
		m.dirty = true
	}
}

// State snapshots the marker.
func (m *Marker) State() MarkerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

func (m *Marker) state() MarkerState {
	s := MarkerState{
		ID:        m.id,
		Lat:       m.pos.Lat(),
		Lng:       m.pos.Lon(),
		Color:     m.color,
		Title:     m.title,
		Visible:   m.visible,
		Animation: m.animation.String(),
	}
	if m.label != nil {
		l := *m.label
		s.Label = &l
	}
	return s
}

func (m *Marker) takeDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty
	m.dirty = false
	return d
}

func sameLabel(a, b *domain.Label) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
