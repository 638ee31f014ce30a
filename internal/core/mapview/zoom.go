package mapview

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
)

// DefaultZoomStep is the pause between two zoom levels.
const DefaultZoomStep = 150 * time.Millisecond

var (
	// ErrSuperseded is returned by a smooth zoom that a newer one replaced.
	ErrSuperseded = errors.New("smooth zoom superseded")
	// ErrZoomStalled is returned when the map acknowledged a step without
	// changing its zoom.
	ErrZoomStalled = errors.New("smooth zoom stalled")
)

// Zoomer animates zoom changes one level at a time. Starting a new zoom
// stops the previous one at its next step.
type Zoomer struct {
	step   time.Duration
	gen    atomic.Uint64
	onStep func(zoom int)
}

// ZoomerOption configures a Zoomer.
type ZoomerOption func(*Zoomer)

// WithStepObserver calls fn after each zoom level change.
func WithStepObserver(fn func(zoom int)) ZoomerOption {
	return func(z *Zoomer) { z.onStep = fn }
}

// NewZoomer creates a Zoomer pausing step between levels.
func NewZoomer(step time.Duration, opts ...ZoomerOption) *Zoomer {
	z := &Zoomer{step: step}
	for _, o := range opts {
		o(z)
	}
	return z
}

// Zoom runs a request to the map's maximum zoom.
func (z *Zoomer) Zoom(ctx context.Context, req ZoomRequest) (int, error) {
	target := req.Target
	return z.SmoothZoom(ctx, req.Map, &target, -1)
}

// SmoothZoom steps m toward zoomTo (the map maximum when negative or above
// it), waiting for the zoom-changed acknowledgment and then the step pause
// between levels. Each step pans two thirds of the remaining distance toward
// target when one is given. Once at the target level it pans straight to
// target. It returns the number of levels stepped.
func (z *Zoomer) SmoothZoom(ctx context.Context, m Map, target *orb.Point, zoomTo int) (int, error) {
	gen := z.gen.Add(1)

	if zoomTo < 0 || zoomTo > m.MaxZoom() {
		zoomTo = m.MaxZoom()
	}
	if zoomTo < m.MinZoom() {
		zoomTo = m.MinZoom()
	}

	steps := 0
	for {
		if z.gen.Load() != gen {
			return steps, ErrSuperseded
		}
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		cur := m.Zoom()
		if cur == zoomTo {
			if target != nil {
				m.PanTo(*target)
			}
			return steps, nil
		}

		next := cur + 1
		if cur > zoomTo {
			next = cur - 1
		}

		acked := make(chan struct{}, 1)
		cancel := m.OnZoomChanged(func(int) {
			select {
			case acked <- struct{}{}:
			default:
			}
		})
		m.SetZoom(next)
		if target != nil {
			c := m.Center()
			m.PanTo(orb.Point{
				(c[0] + 2*target[0]) / 3,
				(c[1] + 2*target[1]) / 3,
			})
		}

		select {
		case <-acked:
			cancel()
		case <-ctx.Done():
			cancel()
			return steps, ctx.Err()
		}

		if m.Zoom() == cur {
			return steps, ErrZoomStalled
		}
		steps++
		if z.onStep != nil {
			z.onStep(m.Zoom())
		}

		if z.step > 0 {
			t := time.NewTimer(z.step)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return steps, ctx.Err()
			}
		}
	}
}
