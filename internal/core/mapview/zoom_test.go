package mapview_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/viewport"
)

func TestSmoothZoom_StepsOneLevelAtATime(t *testing.T) {
	for from := viewport.DefaultMinZoom; from <= viewport.DefaultMaxZoom; from++ {
		for to := viewport.DefaultMinZoom; to <= viewport.DefaultMaxZoom; to++ {
			t.Run(fmt.Sprintf("%d_to_%d", from, to), func(t *testing.T) {
				vp := viewport.New()
				vp.SetView(orb.Point{0, 0}, from, 0, 0)

				var seen []int
				z := mapview.NewZoomer(0, mapview.WithStepObserver(func(zoom int) { seen = append(seen, zoom) }))
				steps, err := z.SmoothZoom(context.Background(), vp, nil, to)
				require.NoError(t, err)

				want := to - from
				if want < 0 {
					want = -want
				}
				assert.Equal(t, want, steps)
				assert.Equal(t, to, vp.Zoom())
				for i := 1; i < len(seen); i++ {
					d := seen[i] - seen[i-1]
					assert.True(t, d == 1 || d == -1, "zoom jumped from %d to %d", seen[i-1], seen[i])
				}
			})
		}
	}
}

func TestSmoothZoom_PansToTarget(t *testing.T) {
	vp := viewport.New()
	vp.SetView(orb.Point{0, 0}, 5, 0, 0)
	target := orb.Point{-75.0, 40.0}

	steps, err := mapview.NewZoomer(0).SmoothZoom(context.Background(), vp, &target, -1)
	require.NoError(t, err)
	assert.Equal(t, 10, steps)
	assert.Equal(t, vp.MaxZoom(), vp.Zoom())
	assert.Equal(t, target, vp.Center())
}

func TestSmoothZoom_ClampsTarget(t *testing.T) {
	vp := viewport.New()
	vp.SetView(orb.Point{0, 0}, 14, 0, 0)

	z := mapview.NewZoomer(0)
	steps, err := z.SmoothZoom(context.Background(), vp, nil, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.Equal(t, 15, vp.Zoom())

	_, err = z.SmoothZoom(context.Background(), vp, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, vp.MinZoom(), vp.Zoom())
}

func TestSmoothZoom_AlreadyAtTarget(t *testing.T) {
	vp := viewport.New()
	vp.SetView(orb.Point{0, 0}, 15, 0, 0)
	target := orb.Point{2, 3}

	steps, err := mapview.NewZoomer(0).Zoom(context.Background(), mapview.ZoomRequest{Map: vp, Target: target})
	require.NoError(t, err)
	assert.Equal(t, 0, steps)
	assert.Equal(t, target, vp.Center())
}

func TestSmoothZoom_NewerZoomSupersedes(t *testing.T) {
	vp := viewport.New()
	vp.SetView(orb.Point{0, 0}, 2, 0, 0)

	var (
		z      *mapview.Zoomer
		fired  bool
		inner  int
		errIn  error
		target = orb.Point{10, 10}
	)
	z = mapview.NewZoomer(0, mapview.WithStepObserver(func(int) {
		if fired {
			return
		}
		fired = true
		inner, errIn = z.SmoothZoom(context.Background(), vp, &target, 6)
	}))

	steps, err := z.SmoothZoom(context.Background(), vp, nil, 15)
	assert.ErrorIs(t, err, mapview.ErrSuperseded)
	assert.Equal(t, 1, steps)

	require.NoError(t, errIn)
	assert.Equal(t, 3, inner)
	assert.Equal(t, 6, vp.Zoom())
	assert.Equal(t, target, vp.Center())
}

func TestSmoothZoom_ContextCanceled(t *testing.T) {
	vp := viewport.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps, err := mapview.NewZoomer(0).SmoothZoom(ctx, vp, nil, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, steps)
	assert.Equal(t, vp.MinZoom(), vp.Zoom())
}
