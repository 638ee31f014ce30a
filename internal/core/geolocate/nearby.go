package geolocate

import (
	"context"
	"sync/atomic"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// NearbyKind selects the listing to query.
type NearbyKind string

const (
	NearbyInvolvements NearbyKind = "inv"
	NearbySmallGroups  NearbyKind = "sg"
)

// NearbyQuery asks for the records closest to a point.
type NearbyQuery struct {
	Kind    NearbyKind
	Lat     float64
	Lng     float64
	InvType string
	Limit   int
}

// NearbySource answers nearby queries.
type NearbySource interface {
	Nearby(ctx context.Context, q NearbyQuery) ([]domain.ItemRecord, error)
}

// NearbyFinder resolves the user's location and lists the closest records.
// A newer Find makes the callbacks of older ones no-ops.
type NearbyFinder struct {
	loc *Locator
	src NearbySource
	gen atomic.Uint64
}

// NewNearbyFinder creates a finder querying src from loc's location.
func NewNearbyFinder(loc *Locator, src NearbySource) *NearbyFinder {
	return &NearbyFinder{loc: loc, src: src}
}

// Find blocks until the location and the query settle. onLoaded receives the
// records and the location they were measured from; query errors reach
// onError unchanged.
func (f *NearbyFinder) Find(ctx context.Context, kind NearbyKind, invType string, limit int,
	onLoaded func([]domain.ItemRecord, domain.GeoResult), onError func(error)) {
	gen := f.gen.Add(1)
	current := func() bool { return f.gen.Load() == gen }

	f.loc.Resolve(ctx, SourceBoth, func(res domain.GeoResult) {
		if !current() {
			return
		}
		recs, err := f.src.Nearby(ctx, NearbyQuery{
			Kind:    kind,
			Lat:     res.Lat,
			Lng:     res.Lng,
			InvType: invType,
			Limit:   limit,
		})
		if !current() {
			return
		}
		if err != nil {
			onError(err)
			return
		}
		onLoaded(recs, res)
	}, func(err error) {
		if current() {
			onError(err)
		}
	})
}
