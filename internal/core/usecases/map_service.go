package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/viewport"
	"github.com/samirrijal/groupmap/internal/pkg/listjoin"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
)

// MapConfig sizes the headless viewports built for map pages.
type MapConfig struct {
	MinZoom                  int
	MaxZoom                  int
	Width                    int
	Height                   int
	ZoomStep                 time.Duration
	SmallGroupMaxInitialZoom int
}

// MapPage is one placed map: its registry, view and viewport.
type MapPage struct {
	InvType  string
	View     *mapview.View
	Viewport *viewport.Viewport
	Items    []*mapview.Item
	Created  int
}

// ItemLister supplies the records of an involvement type.
type ItemLister interface {
	Items(ctx context.Context, invType string) ([]domain.ItemRecord, error)
}

// MapService builds map pages from stored records.
type MapService struct {
	items ItemLister
	cfg   MapConfig
	log   *slog.Logger
}

// NewMapService creates a new MapService.
func NewMapService(items ItemLister, cfg MapConfig, log *slog.Logger) *MapService {
	if log == nil {
		log = slog.Default()
	}
	return &MapService{items: items, cfg: cfg, log: log}
}

// Config returns the viewport configuration.
func (s *MapService) Config() MapConfig { return s.cfg }

// NewViewport creates a headless viewport. Zero sizes use the configured ones.
func (s *MapService) NewViewport(width, height int) *viewport.Viewport {
	if width <= 0 {
		width = s.cfg.Width
	}
	if height <= 0 {
		height = s.cfg.Height
	}
	opts := []viewport.Option{viewport.WithSize(width, height)}
	if s.cfg.MinZoom > 0 && s.cfg.MaxZoom >= s.cfg.MinZoom {
		opts = append(opts, viewport.WithZoomRange(s.cfg.MinZoom, s.cfg.MaxZoom))
	}
	return viewport.New(opts...)
}

// Place builds a page for recs on vp: items are added, placed, filtered with
// an empty filter set, and small-group maps are capped at their initial zoom.
func (s *MapService) Place(recs []domain.ItemRecord, invType string, vp *viewport.Viewport, opts ...mapview.ViewOption) *MapPage {
	reg := mapview.NewRegistry(s.log)
	view := mapview.NewView(reg, append([]mapview.ViewOption{mapview.WithLogger(s.log)}, opts...)...)

	items := reg.AddRecords(mapview.ShortClassInvolvement, recs)
	created := reg.PlaceItems(items, vp)
	metrics.MarkersPlaced.WithLabelValues(invType).Add(float64(created))

	if invType == SmallGroupType && s.cfg.SmallGroupMaxInitialZoom > 0 && vp.Zoom() > s.cfg.SmallGroupMaxInitialZoom {
		vp.SetZoom(s.cfg.SmallGroupMaxInitialZoom)
	}
	view.ApplyFilters(mapview.FilterSet{})

	return &MapPage{InvType: invType, View: view, Viewport: vp, Items: items, Created: created}
}

// Load fetches the records of invType and places them on a new viewport.
func (s *MapService) Load(ctx context.Context, invType string, width, height int, opts ...mapview.ViewOption) (*MapPage, error) {
	recs, err := s.items.Items(ctx, invType)
	if err != nil {
		return nil, err
	}
	return s.Place(recs, invType, s.NewViewport(width, height), opts...), nil
}

// MarkersGeoJSON aggregates the markers of invType into a FeatureCollection.
func (s *MapService) MarkersGeoJSON(ctx context.Context, invType string, filters mapview.FilterSet) ([]byte, error) {
	page, err := s.Load(ctx, invType, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		page.View.ApplyFilters(filters)
	}
	data, err := MarkerFeatures(page.View.Registry(), page.Viewport).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode markers: %w", err)
	}
	return data, nil
}

// MarkerFeatures renders every marker on m as a point feature carrying its
// aggregated color, title, count and item ids.
func MarkerFeatures(reg *mapview.Registry, m mapview.Map) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, mk := range reg.MarkersOn(m) {
		pos := mk.Position()
		f := geojson.NewPointFeature([]float64{pos.Lon(), pos.Lat()})
		f.ID = mk.Key()

		visible := mk.VisibleItems()
		names := make([]string, 0, len(visible))
		ids := make([]int64, 0, len(visible))
		for _, it := range visible {
			names = append(names, it.Name)
			ids = append(ids, it.ID())
		}
		f.SetProperty("color", mk.Color())
		f.SetProperty("title", listjoin.Join(names))
		f.SetProperty("count", len(visible))
		f.SetProperty("items", ids)
		f.SetProperty("visible", mk.Visible())
		fc.AddFeature(f)
	}
	return fc
}
