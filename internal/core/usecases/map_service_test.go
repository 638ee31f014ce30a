package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/usecases"
)

type staticItems map[string][]domain.ItemRecord

func (s staticItems) Items(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
	recs, ok := s[invType]
	if !ok {
		return nil, errors.New("unknown type")
	}
	return recs, nil
}

func mapConfig() usecases.MapConfig {
	return usecases.MapConfig{MinZoom: 2, MaxZoom: 15, Width: 800, Height: 600, SmallGroupMaxInitialZoom: 13}
}

func TestMapService_Place_SmallGroupZoomCap(t *testing.T) {
	svc := usecases.NewMapService(nil, mapConfig(), nil)
	recs := []domain.ItemRecord{{ID: 1, Name: "Solo", Geo: domain.GeoPoints{domain.Point(43.26, -2.93)}}}

	sg := svc.Place(recs, usecases.SmallGroupType, svc.NewViewport(0, 0))
	if z := sg.Viewport.Zoom(); z != 13 {
		t.Errorf("expected small-group zoom capped to 13, got %d", z)
	}

	other := svc.Place(recs, "course", svc.NewViewport(0, 0))
	if z := other.Viewport.Zoom(); z != 15 {
		t.Errorf("expected single marker fit at max zoom 15, got %d", z)
	}
	if other.Created != 1 {
		t.Errorf("expected 1 marker created, got %d", other.Created)
	}
}

func TestMapService_MarkersGeoJSON(t *testing.T) {
	items := staticItems{
		"course": {
			{ID: 1, Name: "Alpha", Color: "#fff", Geo: domain.GeoPoints{domain.Point(43.26, -2.93)}},
			{ID: 2, Name: "Beta", Color: "#000", Geo: domain.GeoPoints{domain.Point(43.26, -2.93)}},
			{ID: 3, Name: "Gamma", Color: "#f00", Geo: domain.GeoPoints{domain.Point(40.4, -3.7)},
				Attributes: map[string]domain.Attribute{"age": domain.TermAttr("adult")}},
		},
	}
	svc := usecases.NewMapService(items, mapConfig(), nil)

	data, err := svc.MarkersGeoJSON(context.Background(), "course", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string `json:"id"`
			Properties struct {
				Color   string  `json:"color"`
				Title   string  `json:"title"`
				Count   int     `json:"count"`
				Items   []int64 `json:"items"`
				Visible bool    `json:"visible"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	shared := fc.Features[0].Properties
	if shared.Color != "#808080" || shared.Count != 2 || shared.Title != "Alpha & Beta" {
		t.Errorf("unexpected shared marker: %+v", shared)
	}
	if fc.Features[0].ID != "43.26,-2.93" {
		t.Errorf("expected coordinate key id, got %s", fc.Features[0].ID)
	}

	// Filtering hides the shared marker.
	data, err = svc.MarkersGeoJSON(context.Background(), "course", mapview.FilterSet{"age": "adult"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Features[0].Properties.Visible {
		t.Error("expected shared marker hidden by filter")
	}
	if !fc.Features[1].Properties.Visible || fc.Features[1].Properties.Title != "Gamma" {
		t.Errorf("unexpected filtered marker: %+v", fc.Features[1].Properties)
	}
}

func TestMapService_LoadError(t *testing.T) {
	svc := usecases.NewMapService(staticItems{}, mapConfig(), nil)
	if _, err := svc.Load(context.Background(), "missing", 0, 0); err == nil {
		t.Error("expected error for unknown type")
	}
}
