package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/usecases"
)

func dist(m float64) *float64 { return &m }

func TestInvolvementService_Nearby(t *testing.T) {
	repo := &mockInvolvementRepo{
		findNearbyFn: func(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
			if invType != "course" {
				t.Errorf("expected inv type course, got %s", invType)
			}
			return []domain.ItemRecord{
				{ID: 1, Name: "Bible Study", Distance: dist(450)},
				{ID: 2, Name: "Choir", Distance: dist(1200)},
			}, nil
		},
	}

	svc := usecases.NewInvolvementService(repo, nil, nil, usecases.InvolvementConfig{})
	recs, err := svc.Nearby(context.Background(), geolocate.NearbyQuery{
		Kind: geolocate.NearbyInvolvements, Lat: 43.26, Lng: -2.93, InvType: "course",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Name != "Bible Study" {
		t.Errorf("expected Bible Study, got %s", recs[0].Name)
	}
}

func TestInvolvementService_Nearby_ClampLimit(t *testing.T) {
	var got []int
	repo := &mockInvolvementRepo{
		findNearbyFn: func(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
			got = append(got, limit)
			return nil, nil
		},
	}

	svc := usecases.NewInvolvementService(repo, nil, nil, usecases.InvolvementConfig{DefaultLimit: 3, MaxLimit: 25})
	for _, limit := range []int{0, -4, 10, 999} {
		_, _ = svc.Nearby(context.Background(), geolocate.NearbyQuery{Kind: geolocate.NearbyInvolvements, Limit: limit})
	}

	want := []int{3, 3, 10, 25}
	if len(got) != len(want) {
		t.Fatalf("expected %d repo calls, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected limit %d, got %d", i, want[i], got[i])
		}
	}
}

func TestInvolvementService_Nearby_SmallGroupsUseTheirType(t *testing.T) {
	repo := &mockInvolvementRepo{
		findNearbyFn: func(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
			if invType != usecases.SmallGroupType {
				t.Errorf("expected inv type %s, got %s", usecases.SmallGroupType, invType)
			}
			return nil, nil
		},
	}

	svc := usecases.NewInvolvementService(repo, nil, nil, usecases.InvolvementConfig{})
	_, err := svc.Nearby(context.Background(), geolocate.NearbyQuery{Kind: geolocate.NearbySmallGroups, InvType: "course"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvolvementService_Nearby_InvalidCoordinates(t *testing.T) {
	svc := usecases.NewInvolvementService(&mockInvolvementRepo{}, nil, nil, usecases.InvolvementConfig{})
	_, err := svc.Nearby(context.Background(), geolocate.NearbyQuery{Lat: 91, Lng: 0})
	if !errors.Is(err, usecases.ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestInvolvementService_Nearby_RepoError(t *testing.T) {
	boom := errors.New("connection refused")
	repo := &mockInvolvementRepo{
		findNearbyFn: func(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
			return nil, boom
		},
	}

	svc := usecases.NewInvolvementService(repo, nil, nil, usecases.InvolvementConfig{})
	_, err := svc.Nearby(context.Background(), geolocate.NearbyQuery{})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repo error, got %v", err)
	}
}

func TestInvolvementService_Items_Cached(t *testing.T) {
	calls := 0
	repo := &mockInvolvementRepo{
		listByTypeFn: func(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
			calls++
			return []domain.ItemRecord{{ID: 1, Name: "Alpha", Geo: domain.GeoPoints{domain.Point(43.26, -2.93)}}}, nil
		},
	}
	cache := newMemCache()

	svc := usecases.NewInvolvementService(repo, nil, cache, usecases.InvolvementConfig{})
	for i := 0; i < 3; i++ {
		recs, err := svc.Items(context.Background(), "course")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recs) != 1 || recs[0].Name != "Alpha" {
			t.Fatalf("unexpected records: %+v", recs)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repo call, got %d", calls)
	}
}

func TestInvolvementService_SyncInvalidatesCache(t *testing.T) {
	calls := 0
	repo := &mockInvolvementRepo{
		listByTypeFn: func(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
			calls++
			return []domain.ItemRecord{{ID: int64(calls), Name: "Alpha"}}, nil
		},
	}

	svc := usecases.NewInvolvementService(repo, nil, newMemCache(), usecases.InvolvementConfig{})
	ctx := context.Background()
	if _, err := svc.Items(ctx, "course"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.HandleSyncCompleted(ctx, &domain.SyncEvent{InvType: "course", Count: 1, SyncedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Generation() != 1 {
		t.Errorf("expected generation 1, got %d", svc.Generation())
	}

	recs, err := svc.Items(ctx, "course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 repo calls after sync, got %d", calls)
	}
	if recs[0].ID != 2 {
		t.Errorf("expected fresh record 2, got %d", recs[0].ID)
	}
}

func TestInvolvementService_Items_EmptyType(t *testing.T) {
	svc := usecases.NewInvolvementService(&mockInvolvementRepo{}, nil, nil, usecases.InvolvementConfig{})
	if _, err := svc.Items(context.Background(), ""); err == nil {
		t.Error("expected error for empty type")
	}
}

func TestInvolvementService_Stats(t *testing.T) {
	stats := &mockStatsRepo{stats: []domain.TypeStats{{InvType: "smallgroup", Items: 12, Located: 10}}}
	svc := usecases.NewInvolvementService(&mockInvolvementRepo{}, stats, nil, usecases.InvolvementConfig{})

	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Located != 10 {
		t.Errorf("unexpected stats: %+v", got)
	}

	none := usecases.NewInvolvementService(&mockInvolvementRepo{}, nil, nil, usecases.InvolvementConfig{})
	if got, err := none.Stats(context.Background()); err != nil || got != nil {
		t.Errorf("expected no stats without a repository, got %+v, %v", got, err)
	}
}
