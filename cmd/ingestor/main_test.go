package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

type recordingRepo struct {
	batches [][]domain.ItemRecord
	err     error
}

func (r *recordingRepo) UpsertBatch(_ context.Context, items []domain.ItemRecord) error {
	r.batches = append(r.batches, items)
	return r.err
}

func (r *recordingRepo) GetByID(context.Context, int64) (*domain.ItemRecord, error) {
	return nil, domain.ErrNotFound
}

func (r *recordingRepo) ListByType(context.Context, string) ([]domain.ItemRecord, error) {
	return nil, nil
}

func (r *recordingRepo) FindNearby(context.Context, float64, float64, string, int) ([]domain.ItemRecord, error) {
	return nil, nil
}

type recordingPublisher struct {
	synced []*domain.SyncEvent
}

func (p *recordingPublisher) PublishLocated(context.Context, *domain.GeoResult) error { return nil }

func (p *recordingPublisher) PublishLocateError(context.Context, string) error { return nil }

func (p *recordingPublisher) PublishSyncCompleted(_ context.Context, e *domain.SyncEvent) error {
	p.synced = append(p.synced, e)
	return nil
}

func TestDecodeBatchFillsType(t *testing.T) {
	raw := []byte(`[
		{"id": 1, "name": "Choir", "geo": {"lat": 43.26, "lng": -2.93}},
		{"id": 2, "name": "Readers", "inv_type": "smallgroup", "geo": null}
	]`)

	recs, err := decodeBatch(raw, "volunteer")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "volunteer", recs[0].InvType)
	assert.Equal(t, "smallgroup", recs[1].InvType)
	assert.Len(t, recs[0].Geo, 1)
	assert.Empty(t, recs[1].Geo)
}

func TestDecodeBatchRejectsObject(t *testing.T) {
	_, err := decodeBatch([]byte(`{"id": 1}`), "volunteer")
	assert.Error(t, err)
}

func TestIngestBatchFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 7, "name": "Choir"}, {"id": 8, "name": "Band"}]`), 0o644))

	repo := &recordingRepo{}
	pub := &recordingPublisher{}
	err := ingestBatch(context.Background(), repo, pub, nil, BatchEntry{InvType: "volunteer", File: path})
	require.NoError(t, err)

	require.Len(t, repo.batches, 1)
	assert.Len(t, repo.batches[0], 2)
	require.Len(t, pub.synced, 1)
	assert.Equal(t, "volunteer", pub.synced[0].InvType)
	assert.Equal(t, 2, pub.synced[0].Count)
}

func TestIngestBatchUpsertErrorSkipsEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 7, "name": "Choir"}]`), 0o644))

	repo := &recordingRepo{err: errors.New("db down")}
	pub := &recordingPublisher{}
	err := ingestBatch(context.Background(), repo, pub, nil, BatchEntry{InvType: "volunteer", File: path})
	assert.Error(t, err)
	assert.Empty(t, pub.synced)
}

func TestReadBatchNeedsSource(t *testing.T) {
	_, err := readBatch(nil, BatchEntry{InvType: "volunteer"})
	assert.Error(t, err)
}
