package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `[
	{"id": 1, "name": "Alpha", "color": "#ffffff", "geo": {"lat": 43.263, "lng": -2.935}, "attributes": {"age": {"slug": "adult"}}},
	{"id": 2, "name": "Beta", "color": "#000000", "geo": {"lat": 43.263, "lng": -2.935}, "attributes": {"age": {"slug": "youth"}}},
	{"id": 3, "name": "Elsewhere", "inv_type": "other", "geo": {"lat": 40.4, "lng": -3.7}}
]`

func writeBatch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(batchJSON), 0o644))
	return path
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestBatchFileKeepsMatchingAndUntyped(t *testing.T) {
	recs, err := batchFile(writeBatch(t)).Items(context.Background(), "course")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Alpha", recs[0].Name)
	assert.Equal(t, "Beta", recs[1].Name)
}

func TestMarkersFromFile(t *testing.T) {
	cmd := &MarkersCmd{Type: "course", File: writeBatch(t), Width: 800, Height: 600, MinZoom: 2, MaxZoom: 15}
	var out bytes.Buffer
	require.NoError(t, cmd.Run(context.Background(), &Globals{API: "http://unused", Timeout: time.Second}, &out))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Alpha & Beta", fc.Features[0].Properties["title"])
	assert.EqualValues(t, 2, fc.Features[0].Properties["count"])
}

func TestMarkersFromFileFiltered(t *testing.T) {
	cmd := &MarkersCmd{
		Type: "course", File: writeBatch(t), Filter: map[string]string{"age": "youth"},
		Width: 800, Height: 600, MinZoom: 2, MaxZoom: 15,
	}
	var out bytes.Buffer
	require.NoError(t, cmd.Run(context.Background(), &Globals{API: "http://unused", Timeout: time.Second}, &out))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Beta", fc.Features[0].Properties["title"])
}

func TestNearbyPrintsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/inv/nearby", r.URL.Path)
		assert.Equal(t, "course", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 9, "name": "Choir", "geo": null, "distance": 120.4}]`))
	}))
	defer srv.Close()

	cmd := &NearbyCmd{Lat: 43.26, Lng: -2.93, Type: "course"}
	var out bytes.Buffer
	require.NoError(t, cmd.Run(context.Background(), &Globals{API: srv.URL, Timeout: time.Second}, &out))
	assert.Equal(t, "9\tChoir\t120m\n", out.String())
}

func TestNearbyRequiresType(t *testing.T) {
	cmd := &NearbyCmd{Lat: 43.26, Lng: -2.93}
	err := cmd.Run(context.Background(), &Globals{API: "http://unused", Timeout: time.Second}, &bytes.Buffer{})
	assert.Error(t, err)
}
