package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	natsadapter "github.com/samirrijal/groupmap/internal/adapters/nats"
	"github.com/samirrijal/groupmap/internal/adapters/postgres"
	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/ports"
	"github.com/samirrijal/groupmap/internal/pkg/config"
	"github.com/samirrijal/groupmap/internal/pkg/logging"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source  string       `json:"source"`
	Batches []BatchEntry `json:"batches"`
}

// BatchEntry names one record batch. Exactly one of File or URL is set.
type BatchEntry struct {
	InvType string `json:"inv_type"`
	File    string `json:"file,omitempty"`
	URL     string `json:"url,omitempty"`
}

const upsertChunk = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("groupmap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, sync events will not be published", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("ingesting record batches", "count", len(manifest.Batches), "source", manifest.Source)

	// Optional type filter: comma separated inv types
	typeFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			typeFilter[strings.TrimSpace(s)] = true
		}
	}

	repo := postgres.NewInvolvementRepo(db)
	client := &fasthttp.Client{ReadTimeout: 120 * time.Second, MaxResponseBodySize: 64 << 20}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent batches

	for _, entry := range manifest.Batches {
		if len(typeFilter) > 0 && !typeFilter[entry.InvType] {
			continue
		}

		wg.Add(1)
		go func(e BatchEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestBatch(ctx, repo, events, client, e); err != nil {
				slog.Error("ingest batch failed", "inv_type", e.InvType, "error", err)
			}
		}(entry)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-batch ingestion
// ---------------------------------------------------------------------------

func ingestBatch(ctx context.Context, repo ports.InvolvementRepository, events ports.EventPublisher, client *fasthttp.Client, e BatchEntry) error {
	raw, err := readBatch(client, e)
	if err != nil {
		return err
	}

	recs, err := decodeBatch(raw, e.InvType)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	for start := 0; start < len(recs); start += upsertChunk {
		end := min(start+upsertChunk, len(recs))
		if err := repo.UpsertBatch(ctx, recs[start:end]); err != nil {
			return fmt.Errorf("upsert records %d-%d: %w", start, end, err)
		}
	}
	metrics.ItemsSynced.WithLabelValues(e.InvType).Add(float64(len(recs)))
	slog.Info("batch loaded", "inv_type", e.InvType, "records", len(recs))

	if events == nil {
		return nil
	}
	event := &domain.SyncEvent{InvType: e.InvType, Count: len(recs), SyncedAt: time.Now().UTC()}
	if err := events.PublishSyncCompleted(ctx, event); err != nil {
		slog.Warn("publish sync completed", "inv_type", e.InvType, "error", err)
	}
	return nil
}

func readBatch(client *fasthttp.Client, e BatchEntry) ([]byte, error) {
	if e.File != "" {
		return os.ReadFile(e.File)
	}
	if e.URL == "" {
		return nil, fmt.Errorf("batch %q has neither file nor url", e.InvType)
	}

	slog.Info("downloading batch", "inv_type", e.InvType, "url", e.URL)
	status, body, err := client.Get(nil, e.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", status, e.URL)
	}
	return body, nil
}

// decodeBatch parses a JSON array of item records. Records without a type
// take the batch type.
func decodeBatch(raw []byte, invType string) ([]domain.ItemRecord, error) {
	var recs []domain.ItemRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].InvType == "" {
			recs[i].InvType = invType
		}
	}
	return recs, nil
}
