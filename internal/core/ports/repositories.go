package ports

import (
	"context"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// InvolvementRepository persists mappable involvement records.
type InvolvementRepository interface {
	UpsertBatch(ctx context.Context, items []domain.ItemRecord) error
	GetByID(ctx context.Context, id int64) (*domain.ItemRecord, error)
	ListByType(ctx context.Context, invType string) ([]domain.ItemRecord, error)
	FindNearby(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error)
}

// StatsRepository reports what has been loaded per involvement type.
type StatsRepository interface {
	Stats(ctx context.Context) ([]domain.TypeStats, error)
}
