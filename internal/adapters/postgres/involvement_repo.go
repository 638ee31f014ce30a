package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

// InvolvementRepo implements ports.InvolvementRepository with pgx and PostGIS.
type InvolvementRepo struct {
	db *DB
}

// NewInvolvementRepo creates a new InvolvementRepo.
func NewInvolvementRepo(db *DB) *InvolvementRepo {
	return &InvolvementRepo{db: db}
}

const selectInvolvement = `
	SELECT i.id, i.name, i.post_id, i.inv_type, i.color,
	       i.attributes, i.icon, i.updated_at,
	       COALESCE((
	           SELECT json_agg(json_build_object('lat', l.lat, 'lng', l.lng) ORDER BY l.position)
	           FROM involvement_locations l
	           WHERE l.involvement_id = i.id
	       ), '[]'::json) AS geo`

// UpsertBatch inserts or replaces many records, including their locations,
// using a single pgx.Batch.
func (r *InvolvementRepo) UpsertBatch(ctx context.Context, items []domain.ItemRecord) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		attrs, err := json.Marshal(it.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes of %d: %w", it.ID, err)
		}
		if it.Attributes == nil {
			attrs = []byte("{}")
		}
		var icon []byte
		if it.Icon != nil {
			if icon, err = json.Marshal(it.Icon); err != nil {
				return fmt.Errorf("encode icon of %d: %w", it.ID, err)
			}
		}

		batch.Queue(`
			INSERT INTO involvements (id, inv_type, name, post_id, color, attributes, icon, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE
			SET inv_type = EXCLUDED.inv_type, name = EXCLUDED.name, post_id = EXCLUDED.post_id,
			    color = EXCLUDED.color, attributes = EXCLUDED.attributes, icon = EXCLUDED.icon,
			    updated_at = now()
		`, it.ID, it.InvType, it.Name, it.PostID, it.Color, attrs, icon)
		batch.Queue(`DELETE FROM involvement_locations WHERE involvement_id = $1`, it.ID)

		for pos, p := range it.Geo {
			batch.Queue(`
				INSERT INTO involvement_locations (involvement_id, position, lat, lng, location)
				VALUES ($1, $2, $3::float8, $4::float8,
				        CASE WHEN $3::float8 IS NULL OR $4::float8 IS NULL THEN NULL
				             ELSE ST_SetSRID(ST_MakePoint($4::float8, $3::float8), 4326)::geography END)
			`, it.ID, pos, p.Lat, p.Lng)
		}
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns one record by its id.
func (r *InvolvementRepo) GetByID(ctx context.Context, id int64) (*domain.ItemRecord, error) {
	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, selectInvolvement+`
		FROM involvements i WHERE i.id = $1
	`, id), nil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("involvement %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByType returns every record of an involvement type ordered by name.
func (r *InvolvementRepo) ListByType(ctx context.Context, invType string) ([]domain.ItemRecord, error) {
	rows, err := r.db.Pool.Query(ctx, selectInvolvement+`
		FROM involvements i
		WHERE i.inv_type = $1
		ORDER BY i.name, i.id
	`, invType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ItemRecord
	for rows.Next() {
		rec, err := scanRecord(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// FindNearby returns the records closest to a point, each measured to its
// nearest location, using PostGIS ST_Distance. An empty invType matches
// every type.
func (r *InvolvementRepo) FindNearby(ctx context.Context, lat, lng float64, invType string, limit int) ([]domain.ItemRecord, error) {
	rows, err := r.db.Pool.Query(ctx, selectInvolvement+`, d.distance
		FROM (
		    SELECT involvement_id,
		           MIN(ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)) AS distance
		    FROM involvement_locations
		    WHERE location IS NOT NULL
		    GROUP BY involvement_id
		) d
		JOIN involvements i ON i.id = d.involvement_id
		WHERE $3 = '' OR i.inv_type = $3
		ORDER BY d.distance
		LIMIT $4
	`, lng, lat, invType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ItemRecord
	for rows.Next() {
		var dist float64
		rec, err := scanRecord(rows, &dist)
		if err != nil {
			return nil, err
		}
		rec.Distance = &dist
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Stats counts stored and located records per involvement type.
func (r *InvolvementRepo) Stats(ctx context.Context) ([]domain.TypeStats, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT i.inv_type, count(*),
		       count(*) FILTER (WHERE EXISTS (
		           SELECT 1 FROM involvement_locations l
		           WHERE l.involvement_id = i.id AND l.location IS NOT NULL)),
		       max(i.updated_at)
		FROM involvements i
		GROUP BY i.inv_type
		ORDER BY i.inv_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TypeStats
	for rows.Next() {
		var s domain.TypeStats
		if err := rows.Scan(&s.InvType, &s.Items, &s.Located, &s.LastSync); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanRecord reads the selectInvolvement columns, plus a trailing distance
// column when dist is non-nil.
func scanRecord(row pgx.Row, dist *float64) (*domain.ItemRecord, error) {
	var (
		rec              domain.ItemRecord
		attrs, icon, geo []byte
	)
	dest := []any{
		&rec.ID, &rec.Name, &rec.PostID, &rec.InvType, &rec.Color,
		&attrs, &icon, &rec.UpdatedAt, &geo,
	}
	if dist != nil {
		dest = append(dest, dist)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %d: %w", rec.ID, err)
		}
	}
	if len(icon) > 0 {
		rec.Icon = &domain.Label{}
		if err := json.Unmarshal(icon, rec.Icon); err != nil {
			return nil, fmt.Errorf("decode icon of %d: %w", rec.ID, err)
		}
	}
	if err := json.Unmarshal(geo, &rec.Geo); err != nil {
		return nil, fmt.Errorf("decode geo of %d: %w", rec.ID, err)
	}
	return &rec, nil
}
