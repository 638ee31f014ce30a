package http

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/mapview"
	"github.com/samirrijal/groupmap/internal/core/usecases"
)

// SyncStatus reports what the last syncs loaded.
type SyncStatus struct {
	Generation uint64             `json:"generation"`
	Types      []domain.TypeStats `json:"types"`
}

// SyncStatusHandler returns per-type record counts and the cache generation.
func SyncStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Involvements.Stats(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if stats == nil {
			stats = []domain.TypeStats{}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(SyncStatus{Generation: deps.Involvements.Generation(), Types: stats})
	}
}

// GeolocateHandler resolves the caller's address to an approximate location.
// Failures are reported in the body as {"error": "..."} with status 200.
func GeolocateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "private, no-store")

		res, err := deps.Geolocate.Locate(c.UserContext(), clientIP(c))
		if err != nil {
			return c.JSON(fiber.Map{"error": usecases.LocationUnknownMessage})
		}
		return c.JSON(res)
	}
}

// NearbyHandler returns the records closest to lat/lng, nearest first.
func NearbyHandler(deps *Dependencies, kind geolocate.NearbyKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng are required")
		}

		q := geolocate.NearbyQuery{
			Kind:    kind,
			Lat:     lat,
			Lng:     lng,
			InvType: c.Query("type"),
			Limit:   c.QueryInt("limit", 0),
		}
		if kind == geolocate.NearbyInvolvements && q.InvType == "" {
			return errBadRequest(c, "type is required")
		}

		recs, err := deps.Involvements.Nearby(c.UserContext(), q)
		if errors.Is(err, usecases.ErrInvalidCoordinates) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		if recs == nil {
			recs = []domain.ItemRecord{}
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(recs)
	}
}

// ListItemsHandler returns the records of an involvement type, paginated.
func ListItemsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invType := c.Params("type")
		if invType == "" {
			return errBadRequest(c, "involvement type is required")
		}

		items, err := deps.Involvements.Items(c.UserContext(), invType)
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(items)
		if offset >= total {
			items = []domain.ItemRecord{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			items = items[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// MarkersGeoJSONHandler returns the aggregated markers of an involvement type.
// Every non-empty query argument is applied as a filter.
func MarkersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invType := c.Params("type")
		if invType == "" {
			return errBadRequest(c, "involvement type is required")
		}

		filters := mapview.FilterSet{}
		c.Context().QueryArgs().VisitAll(func(k, v []byte) {
			if len(v) > 0 {
				filters[string(k)] = string(v)
			}
		})

		data, err := deps.Maps.MarkersGeoJSON(c.UserContext(), invType, filters)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Content-Type", "application/geo+json")
		return c.Send(data)
	}
}

// GetItemHandler returns a single record by id.
func GetItemHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "id must be an integer")
		}

		rec, err := deps.Involvements.GetByID(c.UserContext(), id)
		if errors.Is(err, domain.ErrNotFound) {
			return errNotFound(c, "item not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(rec)
	}
}

func clientIP(c *fiber.Ctx) net.IP {
	return parseIP(c.IP())
}

// parseIP parses s, dropping any zone. Invalid input yields nil.
func parseIP(s string) net.IP {
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	return net.ParseIP(strings.TrimSpace(s))
}
