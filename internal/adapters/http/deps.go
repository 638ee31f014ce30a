package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/groupmap/internal/adapters/postgres"
	"github.com/samirrijal/groupmap/internal/adapters/valkey"
	"github.com/samirrijal/groupmap/internal/core/geolocate"
	"github.com/samirrijal/groupmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Involvements *usecases.InvolvementService
	Geolocate    *usecases.GeolocateService
	Maps         *usecases.MapService
	Broadcast    geolocate.Broadcaster
	FarAwayKm    float64
	NATS         *nats.Conn
	DB           *postgres.DB
	Cache        *valkey.Cache
	// SpecPath locates the OpenAPI document; empty uses DefaultSpecPath.
	SpecPath string
}
