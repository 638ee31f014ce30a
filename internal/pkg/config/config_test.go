package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("groupmap-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "groupmap-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, 2, cfg.Map.MinZoom)
	assert.Equal(t, 15, cfg.Map.MaxZoom)
	assert.Equal(t, 150*time.Millisecond, cfg.Map.ZoomStep())
	assert.Equal(t, 13, cfg.Map.SmallGroupMaxInitialZoom)
	assert.Equal(t, 3, cfg.Nearby.DefaultLimit)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GROUPMAP_SERVER_PORT", "9090")
	t.Setenv("GROUPMAP_NEARBY_FAR_AWAY_KM", "80")

	cfg, err := Load("groupmap-test")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 80.0, cfg.Nearby.FarAwayKm)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg, err := Load("groupmap-test")
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Map.MaxZoom = 1
	cfg.Nearby.MaxLimit = 1
	cfg.GeoIP.DBPath = ""

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server.port must be 1-65535, got 0")
	assert.Contains(t, msg, "map zoom range 2-1 is invalid")
	assert.Contains(t, msg, "nearby limits 3/1 are invalid")
	assert.Contains(t, msg, "geoip.db_path is required")
}
