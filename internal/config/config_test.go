package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.InDelta(t, 1.0, cfg.Allocation.Weights.Sum(), 0.01)
	assert.Equal(t, 2, cfg.Allocation.MaxRoutesPerVehicle)
	assert.Equal(t, 480, cfg.Routing.MaxRouteDurationMin)
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	body := `
allocation:
  weights:
    cost: 0.5
    leadTime: 0.2
    capacity: 0.2
    availability: 0.1
  internalDeliveryCost: 95.5
routing:
  maxRouteDistanceKm: 150
distances:
  cityKm:
    Campinas: 110
  defaultKm: 30
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Allocation.Weights.Cost)
	assert.Equal(t, 95.5, cfg.Allocation.InternalDeliveryCost)
	assert.Equal(t, 150.0, cfg.Routing.MaxRouteDistanceKm)
	assert.Equal(t, 110.0, cfg.Distances.CityKm["Campinas"])
	assert.Equal(t, 30.0, cfg.Distances.DefaultKm)
	// untouched values keep their defaults
	assert.Equal(t, 480, cfg.Routing.MaxRouteDurationMin)
	assert.Equal(t, 5000.0, cfg.Allocation.VolumetricDivisor)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	body := `
allocation:
  maxRoutesPerVehicle: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_RPS", "10")
	t.Setenv("RATE_BURST", "20")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Server.RateRPS)
	assert.Equal(t, 20, cfg.Server.RateBurst)
}
