package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetplan/internal/config"
)

func TestStaticTableLookupAndFallback(t *testing.T) {
	est := NewStaticTable(config.Distances{DefaultKm: 25})

	assert.Equal(t, 12.0, est.CityKm("Sao Paulo"))
	assert.Equal(t, 12.0, est.CityKm("  sao paulo "))
	assert.Equal(t, 95.0, est.CityKm("Campinas"))
	assert.Equal(t, 25.0, est.CityKm("Unknown Town"))
}

func TestStaticTableConfigOverrides(t *testing.T) {
	est := NewStaticTable(config.Distances{
		CityKm:    map[string]float64{"Sao Paulo": 15, "Recife": 2100},
		DefaultKm: 40,
	})

	assert.Equal(t, 15.0, est.CityKm("sao paulo"))
	assert.Equal(t, 2100.0, est.CityKm("Recife"))
	assert.Equal(t, 40.0, est.CityKm("nowhere"))
}

func TestHaversineKm(t *testing.T) {
	// Sao Paulo to Rio de Janeiro is roughly 360 km great-circle
	d := HaversineKm(-23.5505, -46.6333, -22.9068, -43.1729)
	assert.InDelta(t, 360, d, 10)
	assert.Zero(t, HaversineKm(-23.5505, -46.6333, -23.5505, -46.6333))
}

func TestEfficiencyBlend(t *testing.T) {
	// ideal route: ten stops, short, quick, all urgent
	assert.InDelta(t, 1.0, efficiency(10, 0, 0, 10), 1e-9)
	// empty route scores zero
	assert.Zero(t, efficiency(0, 0, 0, 0))
	// a long slow route scores mostly on its stop count and priorities
	v := efficiency(10, 200, 480, 10)
	assert.InDelta(t, 0.4, v, 1e-9)
	// always clamped to [0,1]
	assert.LessOrEqual(t, efficiency(50, 1000, 2000, 50), 1.0)
	assert.GreaterOrEqual(t, efficiency(1, 1000, 2000, 4), 0.0)
}
