package routing

import (
	"math"
	"strings"

	"fleetplan/internal/config"
)

// Estimator supplies the one-way distance from the depot to a destination
// city in km. The static table below is the default; a real distance
// service can be plugged in without touching the optimizer.
type Estimator interface {
	CityKm(city string) float64
}

// seedTable holds approximate depot distances for the cities the fleet
// serves most. Unknown cities fall back to the configured default.
var seedTable = map[string]float64{
	"sao paulo":           12,
	"guarulhos":           25,
	"osasco":              22,
	"santo andre":         28,
	"campinas":            95,
	"sorocaba":            100,
	"santos":              78,
	"sao jose dos campos": 92,
	"curitiba":            408,
	"rio de janeiro":      430,
	"belo horizonte":      585,
}

// StaticTable is the built-in Estimator: a small per-city table plus a
// fallback constant.
type StaticTable struct {
	table     map[string]float64
	defaultKm float64
}

// NewStaticTable merges config overrides over the built-in seed table.
func NewStaticTable(cfg config.Distances) *StaticTable {
	t := make(map[string]float64, len(seedTable)+len(cfg.CityKm))
	for k, v := range seedTable {
		t[k] = v
	}
	for k, v := range cfg.CityKm {
		t[cityKey(k)] = v
	}
	d := cfg.DefaultKm
	if d <= 0 {
		d = 25
	}
	return &StaticTable{table: t, defaultKm: d}
}

func (s *StaticTable) CityKm(city string) float64 {
	if km, ok := s.table[cityKey(city)]; ok {
		return km
	}
	return s.defaultKm
}

func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
