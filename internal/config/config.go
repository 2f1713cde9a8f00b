// Package config loads planner configuration from a YAML file with
// environment overrides for infrastructure settings.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"fleetplan/internal/model"
)

// Allocation holds the AllocationEngine knobs. Every call receives these
// explicitly; there is no implicit module-level default record.
type Allocation struct {
	Weights              model.Weights `yaml:"weights"`
	MaxRoutesPerVehicle  int           `yaml:"maxRoutesPerVehicle"`
	InternalDeliveryCost float64       `yaml:"internalDeliveryCost"` // fuel+driver+maintenance allowance per delivery
	InternalLeadDays     int           `yaml:"internalLeadDays"`
	VolumetricDivisor    float64       `yaml:"volumetricDivisor"` // cm^3 per kg
}

// Routing holds the RouteOptimizer ceilings.
type Routing struct {
	MaxRouteDurationMin int     `yaml:"maxRouteDurationMin"`
	MaxRouteDistanceKm  float64 `yaml:"maxRouteDistanceKm"`
	DefaultZoneLeadDays int     `yaml:"defaultZoneLeadDays"`
}

// Distances seeds the static per-city distance table and its fallback.
type Distances struct {
	CityKm    map[string]float64 `yaml:"cityKm"`
	DefaultKm float64            `yaml:"defaultKm"`
}

// Server holds HTTP-level settings sourced from env.
type Server struct {
	Port      string
	RateRPS   float64
	RateBurst int
}

type Config struct {
	Allocation Allocation `yaml:"allocation"`
	Routing    Routing    `yaml:"routing"`
	Distances  Distances  `yaml:"distances"`
	Server     Server     `yaml:"-"`
}

// Default returns the built-in configuration used when no file is given.
func Default() Config {
	return Config{
		Allocation: Allocation{
			Weights:              model.DefaultWeights(),
			MaxRoutesPerVehicle:  2,
			InternalDeliveryCost: 85.0,
			InternalLeadDays:     1,
			VolumetricDivisor:    5000,
		},
		Routing: Routing{
			MaxRouteDurationMin: 480,
			MaxRouteDistanceKm:  200,
			DefaultZoneLeadDays: 3,
		},
		Distances: Distances{DefaultKm: 25},
	}
}

// Load reads the YAML file at path (empty path keeps defaults), overlays
// server settings from env, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Server = serverFromEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads config from the file named by PLANNER_CONFIG, or defaults.
func FromEnv() (Config, error) {
	return Load(os.Getenv("PLANNER_CONFIG"))
}

func serverFromEnv() Server {
	s := Server{Port: "8080", RateRPS: 50, RateBurst: 100}
	if v := os.Getenv("PORT"); v != "" {
		s.Port = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		fmt.Sscanf(v, "%g", &s.RateRPS)
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		fmt.Sscanf(v, "%d", &s.RateBurst)
	}
	return s
}

func (c Config) validate() error {
	a := c.Allocation
	if a.Weights.Cost < 0 || a.Weights.LeadTime < 0 || a.Weights.Capacity < 0 || a.Weights.Availability < 0 {
		return fmt.Errorf("config: allocation weights must be non-negative")
	}
	if a.MaxRoutesPerVehicle <= 0 {
		return fmt.Errorf("config: maxRoutesPerVehicle must be > 0")
	}
	if a.VolumetricDivisor <= 0 {
		return fmt.Errorf("config: volumetricDivisor must be > 0")
	}
	if c.Routing.MaxRouteDurationMin <= 0 || c.Routing.MaxRouteDistanceKm <= 0 {
		return fmt.Errorf("config: routing ceilings must be > 0")
	}
	if c.Distances.DefaultKm < 0 {
		return fmt.Errorf("config: defaultKm must be >= 0")
	}
	return nil
}
