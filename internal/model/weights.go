package model

import "math"

// Weights configures the four allocation criteria. They are expected to sum
// to 1.0; a mismatch is logged by the engine but the values are used as-is.
type Weights struct {
	Cost         float64 `json:"cost" yaml:"cost"`
	LeadTime     float64 `json:"leadTime" yaml:"leadTime"`
	Capacity     float64 `json:"capacity" yaml:"capacity"`
	Availability float64 `json:"availability" yaml:"availability"`
}

// DefaultWeights favors cost, then lead time.
func DefaultWeights() Weights {
	return Weights{Cost: 0.4, LeadTime: 0.3, Capacity: 0.2, Availability: 0.1}
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Cost + w.LeadTime + w.Capacity + w.Availability
}

// IsZero reports whether no weight is set at all.
func (w Weights) IsZero() bool { return w.Sum() == 0 }

// Balanced reports whether the weights sum to ~1.0.
func (w Weights) Balanced() bool { return math.Abs(w.Sum()-1.0) <= 0.01 }
