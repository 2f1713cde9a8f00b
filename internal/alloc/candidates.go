package alloc

import (
	"fleetplan/internal/config"
	"fleetplan/internal/model"
)

// Candidate is the uniform projection of a vehicle or carrier onto the four
// decision attributes. ResourceType tags which variant produced it.
type Candidate struct {
	ResourceType string
	ResourceID   string
	ResourceName string

	// Decision attributes. Cost and LeadDays: smaller is better.
	// CapacityKg and Availability: larger is better.
	Cost         float64
	LeadDays     int
	CapacityKg   float64
	Availability float64

	Score float64
}

// EffectiveWeight is the greater of the actual weight and the volumetric
// approximation length*width*height/divisor.
func EffectiveWeight(p model.DeliveryPlan, divisor float64) float64 {
	vol := p.LengthCm * p.WidthCm * p.HeightCm / divisor
	if vol > p.WeightKg {
		return vol
	}
	return p.WeightKg
}

// vehicleCandidate projects an internal vehicle. Cost is the fixed
// per-delivery allowance; the internal fleet is assumed fastest.
func vehicleCandidate(v model.Vehicle, cfg config.Allocation) Candidate {
	return Candidate{
		ResourceType: model.ResourceVehicle,
		ResourceID:   v.ID,
		ResourceName: v.Name,
		Cost:         cfg.InternalDeliveryCost,
		LeadDays:     cfg.InternalLeadDays,
		CapacityKg:   v.CapacityKg,
		Availability: float64(cfg.MaxRoutesPerVehicle - v.RoutesOnDate),
	}
}

// carrierCandidate projects an external carrier contract over the
// shipment's effective weight.
func carrierCandidate(c model.CarrierContract, effectiveKg float64) Candidate {
	return Candidate{
		ResourceType: model.ResourceCarrier,
		ResourceID:   c.ID,
		ResourceName: c.Name,
		Cost:         c.FlatCost + c.CostPerKg*effectiveKg,
		LeadDays:     c.LeadTimeDays,
		CapacityKg:   c.MaxWeightKg,
		Availability: 1,
	}
}

func vehicleEligible(v model.Vehicle, plan model.DeliveryPlan, effectiveKg float64, cfg config.Allocation) bool {
	if v.Status != "active" {
		return false
	}
	if plan.ZoneID != "" && v.ZoneID != "" && v.ZoneID != plan.ZoneID {
		return false
	}
	if v.CapacityKg > 0 && effectiveKg > v.CapacityKg {
		return false
	}
	return v.RoutesOnDate < cfg.MaxRoutesPerVehicle
}

func carrierEligible(c model.CarrierContract, plan model.DeliveryPlan, effectiveKg float64) bool {
	if c.Status != "active" {
		return false
	}
	if c.MaxWeightKg > 0 && effectiveKg > c.MaxWeightKg {
		return false
	}
	if len(c.Coverage) == 0 {
		return true // nationwide
	}
	for _, prov := range c.Coverage {
		if prov == plan.Address.Province {
			return true
		}
	}
	return false
}

// enumerate builds the candidate list, internal vehicles first, then
// external carriers. Order matters only as the final sort tie-break input.
func enumerate(plan model.DeliveryPlan, vehicles []model.Vehicle, carriers []model.CarrierContract, cfg config.Allocation) []Candidate {
	effKg := EffectiveWeight(plan, cfg.VolumetricDivisor)
	out := make([]Candidate, 0, len(vehicles)+len(carriers))
	for _, v := range vehicles {
		if vehicleEligible(v, plan, effKg, cfg) {
			out = append(out, vehicleCandidate(v, cfg))
		}
	}
	for _, c := range carriers {
		if carrierEligible(c, plan, effKg) {
			out = append(out, carrierCandidate(c, effKg))
		}
	}
	return out
}
