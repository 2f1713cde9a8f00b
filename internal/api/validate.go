package api

import (
	"fmt"
	"time"

	"fleetplan/internal/model"
)

func validDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return nil
}

func validateWeights(w *model.Weights) error {
	if w == nil {
		return nil
	}
	if w.Cost < 0 || w.LeadTime < 0 || w.Capacity < 0 || w.Availability < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	return nil
}

func validateOptimizeRequest(req *optimizeRequest) error {
	if req.PlanDate == "" {
		return fmt.Errorf("planDate is required")
	}
	return validDate(req.PlanDate)
}

func validatePersistRequest(req *persistRequest) error {
	if req.PlanDate == "" {
		return fmt.Errorf("planDate is required")
	}
	if err := validDate(req.PlanDate); err != nil {
		return err
	}
	// routes may be omitted: the handler re-runs the optimizer first
	for i, rt := range req.Routes {
		if rt.VehicleID == "" {
			return fmt.Errorf("routes[%d]: vehicleId is required", i)
		}
		if len(rt.Stops) == 0 {
			return fmt.Errorf("routes[%d]: stops must not be empty", i)
		}
		for j, st := range rt.Stops {
			if st.PlanID == "" {
				return fmt.Errorf("routes[%d].stops[%d]: planId is required", i, j)
			}
			if st.Seq != j+1 {
				return fmt.Errorf("routes[%d].stops[%d]: seq must be %d", i, j, j+1)
			}
		}
	}
	return nil
}

func validatePlanIn(p model.DeliveryPlan) error {
	if p.Address.City == "" {
		return fmt.Errorf("address.city is required")
	}
	if p.RequestedDate == "" {
		return fmt.Errorf("requestedDate is required")
	}
	if err := validDate(p.RequestedDate); err != nil {
		return err
	}
	if p.WeightKg < 0 {
		return fmt.Errorf("weightKg must be >= 0")
	}
	switch p.Priority {
	case "", model.PriorityUrgent, model.PriorityHigh, model.PriorityNormal, model.PriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", p.Priority)
	}
	if p.WindowStart != nil && p.WindowEnd != nil && p.WindowEnd.Before(*p.WindowStart) {
		return fmt.Errorf("windowEnd must not precede windowStart")
	}
	return nil
}
