// Package routing implements the route optimizer: a greedy partition and
// sequencing of pending delivery plans into per-vehicle routes under
// capacity, time, and distance ceilings.
package routing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetplan/internal/config"
	"fleetplan/internal/model"
)

// Store is the slice of persistence the optimizer needs. Optimize only
// reads; Persist writes routes and plan transitions.
type Store interface {
	ListPendingPlans(ctx context.Context, planDate string, zoneIDs []string) ([]model.DeliveryPlan, error)
	ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error)
	NextRouteSeq(ctx context.Context, planDate string) (int, error)
	CreateRoute(ctx context.Context, route model.Route, operator string) (model.Route, error)
}

// avgSpeedKmh converts the per-stop distance estimate into travel minutes.
const avgSpeedKmh = 40.0

// routeStartHour is the assumed local departure hour for ETA estimates.
const routeStartHour = 8

type Optimizer struct {
	store Store
	est   Estimator
	cfg   config.Routing
	log   *zap.Logger
}

func NewOptimizer(s Store, est Estimator, cfg config.Routing, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{store: s, est: est, cfg: cfg, log: log}
}

// stopCandidate is a pending plan converted to the attributes the greedy
// fill needs.
type stopCandidate struct {
	plan       model.DeliveryPlan
	weightKg   float64
	serviceMin int
	rank       int
	window     time.Time
	distanceKm float64
	lat        float64
	lng        float64
	taken      bool
}

// hasCoords reports whether the plan carried usable coordinates.
func (c *stopCandidate) hasCoords() bool { return c.lat != 0 || c.lng != 0 }

// Optimize builds routes for the date without persisting anything. It is a
// pure function of its inputs: running it twice over unchanged data yields
// identical routes.
func (o *Optimizer) Optimize(ctx context.Context, planDate string, vehicleIDs, zoneIDs []string) ([]model.Route, model.OptimizeSummary, error) {
	summary := model.OptimizeSummary{PlanDate: planDate}

	plans, err := o.store.ListPendingPlans(ctx, planDate, zoneIDs)
	if err != nil {
		return nil, summary, fmt.Errorf("optimize %s: list plans: %w", planDate, err)
	}
	vehicles, err := o.eligibleVehicles(ctx, planDate, vehicleIDs)
	if err != nil {
		return nil, summary, err
	}
	// Nothing to do is not an error.
	if len(plans) == 0 || len(vehicles) == 0 {
		for _, p := range plans {
			summary.UncoveredIDs = append(summary.UncoveredIDs, p.ID)
		}
		summary.UncoveredPlans = len(plans)
		return nil, summary, nil
	}

	cands := o.toCandidates(plans)
	sortCandidates(cands)

	routes := make([]model.Route, 0, len(vehicles))
	for _, v := range vehicles {
		route := o.fillRoute(v, planDate, cands)
		if len(route.Stops) == 0 {
			continue
		}
		routes = append(routes, route)
		summary.PlannedStops += len(route.Stops)
	}
	for _, c := range cands {
		if !c.taken {
			summary.UncoveredIDs = append(summary.UncoveredIDs, c.plan.ID)
		}
	}
	summary.Routes = len(routes)
	summary.UncoveredPlans = len(summary.UncoveredIDs)

	o.log.Info("route optimization finished",
		zap.String("planDate", planDate),
		zap.Int("routes", summary.Routes),
		zap.Int("plannedStops", summary.PlannedStops),
		zap.Int("uncovered", summary.UncoveredPlans))
	return routes, summary, nil
}

// Persist assigns identifiers and codes to the routes and writes them with
// their stops and plan transitions. A failure on one route keeps the routes
// already written; the caller can retry the rest without recomputing.
func (o *Optimizer) Persist(ctx context.Context, routes []model.Route, planDate, operatorID string) ([]model.Route, error) {
	persisted := make([]model.Route, 0, len(routes))
	for i, rt := range routes {
		seq, err := o.store.NextRouteSeq(ctx, planDate)
		if err != nil {
			return persisted, fmt.Errorf("persist routes %s: sequence: %w", planDate, err)
		}
		rt.ID = uuid.New().String()
		rt.Code = routeCode(planDate, seq)
		for j := range rt.Stops {
			rt.Stops[j].ID = uuid.New().String()
			rt.Stops[j].RouteID = rt.ID
		}
		saved, err := o.store.CreateRoute(ctx, rt, operatorID)
		if err != nil {
			return persisted, fmt.Errorf("persist routes %s: route %d of %d: %w", planDate, i+1, len(routes), err)
		}
		persisted = append(persisted, saved)
	}
	return persisted, nil
}

func (o *Optimizer) eligibleVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error) {
	vehicles, err := o.store.ListVehicles(ctx, planDate, ids)
	if err != nil {
		return nil, fmt.Errorf("optimize %s: list vehicles: %w", planDate, err)
	}
	out := vehicles[:0]
	for _, v := range vehicles {
		if v.Status == "active" && v.RoutesOnDate == 0 {
			out = append(out, v)
		}
	}
	// Enumeration order is part of the contract; keep it stable.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *Optimizer) toCandidates(plans []model.DeliveryPlan) []*stopCandidate {
	cands := make([]*stopCandidate, 0, len(plans))
	for _, p := range plans {
		var window time.Time
		if p.WindowStart != nil {
			window = *p.WindowStart
		}
		cands = append(cands, &stopCandidate{
			plan:       p,
			weightKg:   p.WeightKg,
			serviceMin: model.ServiceMinutes(p.Priority),
			rank:       model.PriorityRank(p.Priority),
			window:     window,
			distanceKm: o.est.CityKm(p.Address.City),
			lat:        p.Lat,
			lng:        p.Lng,
		})
	}
	return cands
}

// sortCandidates orders by priority rank, then window start, then plan id
// so equal candidates always land in the same order.
func sortCandidates(cands []*stopCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if !a.window.Equal(b.window) {
			if a.window.IsZero() != b.window.IsZero() {
				return !a.window.IsZero() // windowed stops before open-ended ones
			}
			return a.window.Before(b.window)
		}
		return a.plan.ID < b.plan.ID
	})
}

// fillRoute greedily scans the remaining candidates and accepts each one
// that keeps the route under the vehicle capacity and the duration and
// distance ceilings. Skipped candidates stay available for later vehicles.
func (o *Optimizer) fillRoute(v model.Vehicle, planDate string, cands []*stopCandidate) model.Route {
	route := model.Route{
		PlanDate:  planDate,
		VehicleID: v.ID,
		Status:    model.RoutePlanned,
	}
	start := routeStart(planDate)
	cursor := start
	var weight, distance float64
	var duration int
	rankSum := 0
	var prev *stopCandidate

	for _, c := range cands {
		if c.taken {
			continue
		}
		// stop-to-stop legs use haversine when both ends have coordinates;
		// otherwise the leg falls back to the depot city estimate
		legKm := c.distanceKm
		if prev != nil && prev.hasCoords() && c.hasCoords() {
			legKm = HaversineKm(prev.lat, prev.lng, c.lat, c.lng)
		}
		travelMin := int(legKm / avgSpeedKmh * 60)
		if weight+c.weightKg > v.CapacityKg {
			continue
		}
		if duration+travelMin+c.serviceMin > o.cfg.MaxRouteDurationMin {
			continue
		}
		if distance+legKm > o.cfg.MaxRouteDistanceKm {
			continue
		}
		weight += c.weightKg
		duration += travelMin + c.serviceMin
		distance += legKm
		rankSum += c.rank
		c.taken = true
		prev = c

		arrival := cursor.Add(time.Duration(travelMin) * time.Minute)
		departure := arrival.Add(time.Duration(c.serviceMin) * time.Minute)
		cursor = departure
		route.Stops = append(route.Stops, model.RouteStop{
			Seq:          len(route.Stops) + 1,
			PlanID:       c.plan.ID,
			City:         c.plan.Address.City,
			ETAArrival:   &arrival,
			ETADeparture: &departure,
			ServiceMin:   c.serviceMin,
			WeightKg:     c.weightKg,
			DistanceKm:   legKm,
		})
	}

	if len(route.Stops) == 0 {
		return route
	}
	end := cursor
	route.StartAt = &start
	route.EndAt = &end
	route.TotalWeightKg = weight
	route.TotalDurationMin = duration
	route.TotalDistanceKm = distance
	route.Efficiency = efficiency(len(route.Stops), distance, duration, rankSum)
	return route
}

func routeStart(planDate string) time.Time {
	d, err := time.Parse("2006-01-02", planDate)
	if err != nil {
		d = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return d.Add(routeStartHour * time.Hour)
}

func routeCode(planDate string, seq int) string {
	d, err := time.Parse("2006-01-02", planDate)
	if err != nil {
		d = time.Now().UTC()
	}
	return fmt.Sprintf("ROUTE-%s-%03d", d.Format("20060102"), seq)
}
