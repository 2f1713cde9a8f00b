package routing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplan/internal/config"
	"fleetplan/internal/model"
)

type fixedEstimator struct{ km float64 }

func (f fixedEstimator) CityKm(string) float64 { return f.km }

type fakeRouteStore struct {
	plans    []model.DeliveryPlan
	vehicles []model.Vehicle
	created  []model.Route
	seq      int
	failFrom int // fail CreateRoute from this call count (0 = never)
	calls    int
}

func (f *fakeRouteStore) ListPendingPlans(ctx context.Context, planDate string, zoneIDs []string) ([]model.DeliveryPlan, error) {
	out := []model.DeliveryPlan{}
	for _, p := range f.plans {
		if p.Status == model.PlanPending && p.RequestedDate == planDate {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRouteStore) ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error) {
	return f.vehicles, nil
}

func (f *fakeRouteStore) NextRouteSeq(ctx context.Context, planDate string) (int, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeRouteStore) CreateRoute(ctx context.Context, route model.Route, operator string) (model.Route, error) {
	f.calls++
	if f.failFrom > 0 && f.calls >= f.failFrom {
		return model.Route{}, fmt.Errorf("stop plan %s is scheduled: %w", route.Stops[0].PlanID, model.ErrPlanNotPending)
	}
	f.created = append(f.created, route)
	return route, nil
}

func testRoutingConfig() config.Routing {
	return config.Routing{
		MaxRouteDurationMin: 480,
		MaxRouteDistanceKm:  200,
		DefaultZoneLeadDays: 3,
	}
}

func pendingPlan(id string, weightKg float64, priority string) model.DeliveryPlan {
	return model.DeliveryPlan{
		ID:            id,
		Address:       model.Address{City: "Sao Paulo", Province: "SP"},
		RequestedDate: "2026-09-01",
		Priority:      priority,
		WeightKg:      weightKg,
		Status:        model.PlanPending,
	}
}

func TestOptimizeFillsVehicleToCapacityAndLeavesRestPending(t *testing.T) {
	// ten 100kg plans, one 600kg vehicle: six routed, four stay pending
	f := &fakeRouteStore{
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 600}},
	}
	for i := 0; i < 10; i++ {
		f.plans = append(f.plans, pendingPlan(fmt.Sprintf("plan-%02d", i), 100, model.PriorityNormal))
	}
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Len(t, routes[0].Stops, 6)
	assert.Equal(t, 6, summary.PlannedStops)
	assert.Equal(t, 4, summary.UncoveredPlans)
	assert.Len(t, summary.UncoveredIDs, 4)
	assert.Equal(t, 600.0, routes[0].TotalWeightKg)
	assert.Empty(t, f.created, "optimize must not write")
}

func TestOptimizeRespectsCapacityAndSequencing(t *testing.T) {
	f := &fakeRouteStore{
		vehicles: []model.Vehicle{
			{ID: "veh-1", Status: "active", CapacityKg: 250},
			{ID: "veh-2", Status: "active", CapacityKg: 250},
		},
	}
	for i := 0; i < 5; i++ {
		f.plans = append(f.plans, pendingPlan(fmt.Sprintf("plan-%d", i), 100, model.PriorityNormal))
	}
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	seen := map[string]bool{}
	for _, rt := range routes {
		var weight float64
		for i, st := range rt.Stops {
			assert.Equal(t, i+1, st.Seq, "seq must be dense and 1-based")
			assert.False(t, seen[st.PlanID], "plan assigned twice")
			seen[st.PlanID] = true
			weight += st.WeightKg
		}
		assert.LessOrEqual(t, weight, 250.0)
		assert.Equal(t, weight, rt.TotalWeightKg)
	}
	assert.Equal(t, 4, summary.PlannedStops)
	assert.Equal(t, 1, summary.UncoveredPlans)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	f := &fakeRouteStore{
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 400}},
	}
	f.plans = append(f.plans,
		pendingPlan("plan-c", 100, model.PriorityLow),
		pendingPlan("plan-a", 100, model.PriorityUrgent),
		pendingPlan("plan-b", 100, model.PriorityNormal),
	)
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	first, sum1, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	second, sum2, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, sum1, sum2)
}

func TestOptimizeOrdersByPriorityThenWindow(t *testing.T) {
	early := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	pLow := pendingPlan("plan-low", 50, model.PriorityLow)
	pUrgent := pendingPlan("plan-urgent", 50, model.PriorityUrgent)
	pEarly := pendingPlan("plan-normal-early", 50, model.PriorityNormal)
	pEarly.WindowStart = &early
	pLateNorm := pendingPlan("plan-normal-late", 50, model.PriorityNormal)
	pLateNorm.WindowStart = &late

	f := &fakeRouteStore{
		plans:    []model.DeliveryPlan{pLow, pLateNorm, pUrgent, pEarly},
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 1000}},
	}
	o := NewOptimizer(f, fixedEstimator{km: 5}, testRoutingConfig(), nil)

	routes, _, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Len(t, routes[0].Stops, 4)
	assert.Equal(t, "plan-urgent", routes[0].Stops[0].PlanID)
	assert.Equal(t, "plan-normal-early", routes[0].Stops[1].PlanID)
	assert.Equal(t, "plan-normal-late", routes[0].Stops[2].PlanID)
	assert.Equal(t, "plan-low", routes[0].Stops[3].PlanID)
}

func TestOptimizeComputesETAsFromMorningStart(t *testing.T) {
	f := &fakeRouteStore{
		plans:    []model.DeliveryPlan{pendingPlan("plan-1", 50, model.PriorityNormal)},
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 100}},
	}
	// 20 km at 40 km/h = 30 min travel
	o := NewOptimizer(f, fixedEstimator{km: 20}, testRoutingConfig(), nil)

	routes, _, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	st := routes[0].Stops[0]
	require.NotNil(t, st.ETAArrival)
	require.NotNil(t, st.ETADeparture)
	wantArrival := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, wantArrival, st.ETAArrival.UTC())
	assert.Equal(t, wantArrival.Add(30*time.Minute), st.ETADeparture.UTC())
	assert.Equal(t, 60, routes[0].TotalDurationMin)
}

func TestOptimizeRefinesLegsFromCoordinates(t *testing.T) {
	geo := func(id string, lat, lng float64) model.DeliveryPlan {
		p := pendingPlan(id, 50, model.PriorityNormal)
		p.Lat = lat
		p.Lng = lng
		return p
	}
	f := &fakeRouteStore{
		plans: []model.DeliveryPlan{
			geo("geo-1", -23.5500, -46.6300),
			geo("geo-2", -23.5581, -46.6300), // ~0.9 km south of geo-1
			pendingPlan("geo-3", 50, model.PriorityNormal),
		},
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 300}},
	}
	o := NewOptimizer(f, fixedEstimator{km: 50}, testRoutingConfig(), nil)

	routes, _, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Len(t, routes[0].Stops, 3)

	// first leg leaves the depot, so it uses the city estimate
	assert.Equal(t, 50.0, routes[0].Stops[0].DistanceKm)
	// second leg has coordinates at both ends: haversine, not the table
	assert.InDelta(t, 0.9, routes[0].Stops[1].DistanceKm, 0.2)
	// third plan has no coordinates, so its leg falls back to the estimate
	assert.Equal(t, 50.0, routes[0].Stops[2].DistanceKm)
	assert.InDelta(t, 100.9, routes[0].TotalDistanceKm, 0.3)
}

func TestOptimizeSkipsOversizePlan(t *testing.T) {
	f := &fakeRouteStore{
		plans: []model.DeliveryPlan{
			pendingPlan("plan-heavy", 950, model.PriorityNormal),
			pendingPlan("plan-ok", 100, model.PriorityNormal),
		},
		vehicles: []model.Vehicle{
			{ID: "veh-1", Status: "active", CapacityKg: 500},
			{ID: "veh-2", Status: "active", CapacityKg: 800},
		},
	}
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "plan-ok", routes[0].Stops[0].PlanID)
	assert.Equal(t, []string{"plan-heavy"}, summary.UncoveredIDs)
}

func TestOptimizeHonorsDistanceCeiling(t *testing.T) {
	f := &fakeRouteStore{
		plans:    []model.DeliveryPlan{pendingPlan("plan-far", 10, model.PriorityNormal)},
		vehicles: []model.Vehicle{{ID: "veh-1", Status: "active", CapacityKg: 500}},
	}
	o := NewOptimizer(f, fixedEstimator{km: 430}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Equal(t, 1, summary.UncoveredPlans)
}

func TestOptimizeEmptyInputsIsNotAnError(t *testing.T) {
	o := NewOptimizer(&fakeRouteStore{}, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Zero(t, summary.Routes)
	assert.Zero(t, summary.UncoveredPlans)
}

func TestOptimizeSkipsBusyAndInactiveVehicles(t *testing.T) {
	f := &fakeRouteStore{
		plans: []model.DeliveryPlan{pendingPlan("plan-1", 50, model.PriorityNormal)},
		vehicles: []model.Vehicle{
			{ID: "veh-busy", Status: "active", CapacityKg: 500, RoutesOnDate: 1},
			{ID: "veh-off", Status: "inactive", CapacityKg: 500},
		},
	}
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, summary, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Equal(t, 1, summary.UncoveredPlans)
}

func TestPersistAssignsSequentialCodes(t *testing.T) {
	f := &fakeRouteStore{
		vehicles: []model.Vehicle{
			{ID: "veh-1", Status: "active", CapacityKg: 200},
			{ID: "veh-2", Status: "active", CapacityKg: 200},
		},
	}
	for i := 0; i < 4; i++ {
		f.plans = append(f.plans, pendingPlan(fmt.Sprintf("plan-%d", i), 100, model.PriorityNormal))
	}
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, _, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	persisted, err := o.Persist(context.Background(), routes, "2026-09-01", "op-1")
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "ROUTE-20260901-001", persisted[0].Code)
	assert.Equal(t, "ROUTE-20260901-002", persisted[1].Code)
	for _, rt := range persisted {
		assert.NotEmpty(t, rt.ID)
		for _, st := range rt.Stops {
			assert.NotEmpty(t, st.ID)
			assert.Equal(t, rt.ID, st.RouteID)
		}
	}
}

func TestPersistKeepsEarlierRoutesOnFailure(t *testing.T) {
	f := &fakeRouteStore{
		vehicles: []model.Vehicle{
			{ID: "veh-1", Status: "active", CapacityKg: 100},
			{ID: "veh-2", Status: "active", CapacityKg: 100},
		},
		failFrom: 2,
	}
	f.plans = append(f.plans,
		pendingPlan("plan-0", 100, model.PriorityNormal),
		pendingPlan("plan-1", 100, model.PriorityNormal),
	)
	o := NewOptimizer(f, fixedEstimator{km: 10}, testRoutingConfig(), nil)

	routes, _, err := o.Optimize(context.Background(), "2026-09-01", nil, nil)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	persisted, err := o.Persist(context.Background(), routes, "2026-09-01", "op-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPlanNotPending)
	assert.Len(t, persisted, 1)
}
