package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplan/internal/model"
)

func TestMemoryCreatePlansDedupesByExternalRef(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, skipped, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{ExternalRef: "ref-1", Address: model.Address{City: "Sao Paulo"}, RequestedDate: "2026-09-01", WeightKg: 10},
		{ExternalRef: "ref-2", Address: model.Address{City: "Campinas"}, RequestedDate: "2026-09-01", WeightKg: 5},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, model.PlanPending, created[0].Status)
	assert.Equal(t, model.PriorityNormal, created[0].Priority)

	again, skipped, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{ExternalRef: "ref-1", Address: model.Address{City: "Sao Paulo"}, RequestedDate: "2026-09-01"},
	})
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 1, skipped)
}

func TestMemoryApplyAllocationTransitionsAndAudits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{Address: model.Address{City: "Sao Paulo"}, RequestedDate: "2026-09-01", WeightKg: 20},
	})
	require.NoError(t, err)
	planID := created[0].ID

	res := model.AllocationResult{
		PlanID:            planID,
		ResourceType:      model.ResourceCarrier,
		ResourceID:        "car-1",
		EstimatedCost:     42.5,
		EstimatedLeadDays: 2,
		Score:             0.9,
	}
	require.NoError(t, m.ApplyAllocation(ctx, planID, res, "dispatcher-1"))

	p, err := m.GetPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanScheduled, p.Status)
	assert.Equal(t, model.ResourceCarrier, p.ResourceType)
	assert.Equal(t, 42.5, p.EstimatedCost)

	// second apply must refuse: plan is no longer pending
	err = m.ApplyAllocation(ctx, planID, res, "dispatcher-1")
	assert.ErrorIs(t, err, model.ErrPlanNotPending)

	evs, err := m.ListEvents(ctx, planID, "", 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "allocation.applied", evs[0].Type)
	assert.Equal(t, "dispatcher-1", evs[0].Actor)
}

func TestMemoryApplyAllocationUnknownPlan(t *testing.T) {
	m := NewMemory()
	err := m.ApplyAllocation(context.Background(), "missing", model.AllocationResult{}, "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryListVehiclesCountsRoutesOnDate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SeedVehicles(ctx, []model.Vehicle{
		{ID: "veh-1", Name: "Van 1", CapacityKg: 500},
		{ID: "veh-2", Name: "Van 2", CapacityKg: 800},
	})
	require.NoError(t, err)

	created, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{Address: model.Address{City: "Santos"}, RequestedDate: "2026-09-01", WeightKg: 30},
	})
	require.NoError(t, err)

	_, err = m.CreateRoute(ctx, model.Route{
		PlanDate:  "2026-09-01",
		VehicleID: "veh-1",
		Stops:     []model.RouteStop{{Seq: 1, PlanID: created[0].ID, City: "Santos", WeightKg: 30}},
	}, "op-1")
	require.NoError(t, err)

	vehicles, err := m.ListVehicles(ctx, "2026-09-01", nil)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, 1, vehicles[0].RoutesOnDate)
	assert.Equal(t, 0, vehicles[1].RoutesOnDate)

	// a different date sees a free fleet
	vehicles, err = m.ListVehicles(ctx, "2026-09-02", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, vehicles[0].RoutesOnDate)
}

func TestMemoryCreateRouteMarksPlansScheduled(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SeedVehicles(ctx, []model.Vehicle{{ID: "veh-1", CapacityKg: 500}})
	require.NoError(t, err)
	created, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{Address: model.Address{City: "Santos"}, RequestedDate: "2026-09-01", WeightKg: 30},
		{Address: model.Address{City: "Campinas"}, RequestedDate: "2026-09-01", WeightKg: 40},
	})
	require.NoError(t, err)

	r, err := m.CreateRoute(ctx, model.Route{
		Code:      "ROUTE-20260901-001",
		PlanDate:  "2026-09-01",
		VehicleID: "veh-1",
		Stops: []model.RouteStop{
			{Seq: 1, PlanID: created[0].ID, City: "Santos", WeightKg: 30},
			{Seq: 2, PlanID: created[1].ID, City: "Campinas", WeightKg: 40},
		},
	}, "op-1")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.RoutePlanned, r.Status)

	for i, c := range created {
		p, err := m.GetPlan(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PlanScheduled, p.Status)
		assert.Equal(t, r.Stops[i].ID, p.AssignedStopID)
		assert.Equal(t, model.ResourceVehicle, p.ResourceType)
		assert.Equal(t, "veh-1", p.ResourceID)
	}

	// pending list no longer includes routed plans
	pending, err := m.ListPendingPlans(ctx, "2026-09-01", nil)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryCreateRouteRejectsNonPendingPlan(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SeedVehicles(ctx, []model.Vehicle{{ID: "veh-1", CapacityKg: 500}})
	require.NoError(t, err)
	created, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{Address: model.Address{City: "Santos"}, RequestedDate: "2026-09-01", WeightKg: 30},
	})
	require.NoError(t, err)

	require.NoError(t, m.ApplyAllocation(ctx, created[0].ID, model.AllocationResult{
		ResourceType: model.ResourceCarrier, ResourceID: "car-1",
	}, "op"))

	_, err = m.CreateRoute(ctx, model.Route{
		PlanDate:  "2026-09-01",
		VehicleID: "veh-1",
		Stops:     []model.RouteStop{{Seq: 1, PlanID: created[0].ID, City: "Santos"}},
	}, "op-1")
	assert.True(t, errors.Is(err, model.ErrPlanNotPending))
}

func TestMemoryNextRouteSeq(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SeedVehicles(ctx, []model.Vehicle{{ID: "veh-1", CapacityKg: 500}})
	require.NoError(t, err)

	seq, err := m.NextRouteSeq(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	created, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
		{Address: model.Address{City: "Santos"}, RequestedDate: "2026-09-01", WeightKg: 1},
	})
	require.NoError(t, err)
	_, err = m.CreateRoute(ctx, model.Route{PlanDate: "2026-09-01", VehicleID: "veh-1",
		Stops: []model.RouteStop{{Seq: 1, PlanID: created[0].ID, City: "Santos"}}}, "op")
	require.NoError(t, err)

	seq, err = m.NextRouteSeq(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	seq, err = m.NextRouteSeq(ctx, "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestMemoryZoneLookups(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SeedZones(ctx, []model.DeliveryZone{
		{ID: "z-sp", Name: "Sao Paulo Capital", City: "Sao Paulo", Province: "SP", LeadTimeDays: 1},
		{ID: "z-sp-int", Name: "SP Interior", Province: "SP", LeadTimeDays: 2},
	})
	require.NoError(t, err)

	z, err := m.GetZoneByCity(ctx, "  sao paulo ")
	require.NoError(t, err)
	assert.Equal(t, "z-sp", z.ID)

	z, err = m.GetZoneByProvince(ctx, "sp")
	require.NoError(t, err)
	assert.Equal(t, "z-sp-int", z.ID)

	_, err = m.GetZoneByCity(ctx, "Recife")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryListPlansCursor(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := m.CreatePlans(ctx, []model.DeliveryPlan{
			{Address: model.Address{City: "Sao Paulo"}, RequestedDate: "2026-09-01", WeightKg: 1},
		})
		require.NoError(t, err)
	}
	page1, next, err := m.ListPlans(ctx, "", "", "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, next)

	page2, _, err := m.ListPlans(ctx, "", "", next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
	assert.NotEqual(t, page1[1].ID, page2[0].ID)
}
