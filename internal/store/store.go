package store

import (
	"context"

	"fleetplan/internal/model"
)

// Store is the persistence interface used by the API server. It is a
// superset of the narrow interfaces the allocation engine and the route
// optimizer declare for themselves.
type Store interface {
	// Delivery plans
	CreatePlans(ctx context.Context, plans []model.DeliveryPlan) (created []model.DeliveryPlan, skipped int, err error)
	GetPlan(ctx context.Context, id string) (model.DeliveryPlan, error)
	ListPlans(ctx context.Context, status, planDate, cursor string, limit int) ([]model.DeliveryPlan, string, error)
	ListPendingPlans(ctx context.Context, planDate string, zoneIDs []string) ([]model.DeliveryPlan, error)
	ApplyAllocation(ctx context.Context, planID string, res model.AllocationResult, actor string) error

	// Fleet and carriers
	SeedVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error)
	ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error)
	SeedCarriers(ctx context.Context, carriers []model.CarrierContract) (int, error)
	ListCarriers(ctx context.Context) ([]model.CarrierContract, error)

	// Zones
	SeedZones(ctx context.Context, zones []model.DeliveryZone) (int, error)
	ListZones(ctx context.Context) ([]model.DeliveryZone, error)
	GetZoneByCity(ctx context.Context, city string) (model.DeliveryZone, error)
	GetZoneByProvince(ctx context.Context, province string) (model.DeliveryZone, error)
	CreateZone(ctx context.Context, z model.DeliveryZone) (model.DeliveryZone, error)

	// Routes
	CreateRoute(ctx context.Context, route model.Route, operator string) (model.Route, error)
	GetRoute(ctx context.Context, id string) (model.Route, error)
	ListRoutes(ctx context.Context, planDate, status, cursor string, limit int) ([]model.Route, string, error)
	NextRouteSeq(ctx context.Context, planDate string) (int, error)

	// Audit trail
	AppendEvent(ctx context.Context, ev model.AuditEvent) error
	ListEvents(ctx context.Context, planID, routeID string, limit int) ([]model.AuditEvent, error)
}
