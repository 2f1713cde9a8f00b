package model

import "time"

// Plan status lifecycle: pending -> scheduled -> en_route -> delivered|cancelled.
const (
	PlanPending   = "pending"
	PlanScheduled = "scheduled"
	PlanEnRoute   = "en_route"
	PlanDelivered = "delivered"
	PlanCancelled = "cancelled"
)

// Priority levels, highest urgency first.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Route status lifecycle: planned -> in_progress -> completed|cancelled.
const (
	RoutePlanned    = "planned"
	RouteInProgress = "in_progress"
	RouteCompleted  = "completed"
	RouteCancelled  = "cancelled"
)

// Resource types an allocation can recommend.
const (
	ResourceVehicle = "vehicle"
	ResourceCarrier = "carrier"
)

// Address is a destination broken into the fields zone resolution needs.
type Address struct {
	Street   string `json:"street,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
}

// DeliveryPlan is one requested shipment/drop-off, the unit of allocation
// and routing.
type DeliveryPlan struct {
	ID            string     `json:"id"`
	ExternalRef   string     `json:"externalRef,omitempty"`
	Address       Address    `json:"address"`
	Lat           float64    `json:"lat,omitempty"`
	Lng           float64    `json:"lng,omitempty"`
	RequestedDate string     `json:"requestedDate"` // YYYY-MM-DD
	WindowStart   *time.Time `json:"windowStart,omitempty"`
	WindowEnd     *time.Time `json:"windowEnd,omitempty"`
	Priority      string     `json:"priority"`
	WeightKg      float64    `json:"weightKg"`
	LengthCm      float64    `json:"lengthCm,omitempty"`
	WidthCm       float64    `json:"widthCm,omitempty"`
	HeightCm      float64    `json:"heightCm,omitempty"`
	Status        string     `json:"status"`
	ZoneID        string     `json:"zoneId,omitempty"`

	// Populated once routed or allocated.
	AssignedStopID    string  `json:"assignedStopId,omitempty"`
	ResourceType      string  `json:"resourceType,omitempty"`
	ResourceID        string  `json:"resourceId,omitempty"`
	EstimatedCost     float64 `json:"estimatedCost,omitempty"`
	EstimatedLeadDays int     `json:"estimatedLeadDays,omitempty"`
}

// DeliveryZone is a named geographic grouping with an approximate center
// and a default delivery lead time.
type DeliveryZone struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	City         string  `json:"city,omitempty"`
	Province     string  `json:"province"`
	Lat          float64 `json:"lat,omitempty"`
	Lng          float64 `json:"lng,omitempty"`
	LeadTimeDays int     `json:"leadTimeDays"`
}

// Vehicle is one internal fleet unit. RoutesOnDate carries the number of
// routes already planned for the date the caller asked about; it is filled
// by store reads, never mutated here.
type Vehicle struct {
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	Status       string  `json:"status"` // active|inactive
	CapacityKg   float64 `json:"capacityKg"`
	ZoneID       string  `json:"zoneId,omitempty"`
	RoutesOnDate int     `json:"routesOnDate,omitempty"`
}

// CarrierContract is an external carrier with a flat+per-weight cost
// function, a declared lead time, and weight/volume ceilings. Coverage is a
// province list; empty means nationwide.
type CarrierContract struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"` // active|inactive
	FlatCost     float64  `json:"flatCost"`
	CostPerKg    float64  `json:"costPerKg"`
	LeadTimeDays int      `json:"leadTimeDays"`
	MaxWeightKg  float64  `json:"maxWeightKg"`
	Coverage     []string `json:"coverage,omitempty"`
}

// Alternative is a runner-up allocation candidate.
type Alternative struct {
	ResourceType      string  `json:"resourceType"`
	ResourceID        string  `json:"resourceId"`
	ResourceName      string  `json:"resourceName,omitempty"`
	EstimatedCost     float64 `json:"estimatedCost"`
	EstimatedLeadDays int     `json:"estimatedLeadDays"`
	Score             float64 `json:"score"`
}

// AllocationResult is the ephemeral outcome of ranking candidates for one
// plan. It is never mutated after creation; callers apply it explicitly.
type AllocationResult struct {
	PlanID            string        `json:"planId"`
	ResourceType      string        `json:"resourceType"`
	ResourceID        string        `json:"resourceId"`
	ResourceName      string        `json:"resourceName,omitempty"`
	EstimatedCost     float64       `json:"estimatedCost"`
	EstimatedLeadDays int           `json:"estimatedLeadDays"`
	Score             float64       `json:"score"`
	Rationale         string        `json:"rationale,omitempty"`
	Alternatives      []Alternative `json:"alternatives,omitempty"`
}

// BatchItem wraps one plan's allocation outcome inside a batch. A failed
// plan carries Error and leaves Result nil; the batch itself never aborts.
type BatchItem struct {
	PlanID string            `json:"planId"`
	Result *AllocationResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// RouteStop is one stop within a route. Seq is 1-based and dense within
// the route.
type RouteStop struct {
	ID           string     `json:"id,omitempty"`
	RouteID      string     `json:"routeId,omitempty"`
	Seq          int        `json:"seq"`
	PlanID       string     `json:"planId"`
	City         string     `json:"city"`
	ETAArrival   *time.Time `json:"etaArrival,omitempty"`
	ETADeparture *time.Time `json:"etaDeparture,omitempty"`
	ServiceMin   int        `json:"serviceMin"`
	WeightKg     float64    `json:"weightKg"`
	DistanceKm   float64    `json:"distanceKm"`
}

// Route is a vehicle's ordered stop set for one planning date.
type Route struct {
	ID               string      `json:"id,omitempty"`
	Code             string      `json:"code,omitempty"` // ROUTE-YYYYMMDD-NNN
	PlanDate         string      `json:"planDate"`
	VehicleID        string      `json:"vehicleId"`
	DriverID         string      `json:"driverId,omitempty"`
	Status           string      `json:"status"`
	StartAt          *time.Time  `json:"startAt,omitempty"`
	EndAt            *time.Time  `json:"endAt,omitempty"`
	TotalDistanceKm  float64     `json:"totalDistanceKm"`
	TotalDurationMin int         `json:"totalDurationMin"`
	TotalWeightKg    float64     `json:"totalWeightKg"`
	Efficiency       float64     `json:"efficiency"`
	Stops            []RouteStop `json:"stops"`
}

// OptimizeSummary reports coverage of one optimizer run. Uncovered plans
// are not an error; they stay pending for the next cycle.
type OptimizeSummary struct {
	PlanDate       string   `json:"planDate"`
	Routes         int      `json:"routes"`
	PlannedStops   int      `json:"plannedStops"`
	UncoveredPlans int      `json:"uncoveredPlans"`
	UncoveredIDs   []string `json:"uncoveredIds,omitempty"`
}

// AuditEvent is a single append-only record written when an allocation is
// applied or a route is persisted.
type AuditEvent struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"` // allocation.applied, route.created
	PlanID  string         `json:"planId,omitempty"`
	RouteID string         `json:"routeId,omitempty"`
	Actor   string         `json:"actor,omitempty"`
	TS      time.Time      `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}

// PriorityRank maps a priority to its numeric rank, urgent=1 .. low=4.
// Unknown priorities rank as normal.
func PriorityRank(p string) int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 3
	case PriorityLow:
		return 4
	default:
		return 3
	}
}

// ServiceMinutes returns the estimated on-site service duration for a
// priority: urgent stops are short handoffs, low-priority stops the longest.
func ServiceMinutes(p string) int {
	switch p {
	case PriorityUrgent:
		return 15
	case PriorityHigh:
		return 20
	case PriorityNormal:
		return 30
	case PriorityLow:
		return 45
	default:
		return 30
	}
}
