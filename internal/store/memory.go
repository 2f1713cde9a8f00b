package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	plans    map[string]model.DeliveryPlan // id -> plan
	planIDs  []string                      // insertion order
	byRef    map[string]string             // externalRef -> plan id
	vehicles map[string]model.Vehicle      // id -> vehicle
	vehIDs   []string
	carriers map[string]model.CarrierContract
	carIDs   []string
	zones    map[string]model.DeliveryZone
	zoneIDs  []string
	routes   map[string]model.Route
	routeIDs []string
	events   []model.AuditEvent
}

func NewMemory() *Memory {
	return &Memory{
		plans:    map[string]model.DeliveryPlan{},
		byRef:    map[string]string{},
		vehicles: map[string]model.Vehicle{},
		carriers: map[string]model.CarrierContract{},
		zones:    map[string]model.DeliveryZone{},
		routes:   map[string]model.Route{},
	}
}

func (m *Memory) CreatePlans(ctx context.Context, plans []model.DeliveryPlan) ([]model.DeliveryPlan, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := []model.DeliveryPlan{}
	skipped := 0
	for _, p := range plans {
		if p.ExternalRef != "" {
			if _, dup := m.byRef[p.ExternalRef]; dup {
				skipped++
				continue
			}
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.Status == "" {
			p.Status = model.PlanPending
		}
		if p.Priority == "" {
			p.Priority = model.PriorityNormal
		}
		m.plans[p.ID] = p
		m.planIDs = append(m.planIDs, p.ID)
		if p.ExternalRef != "" {
			m.byRef[p.ExternalRef] = p.ID
		}
		created = append(created, p)
	}
	return created, skipped, nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.DeliveryPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.DeliveryPlan{}, model.ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, status, planDate, cursor string, limit int) ([]model.DeliveryPlan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, id := range m.planIDs {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.DeliveryPlan{}
	var last string
	for i := start; i < len(m.planIDs) && len(out) < limit; i++ {
		p := m.plans[m.planIDs[i]]
		if status != "" && p.Status != status {
			continue
		}
		if planDate != "" && p.RequestedDate != planDate {
			continue
		}
		out = append(out, p)
		last = p.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (m *Memory) ListPendingPlans(ctx context.Context, planDate string, zoneIDs []string) ([]model.DeliveryPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zoneSet := map[string]bool{}
	for _, z := range zoneIDs {
		zoneSet[z] = true
	}
	out := []model.DeliveryPlan{}
	for _, id := range m.planIDs {
		p := m.plans[id]
		if p.Status != model.PlanPending {
			continue
		}
		if planDate != "" && p.RequestedDate != planDate {
			continue
		}
		if len(zoneSet) > 0 && !zoneSet[p.ZoneID] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) ApplyAllocation(ctx context.Context, planID string, res model.AllocationResult, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return model.ErrNotFound
	}
	if p.Status != model.PlanPending {
		return fmt.Errorf("plan %s is %s: %w", planID, p.Status, model.ErrPlanNotPending)
	}
	p.Status = model.PlanScheduled
	p.ResourceType = res.ResourceType
	p.ResourceID = res.ResourceID
	p.EstimatedCost = res.EstimatedCost
	p.EstimatedLeadDays = res.EstimatedLeadDays
	m.plans[planID] = p
	m.events = append(m.events, model.AuditEvent{
		ID:     uuid.New().String(),
		Type:   "allocation.applied",
		PlanID: planID,
		Actor:  actor,
		TS:     time.Now().UTC(),
		Payload: map[string]any{
			"resourceType":  res.ResourceType,
			"resourceId":    res.ResourceID,
			"estimatedCost": res.EstimatedCost,
			"score":         res.Score,
		},
	})
	return nil
}

func (m *Memory) SeedVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range vehicles {
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		if v.Status == "" {
			v.Status = "active"
		}
		if _, exists := m.vehicles[v.ID]; !exists {
			m.vehIDs = append(m.vehIDs, v.ID)
		}
		m.vehicles[v.ID] = v
		n++
	}
	return n, nil
}

func (m *Memory) ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	// routes already planned per vehicle on the requested date
	onDate := map[string]int{}
	for _, rid := range m.routeIDs {
		r := m.routes[rid]
		if r.PlanDate == planDate && r.Status != model.RouteCancelled {
			onDate[r.VehicleID]++
		}
	}
	out := []model.Vehicle{}
	for _, id := range m.vehIDs {
		if len(want) > 0 && !want[id] {
			continue
		}
		v := m.vehicles[id]
		v.RoutesOnDate = onDate[id]
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) SeedCarriers(ctx context.Context, carriers []model.CarrierContract) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range carriers {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Status == "" {
			c.Status = "active"
		}
		if _, exists := m.carriers[c.ID]; !exists {
			m.carIDs = append(m.carIDs, c.ID)
		}
		m.carriers[c.ID] = c
		n++
	}
	return n, nil
}

func (m *Memory) ListCarriers(ctx context.Context) ([]model.CarrierContract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CarrierContract, 0, len(m.carIDs))
	for _, id := range m.carIDs {
		out = append(out, m.carriers[id])
	}
	return out, nil
}

func (m *Memory) SeedZones(ctx context.Context, zones []model.DeliveryZone) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, z := range zones {
		if z.ID == "" {
			z.ID = uuid.New().String()
		}
		if _, exists := m.zones[z.ID]; !exists {
			m.zoneIDs = append(m.zoneIDs, z.ID)
		}
		m.zones[z.ID] = z
		n++
	}
	return n, nil
}

func (m *Memory) ListZones(ctx context.Context) ([]model.DeliveryZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeliveryZone, 0, len(m.zoneIDs))
	for _, id := range m.zoneIDs {
		out = append(out, m.zones[id])
	}
	return out, nil
}

func (m *Memory) GetZoneByCity(ctx context.Context, city string) (model.DeliveryZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(city))
	for _, id := range m.zoneIDs {
		z := m.zones[id]
		if strings.ToLower(strings.TrimSpace(z.City)) == key && z.City != "" {
			return z, nil
		}
	}
	return model.DeliveryZone{}, model.ErrNotFound
}

func (m *Memory) GetZoneByProvince(ctx context.Context, province string) (model.DeliveryZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(province))
	for _, id := range m.zoneIDs {
		z := m.zones[id]
		// province-level zones carry no city
		if z.City == "" && strings.ToLower(strings.TrimSpace(z.Province)) == key {
			return z, nil
		}
	}
	return model.DeliveryZone{}, model.ErrNotFound
}

func (m *Memory) CreateZone(ctx context.Context, z model.DeliveryZone) (model.DeliveryZone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	m.zones[z.ID] = z
	m.zoneIDs = append(m.zoneIDs, z.ID)
	return z, nil
}

func (m *Memory) CreateRoute(ctx context.Context, route model.Route, operator string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if route.ID == "" {
		route.ID = uuid.New().String()
	}
	if route.Status == "" {
		route.Status = model.RoutePlanned
	}
	// every stop's plan must still be pending; reject the whole route otherwise
	for _, s := range route.Stops {
		p, ok := m.plans[s.PlanID]
		if !ok {
			return model.Route{}, fmt.Errorf("stop plan %s: %w", s.PlanID, model.ErrNotFound)
		}
		if p.Status != model.PlanPending {
			return model.Route{}, fmt.Errorf("stop plan %s is %s: %w", s.PlanID, p.Status, model.ErrPlanNotPending)
		}
	}
	for i := range route.Stops {
		if route.Stops[i].ID == "" {
			route.Stops[i].ID = uuid.New().String()
		}
		route.Stops[i].RouteID = route.ID
		p := m.plans[route.Stops[i].PlanID]
		p.Status = model.PlanScheduled
		p.AssignedStopID = route.Stops[i].ID
		p.ResourceType = model.ResourceVehicle
		p.ResourceID = route.VehicleID
		m.plans[p.ID] = p
	}
	m.routes[route.ID] = route
	m.routeIDs = append(m.routeIDs, route.ID)
	m.events = append(m.events, model.AuditEvent{
		ID:      uuid.New().String(),
		Type:    "route.created",
		RouteID: route.ID,
		Actor:   operator,
		TS:      time.Now().UTC(),
		Payload: map[string]any{
			"code":      route.Code,
			"vehicleId": route.VehicleID,
			"planDate":  route.PlanDate,
			"stops":     len(route.Stops),
		},
	})
	return route, nil
}

func (m *Memory) GetRoute(ctx context.Context, id string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, model.ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context, planDate, status, cursor string, limit int) ([]model.Route, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, id := range m.routeIDs {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Route{}
	var last string
	for i := start; i < len(m.routeIDs) && len(out) < limit; i++ {
		r := m.routes[m.routeIDs[i]]
		if planDate != "" && r.PlanDate != planDate {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
		last = r.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (m *Memory) NextRouteSeq(ctx context.Context, planDate string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.routeIDs {
		if m.routes[id].PlanDate == planDate {
			n++
		}
	}
	return n + 1, nil
}

func (m *Memory) AppendEvent(ctx context.Context, ev model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, planID, routeID string, limit int) ([]model.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.AuditEvent{}
	for _, ev := range m.events {
		if planID != "" && ev.PlanID != planID {
			continue
		}
		if routeID != "" && ev.RouteID != routeID {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
