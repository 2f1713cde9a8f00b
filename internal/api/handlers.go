package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetplan/internal/metrics"
	"fleetplan/internal/model"
	"fleetplan/internal/routing"
)

type allocateRequest struct {
	PlanID  string         `json:"planId"`
	Weights *model.Weights `json:"weights,omitempty"`
}

type allocateBatchRequest struct {
	PlanIDs []string       `json:"planIds"`
	Weights *model.Weights `json:"weights,omitempty"`
}

type applyRequest struct {
	Result model.AllocationResult `json:"result"`
}

type optimizeRequest struct {
	PlanDate   string   `json:"planDate"`
	VehicleIDs []string `json:"vehicleIds,omitempty"`
	ZoneIDs    []string `json:"zoneIds,omitempty"`
	Persist    bool     `json:"persist,omitempty"`
}

type persistRequest struct {
	PlanDate string        `json:"planDate"`
	Routes   []model.Route `json:"routes,omitempty"`
}

// PlansHandler handles POST/GET /v1/plans
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Plans []model.DeliveryPlan `json:"plans"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		for i, p := range req.Plans {
			if err := validatePlanIn(p); err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid plan", fmt.Sprintf("plans[%d]: %v", i, err), r.URL.Path)
				return
			}
		}
		// resolve zones up front so optimize can filter by zone
		for i := range req.Plans {
			if req.Plans[i].ZoneID != "" {
				continue
			}
			z, err := s.Zones.Resolve(r.Context(), req.Plans[i].Address)
			if err != nil {
				writeProblem(w, http.StatusInternalServerError, "Zone resolution failed", err.Error(), r.URL.Path)
				return
			}
			req.Plans[i].ZoneID = z.ID
		}
		created, skipped, err := s.Store.CreatePlans(r.Context(), req.Plans)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": created, "skipped": skipped})
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		planDate := r.URL.Query().Get("planDate")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListPlans(r.Context(), status, planDate, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanByIDHandler handles GET /v1/plans/{id}
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p, err := s.Store.GetPlan(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Plan not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AllocationsHandler handles POST /v1/allocations
func (s *Server) AllocationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.PlanID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid allocate request", "planId is required", r.URL.Path)
		return
	}
	if err := validateWeights(req.Weights); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid allocate request", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Alloc.Allocate(r.Context(), req.PlanID, req.Weights)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "Plan not found", req.PlanID, r.URL.Path)
		case errors.Is(err, model.ErrNoCandidates):
			metrics.Allocations.WithLabelValues("no_candidates").Inc()
			writeProblemKind(w, http.StatusUnprocessableEntity, problemNoCandidates, "No eligible resources", err.Error(), r.URL.Path)
		default:
			metrics.Allocations.WithLabelValues("error").Inc()
			writeProblem(w, http.StatusInternalServerError, "Allocation failed", err.Error(), r.URL.Path)
		}
		return
	}
	metrics.Allocations.WithLabelValues(res.ResourceType).Inc()
	writeJSON(w, http.StatusOK, res)
}

// AllocationsBatchHandler handles POST /v1/allocations/batch
func (s *Server) AllocationsBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req allocateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(req.PlanIDs) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid batch request", "planIds must not be empty", r.URL.Path)
		return
	}
	if err := validateWeights(req.Weights); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid batch request", err.Error(), r.URL.Path)
		return
	}
	items := s.Alloc.AllocateBatch(r.Context(), req.PlanIDs, req.Weights)
	succeeded := 0
	for _, it := range items {
		if it.Error == "" {
			succeeded++
			metrics.Allocations.WithLabelValues(it.Result.ResourceType).Inc()
		} else {
			metrics.Allocations.WithLabelValues("error").Inc()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
	})
}

// AllocationsApplyHandler handles POST /v1/allocations/apply
func (s *Server) AllocationsApplyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := s.Alloc.Apply(r.Context(), req.Result, p.OperatorID); err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "Plan not found", req.Result.PlanID, r.URL.Path)
		case errors.Is(err, model.ErrPlanNotPending):
			writeProblemKind(w, http.StatusConflict, problemPlanNotPending, "Plan not pending", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Apply failed", err.Error(), r.URL.Path)
		}
		return
	}
	s.Broker.Publish(TopicPlanning, SSEEvent{Type: "allocation.applied", Data: map[string]any{
		"planId":       req.Result.PlanID,
		"resourceType": req.Result.ResourceType,
		"resourceId":   req.Result.ResourceID,
	}})
	plan, err := s.Store.GetPlan(r.Context(), req.Result.PlanID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"applied": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true, "plan": plan})
}

// RoutesOptimizeHandler handles POST /v1/routes/optimize
func (s *Server) RoutesOptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	routes, summary, err := s.Opt.Optimize(r.Context(), req.PlanDate, req.VehicleIDs, req.ZoneIDs)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	metrics.RoutesPlanned.Add(float64(summary.Routes))
	metrics.UncoveredPlans.Set(float64(summary.UncoveredPlans))
	for _, rt := range routes {
		metrics.RouteEfficiency.Observe(rt.Efficiency)
	}
	routing.RecordRun(routing.RunRecord{
		PlanDate:       req.PlanDate,
		Routes:         summary.Routes,
		PlannedStops:   summary.PlannedStops,
		UncoveredPlans: summary.UncoveredPlans,
	})
	s.Broker.Publish(TopicPlanning, SSEEvent{Type: "routes.optimized", Data: map[string]any{
		"planDate":       summary.PlanDate,
		"routes":         summary.Routes,
		"plannedStops":   summary.PlannedStops,
		"uncoveredPlans": summary.UncoveredPlans,
	}})
	if req.Persist {
		persisted, err := s.persistRoutes(r.Context(), routes, req.PlanDate, p.OperatorID)
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"routes":    routes,
				"summary":   summary,
				"persisted": persisted,
				"error":     err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"routes": routes, "summary": summary, "persisted": persisted})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": routes, "summary": summary})
}

// persistRoutes writes planned routes through the optimizer's persist path
// and emits the per-route events. Earlier routes survive a later failure.
func (s *Server) persistRoutes(ctx context.Context, routes []model.Route, planDate, operatorID string) ([]model.Route, error) {
	persisted, err := s.Opt.Persist(ctx, routes, planDate, operatorID)
	metrics.RoutesPersisted.Add(float64(len(persisted)))
	for _, rt := range persisted {
		s.Broker.Publish(TopicPlanning, SSEEvent{Type: "route.created", Data: map[string]any{
			"routeId":  rt.ID,
			"code":     rt.Code,
			"planDate": rt.PlanDate,
			"stops":    len(rt.Stops),
		}})
	}
	if err == nil {
		if rec, ok := routing.GetRun(planDate); ok {
			rec.Persisted = true
			routing.RecordRun(rec)
		}
	}
	return persisted, err
}

// RoutesPersistHandler handles POST /v1/routes/persist
func (s *Server) RoutesPersistHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req persistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validatePersistRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid persist request", err.Error(), r.URL.Path)
		return
	}
	routes := req.Routes
	if len(routes) == 0 {
		// no routes supplied: plan a fresh run and persist that
		var summary model.OptimizeSummary
		var err error
		routes, summary, err = s.Opt.Optimize(r.Context(), req.PlanDate, nil, nil)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
			return
		}
		routing.RecordRun(routing.RunRecord{
			PlanDate:       req.PlanDate,
			Routes:         summary.Routes,
			PlannedStops:   summary.PlannedStops,
			UncoveredPlans: summary.UncoveredPlans,
		})
	}
	persisted, err := s.persistRoutes(r.Context(), routes, req.PlanDate, p.OperatorID)
	if err != nil {
		// partial write: report what landed along with the failure
		writeJSON(w, http.StatusConflict, map[string]any{
			"persisted": persisted,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"persisted": persisted})
}

// RoutesIndexHandler handles GET /v1/routes
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	planDate := r.URL.Query().Get("planDate")
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRoutes(r.Context(), planDate, status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List routes failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RouteByIDHandler handles GET /v1/routes/{id} and /v1/routes/{id}/events/stream
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if strings.HasSuffix(rest, "/events/stream") {
		id := strings.TrimSuffix(rest, "/events/stream")
		s.streamEvents(w, r, strings.Trim(id, "/"))
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rt, err := s.Store.GetRoute(r.Context(), rest)
	if errors.Is(err, model.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Route not found", rest, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get route failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// EventsStreamHandler handles GET /v1/events/stream?topic=planning
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = TopicPlanning
	}
	s.streamEvents(w, r, topic)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"topic\":\"%s\",\"ts\":\"%s\"}\n\n", topic, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		}
	}
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req struct {
			Vehicles []model.Vehicle `json:"vehicles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.SeedVehicles(r.Context(), req.Vehicles)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Seed vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"upserted": n})
	case http.MethodGet:
		planDate := r.URL.Query().Get("planDate")
		items, err := s.Store.ListVehicles(r.Context(), planDate, nil)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// CarriersHandler handles POST/GET /v1/carriers
func (s *Server) CarriersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req struct {
			Carriers []model.CarrierContract `json:"carriers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.SeedCarriers(r.Context(), req.Carriers)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Seed carriers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListCarriers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List carriers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ZonesHandler handles POST/GET /v1/zones
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req struct {
			Zones []model.DeliveryZone `json:"zones"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.SeedZones(r.Context(), req.Zones)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Seed zones failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListZones(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List zones failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AuditEventsHandler handles GET /v1/events
func (s *Server) AuditEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	planID := r.URL.Query().Get("planId")
	routeID := r.URL.Query().Get("routeId")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListEvents(r.Context(), planID, routeID, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List events failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PlanStatsHandler handles GET /v1/admin/plan-stats?planDate=
func (s *Server) PlanStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	planDate := r.URL.Query().Get("planDate")
	if planDate == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid stats request", "planDate is required", r.URL.Path)
		return
	}
	rec, ok := routing.GetRun(planDate)
	if !ok {
		writeProblem(w, http.StatusNotFound, "No optimizer run recorded", planDate, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
