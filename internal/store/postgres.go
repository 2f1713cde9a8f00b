package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetplan/internal/model"
)

// Postgres backs the store with a PostgreSQL database through the pgx
// stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every .sql file in dir in lexical order. Dev helper;
// production schemas are managed out of band.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
	}
	return nil
}

func (p *Postgres) CreatePlans(ctx context.Context, plans []model.DeliveryPlan) ([]model.DeliveryPlan, int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created := []model.DeliveryPlan{}
	skipped := 0
	for _, pl := range plans {
		if pl.ExternalRef != "" {
			var existsID string
			err = tx.QueryRowContext(ctx, `SELECT id::text FROM delivery_plans WHERE external_ref=$1`, pl.ExternalRef).Scan(&existsID)
			if err == nil {
				skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, 0, err
			}
		}
		if pl.ID == "" {
			pl.ID = uuid.New().String()
		}
		if pl.Status == "" {
			pl.Status = model.PlanPending
		}
		if pl.Priority == "" {
			pl.Priority = model.PriorityNormal
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO delivery_plans
			(id, external_ref, street, city, province, lat, lng, requested_date, window_start, window_end,
			 priority, weight_kg, length_cm, width_cm, height_cm, status, zone_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			pl.ID, nullIfEmpty(pl.ExternalRef), nullIfEmpty(pl.Address.Street), pl.Address.City, nullIfEmpty(pl.Address.Province),
			pl.Lat, pl.Lng, pl.RequestedDate, pl.WindowStart, pl.WindowEnd,
			pl.Priority, pl.WeightKg, pl.LengthCm, pl.WidthCm, pl.HeightCm, pl.Status, nullIfEmpty(pl.ZoneID))
		if err != nil {
			return nil, 0, err
		}
		created = append(created, pl)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return created, skipped, nil
}

const planCols = `id::text, COALESCE(external_ref,''), COALESCE(street,''), city, COALESCE(province,''),
	COALESCE(lat,0), COALESCE(lng,0), requested_date, window_start, window_end, priority,
	weight_kg, COALESCE(length_cm,0), COALESCE(width_cm,0), COALESCE(height_cm,0), status,
	COALESCE(zone_id::text,''), COALESCE(assigned_stop_id::text,''), COALESCE(resource_type,''),
	COALESCE(resource_id,''), COALESCE(estimated_cost,0), COALESCE(estimated_lead_days,0)`

func scanPlan(sc interface{ Scan(...any) error }) (model.DeliveryPlan, error) {
	var pl model.DeliveryPlan
	var ws, we sql.NullTime
	err := sc.Scan(&pl.ID, &pl.ExternalRef, &pl.Address.Street, &pl.Address.City, &pl.Address.Province,
		&pl.Lat, &pl.Lng, &pl.RequestedDate, &ws, &we, &pl.Priority,
		&pl.WeightKg, &pl.LengthCm, &pl.WidthCm, &pl.HeightCm, &pl.Status,
		&pl.ZoneID, &pl.AssignedStopID, &pl.ResourceType,
		&pl.ResourceID, &pl.EstimatedCost, &pl.EstimatedLeadDays)
	if err != nil {
		return pl, err
	}
	if ws.Valid {
		t := ws.Time
		pl.WindowStart = &t
	}
	if we.Valid {
		t := we.Time
		pl.WindowEnd = &t
	}
	return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.DeliveryPlan, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+planCols+` FROM delivery_plans WHERE id=$1`, id)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryPlan{}, model.ErrNotFound
	}
	return pl, err
}

func (p *Postgres) ListPlans(ctx context.Context, status, planDate, cursor string, limit int) ([]model.DeliveryPlan, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + planCols + ` FROM delivery_plans WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if planDate != "" {
		args = append(args, planDate)
		q += fmt.Sprintf(" AND requested_date=$%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND id::text > $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.DeliveryPlan{}
	var last string
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, pl)
		last = pl.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) ListPendingPlans(ctx context.Context, planDate string, zoneIDs []string) ([]model.DeliveryPlan, error) {
	q := `SELECT ` + planCols + ` FROM delivery_plans WHERE status='pending'`
	args := []any{}
	if planDate != "" {
		args = append(args, planDate)
		q += fmt.Sprintf(" AND requested_date=$%d", len(args))
	}
	if len(zoneIDs) > 0 {
		ph := make([]string, len(zoneIDs))
		for i, z := range zoneIDs {
			args = append(args, z)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		q += " AND zone_id::text IN (" + strings.Join(ph, ",") + ")"
	}
	q += " ORDER BY id"
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DeliveryPlan{}
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (p *Postgres) ApplyAllocation(ctx context.Context, planID string, res model.AllocationResult, actor string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM delivery_plans WHERE id=$1 FOR UPDATE`, planID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.PlanPending {
		return fmt.Errorf("plan %s is %s: %w", planID, status, model.ErrPlanNotPending)
	}
	_, err = tx.ExecContext(ctx, `UPDATE delivery_plans
		SET status='scheduled', resource_type=$1, resource_id=$2, estimated_cost=$3, estimated_lead_days=$4, updated_at=now()
		WHERE id=$5`,
		res.ResourceType, res.ResourceID, res.EstimatedCost, res.EstimatedLeadDays, planID)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{
		"resourceType":  res.ResourceType,
		"resourceId":    res.ResourceID,
		"estimatedCost": res.EstimatedCost,
		"score":         res.Score,
	})
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_events (id, type, plan_id, actor, ts, payload) VALUES ($1,$2,$3,$4,now(),$5)`,
		uuid.New(), "allocation.applied", planID, nullIfEmpty(actor), payload)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) SeedVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	n := 0
	for _, v := range vehicles {
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		if v.Status == "" {
			v.Status = "active"
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO vehicles (id, name, status, capacity_kg, zone_id)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, status=EXCLUDED.status, capacity_kg=EXCLUDED.capacity_kg, zone_id=EXCLUDED.zone_id`,
			v.ID, nullIfEmpty(v.Name), v.Status, v.CapacityKg, nullIfEmpty(v.ZoneID))
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, tx.Commit()
}

func (p *Postgres) ListVehicles(ctx context.Context, planDate string, ids []string) ([]model.Vehicle, error) {
	q := `SELECT v.id::text, COALESCE(v.name,''), v.status, v.capacity_kg, COALESCE(v.zone_id::text,''),
		(SELECT count(*) FROM routes r WHERE r.vehicle_id=v.id AND r.plan_date=$1 AND r.status <> 'cancelled')
		FROM vehicles v`
	args := []any{planDate}
	if len(ids) > 0 {
		ph := make([]string, len(ids))
		for i, id := range ids {
			args = append(args, id)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		q += " WHERE v.id::text IN (" + strings.Join(ph, ",") + ")"
	}
	q += " ORDER BY v.id"
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Status, &v.CapacityKg, &v.ZoneID, &v.RoutesOnDate); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) SeedCarriers(ctx context.Context, carriers []model.CarrierContract) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	n := 0
	for _, c := range carriers {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Status == "" {
			c.Status = "active"
		}
		cov, _ := json.Marshal(c.Coverage)
		_, err = tx.ExecContext(ctx, `INSERT INTO carrier_contracts (id, name, status, flat_cost, cost_per_kg, lead_time_days, max_weight_kg, coverage)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, status=EXCLUDED.status, flat_cost=EXCLUDED.flat_cost,
				cost_per_kg=EXCLUDED.cost_per_kg, lead_time_days=EXCLUDED.lead_time_days, max_weight_kg=EXCLUDED.max_weight_kg, coverage=EXCLUDED.coverage`,
			c.ID, c.Name, c.Status, c.FlatCost, c.CostPerKg, c.LeadTimeDays, c.MaxWeightKg, cov)
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, tx.Commit()
}

func (p *Postgres) ListCarriers(ctx context.Context) ([]model.CarrierContract, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, status, flat_cost, cost_per_kg, lead_time_days, max_weight_kg, coverage FROM carrier_contracts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CarrierContract{}
	for rows.Next() {
		var c model.CarrierContract
		var cov []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.FlatCost, &c.CostPerKg, &c.LeadTimeDays, &c.MaxWeightKg, &cov); err != nil {
			return nil, err
		}
		if len(cov) > 0 {
			_ = json.Unmarshal(cov, &c.Coverage)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) SeedZones(ctx context.Context, zones []model.DeliveryZone) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	n := 0
	for _, z := range zones {
		if z.ID == "" {
			z.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO delivery_zones (id, name, city, province, lat, lng, lead_time_days)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, city=EXCLUDED.city, province=EXCLUDED.province,
				lat=EXCLUDED.lat, lng=EXCLUDED.lng, lead_time_days=EXCLUDED.lead_time_days`,
			z.ID, z.Name, nullIfEmpty(z.City), z.Province, z.Lat, z.Lng, z.LeadTimeDays)
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, tx.Commit()
}

func (p *Postgres) ListZones(ctx context.Context) ([]model.DeliveryZone, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, COALESCE(city,''), province, COALESCE(lat,0), COALESCE(lng,0), lead_time_days FROM delivery_zones ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DeliveryZone{}
	for rows.Next() {
		var z model.DeliveryZone
		if err := rows.Scan(&z.ID, &z.Name, &z.City, &z.Province, &z.Lat, &z.Lng, &z.LeadTimeDays); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (p *Postgres) GetZoneByCity(ctx context.Context, city string) (model.DeliveryZone, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, name, COALESCE(city,''), province, COALESCE(lat,0), COALESCE(lng,0), lead_time_days
		FROM delivery_zones WHERE lower(city)=lower($1) LIMIT 1`, strings.TrimSpace(city))
	var z model.DeliveryZone
	err := row.Scan(&z.ID, &z.Name, &z.City, &z.Province, &z.Lat, &z.Lng, &z.LeadTimeDays)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryZone{}, model.ErrNotFound
	}
	return z, err
}

func (p *Postgres) GetZoneByProvince(ctx context.Context, province string) (model.DeliveryZone, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, name, COALESCE(city,''), province, COALESCE(lat,0), COALESCE(lng,0), lead_time_days
		FROM delivery_zones WHERE city IS NULL AND lower(province)=lower($1) LIMIT 1`, strings.TrimSpace(province))
	var z model.DeliveryZone
	err := row.Scan(&z.ID, &z.Name, &z.City, &z.Province, &z.Lat, &z.Lng, &z.LeadTimeDays)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryZone{}, model.ErrNotFound
	}
	return z, err
}

func (p *Postgres) CreateZone(ctx context.Context, z model.DeliveryZone) (model.DeliveryZone, error) {
	if z.ID == "" {
		z.ID = uuid.New().String()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO delivery_zones (id, name, city, province, lat, lng, lead_time_days) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		z.ID, z.Name, nullIfEmpty(z.City), z.Province, z.Lat, z.Lng, z.LeadTimeDays)
	if err != nil {
		return model.DeliveryZone{}, err
	}
	return z, nil
}

func (p *Postgres) CreateRoute(ctx context.Context, route model.Route, operator string) (model.Route, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Route{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if route.ID == "" {
		route.ID = uuid.New().String()
	}
	if route.Status == "" {
		route.Status = model.RoutePlanned
	}
	// lock and re-check every stop's plan before touching anything
	for _, s := range route.Stops {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM delivery_plans WHERE id=$1 FOR UPDATE`, s.PlanID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Route{}, fmt.Errorf("stop plan %s: %w", s.PlanID, model.ErrNotFound)
		}
		if err != nil {
			return model.Route{}, err
		}
		if status != model.PlanPending {
			return model.Route{}, fmt.Errorf("stop plan %s is %s: %w", s.PlanID, status, model.ErrPlanNotPending)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO routes
		(id, code, plan_date, vehicle_id, driver_id, status, start_at, end_at, total_distance_km, total_duration_min, total_weight_kg, efficiency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		route.ID, route.Code, route.PlanDate, route.VehicleID, nullIfEmpty(route.DriverID), route.Status,
		route.StartAt, route.EndAt, route.TotalDistanceKm, route.TotalDurationMin, route.TotalWeightKg, route.Efficiency)
	if err != nil {
		return model.Route{}, err
	}
	for i := range route.Stops {
		s := &route.Stops[i]
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		s.RouteID = route.ID
		_, err = tx.ExecContext(ctx, `INSERT INTO route_stops
			(id, route_id, seq, plan_id, city, eta_arrival, eta_departure, service_min, weight_kg, distance_km)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			s.ID, route.ID, s.Seq, s.PlanID, s.City, s.ETAArrival, s.ETADeparture, s.ServiceMin, s.WeightKg, s.DistanceKm)
		if err != nil {
			return model.Route{}, err
		}
		_, err = tx.ExecContext(ctx, `UPDATE delivery_plans
			SET status='scheduled', assigned_stop_id=$1, resource_type='vehicle', resource_id=$2, updated_at=now()
			WHERE id=$3`, s.ID, route.VehicleID, s.PlanID)
		if err != nil {
			return model.Route{}, err
		}
	}
	payload, _ := json.Marshal(map[string]any{
		"code":      route.Code,
		"vehicleId": route.VehicleID,
		"planDate":  route.PlanDate,
		"stops":     len(route.Stops),
	})
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_events (id, type, route_id, actor, ts, payload) VALUES ($1,$2,$3,$4,now(),$5)`,
		uuid.New(), "route.created", route.ID, nullIfEmpty(operator), payload)
	if err != nil {
		return model.Route{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Route{}, err
	}
	return route, nil
}

func (p *Postgres) GetRoute(ctx context.Context, id string) (model.Route, error) {
	var r model.Route
	row := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(code,''), plan_date, vehicle_id::text, COALESCE(driver_id,''), status,
		start_at, end_at, total_distance_km, total_duration_min, total_weight_kg, efficiency
		FROM routes WHERE id=$1`, id)
	var startAt, endAt sql.NullTime
	if err := row.Scan(&r.ID, &r.Code, &r.PlanDate, &r.VehicleID, &r.DriverID, &r.Status,
		&startAt, &endAt, &r.TotalDistanceKm, &r.TotalDurationMin, &r.TotalWeightKg, &r.Efficiency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, model.ErrNotFound
		}
		return r, err
	}
	if startAt.Valid {
		t := startAt.Time
		r.StartAt = &t
	}
	if endAt.Valid {
		t := endAt.Time
		r.EndAt = &t
	}
	stops, err := p.routeStops(ctx, r.ID)
	if err != nil {
		return r, err
	}
	r.Stops = stops
	return r, nil
}

func (p *Postgres) routeStops(ctx context.Context, routeID string) ([]model.RouteStop, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, seq, plan_id::text, city, eta_arrival, eta_departure, service_min, weight_kg, distance_km
		FROM route_stops WHERE route_id=$1 ORDER BY seq`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RouteStop{}
	for rows.Next() {
		var s model.RouteStop
		var etaA, etaD sql.NullTime
		if err := rows.Scan(&s.ID, &s.Seq, &s.PlanID, &s.City, &etaA, &etaD, &s.ServiceMin, &s.WeightKg, &s.DistanceKm); err != nil {
			return nil, err
		}
		s.RouteID = routeID
		if etaA.Valid {
			t := etaA.Time
			s.ETAArrival = &t
		}
		if etaD.Valid {
			t := etaD.Time
			s.ETADeparture = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRoutes(ctx context.Context, planDate, status, cursor string, limit int) ([]model.Route, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text FROM routes WHERE 1=1`
	args := []any{}
	if planDate != "" {
		args = append(args, planDate)
		q += fmt.Sprintf(" AND plan_date=$%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(" AND id::text > $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, "", err
		}
		ids = append(ids, id)
	}
	rows.Close()
	out := []model.Route{}
	for _, id := range ids {
		r, err := p.GetRoute(ctx, id)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) NextRouteSeq(ctx context.Context, planDate string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM routes WHERE plan_date=$1`, planDate).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (p *Postgres) AppendEvent(ctx context.Context, ev model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	payload, _ := json.Marshal(ev.Payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO audit_events (id, type, plan_id, route_id, actor, ts, payload) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID, ev.Type, nullIfEmpty(ev.PlanID), nullIfEmpty(ev.RouteID), nullIfEmpty(ev.Actor), ev.TS, payload)
	return err
}

func (p *Postgres) ListEvents(ctx context.Context, planID, routeID string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, type, COALESCE(plan_id::text,''), COALESCE(route_id::text,''), COALESCE(actor,''), ts, payload FROM audit_events WHERE 1=1`
	args := []any{}
	if planID != "" {
		args = append(args, planID)
		q += fmt.Sprintf(" AND plan_id=$%d", len(args))
	}
	if routeID != "" {
		args = append(args, routeID)
		q += fmt.Sprintf(" AND route_id=$%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY ts LIMIT $%d", len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.AuditEvent{}
	for rows.Next() {
		var ev model.AuditEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.PlanID, &ev.RouteID, &ev.Actor, &ev.TS, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &ev.Payload)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
