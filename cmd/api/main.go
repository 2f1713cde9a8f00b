package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleetplan/internal/api"
	"fleetplan/internal/config"
	"fleetplan/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if os.Getenv("APP_ENV") == "dev" {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Fatal("failed to init server", zap.Error(err))
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Delivery plans
	mux.HandleFunc("/v1/plans", srvDeps.PlansHandler)
	mux.HandleFunc("/v1/plans/", srvDeps.PlanByIDHandler)

	// Allocation
	mux.HandleFunc("/v1/allocations", srvDeps.AllocationsHandler)
	mux.HandleFunc("/v1/allocations/batch", srvDeps.AllocationsBatchHandler)
	mux.HandleFunc("/v1/allocations/apply", srvDeps.AllocationsApplyHandler)

	// Routing
	mux.HandleFunc("/v1/routes/optimize", srvDeps.RoutesOptimizeHandler)
	mux.HandleFunc("/v1/routes/persist", srvDeps.RoutesPersistHandler)
	mux.HandleFunc("/v1/routes", srvDeps.RoutesIndexHandler)
	mux.HandleFunc("/v1/routes/", srvDeps.RouteByIDHandler) // includes /events/stream

	// Resources
	mux.HandleFunc("/v1/vehicles", srvDeps.VehiclesHandler)
	mux.HandleFunc("/v1/carriers", srvDeps.CarriersHandler)
	mux.HandleFunc("/v1/zones", srvDeps.ZonesHandler)

	// Events
	mux.HandleFunc("/v1/events", srvDeps.AuditEventsHandler)
	mux.HandleFunc("/v1/events/stream", srvDeps.EventsStreamHandler)
	mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

	// Admin
	mux.HandleFunc("/v1/admin/plan-stats", srvDeps.PlanStatsHandler)

	// Health, metrics, docs
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)
	mux.HandleFunc("/debug/info", srvDeps.DebugJSON)

	handler := api.AccessLog(log, api.RateLimit(cfg.Server.RateRPS, cfg.Server.RateBurst, mux))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("API listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
