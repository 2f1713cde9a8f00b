package api

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"fleetplan/internal/alloc"
	"fleetplan/internal/auth"
	"fleetplan/internal/config"
	"fleetplan/internal/routing"
	"fleetplan/internal/store"
	"fleetplan/internal/zones"
)

type Server struct {
	Store  store.Store
	Auth   *auth.Verifier
	Broker EventBroker
	Alloc  *alloc.Engine
	Opt    *routing.Optimizer
	Zones  *zones.Resolver
	Cfg    config.Config
	Log    *zap.Logger
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Warn("migrations failed", zap.Error(err))
			}
		}
		s = sp
	}
	// Broker selection
	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			log.Warn("redis broker unavailable, using in-memory broker", zap.Error(err))
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	est := routing.NewStaticTable(cfg.Distances)
	return &Server{
		Store:  s,
		Auth:   auth.NewVerifierFromEnv(),
		Broker: broker,
		Alloc:  alloc.NewEngine(s, cfg.Allocation, log),
		Opt:    routing.NewOptimizer(s, est, cfg.Routing, log),
		Zones:  zones.NewResolver(s, cfg.Routing.DefaultZoneLeadDays, log),
		Cfg:    cfg,
		Log:    log,
	}, nil
}
