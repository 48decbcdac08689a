package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/catalog"
	"github.com/gatehouse/gatehouse/pkg/config"
	"github.com/gatehouse/gatehouse/pkg/database"
	"github.com/gatehouse/gatehouse/pkg/httputil"
	"github.com/gatehouse/gatehouse/pkg/observability"
	"github.com/gatehouse/gatehouse/pkg/rbac"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting gatehouse")

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	conns, err := database.NewConnectionManager(database.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: database.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}

	backend, err := newCacheBackend(cfg.Cache)
	if err != nil {
		logger.WithError(err).Error("failed to initialize cache backend")
		os.Exit(1)
	}
	logger.WithField("backend", cfg.Cache.Backend).Info("permission cache initialized")

	manager := rbac.NewManager(conns, backend, cfg.Cache.TTL, logger, metrics, headerPrincipal)

	ctx := context.Background()
	if err := manager.Bootstrap(ctx, logger); err != nil {
		logger.WithError(err).Error("bootstrap failed")
		os.Exit(1)
	}

	// API server
	router := mux.NewRouter()
	manager.RegisterRoutes(router)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
	)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server on its own port for probes and scrapes.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(conns.Primary(), backend))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	janitor := startJanitor(cfg.Maintenance, manager.Store(), logger, metrics)

	poolStatsDone := make(chan struct{})
	if metrics != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBStats(conns.Primary().Stats())
				case <-poolStatsDone:
					return
				}
			}
		}()
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterServer("api", apiServer)
	shutdown.RegisterServer("health", healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		close(poolStatsDone)
		if janitor != nil {
			<-janitor.Stop().Done()
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return backend.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return conns.Close()
	})

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("gatehouse stopped")
}

// newCacheBackend builds the configured cache store.
func newCacheBackend(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisStore(cache.RedisOptions{
			URL:        cfg.RedisURL,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			PoolSize:   cfg.RedisPoolSize,
			MaxRetries: cfg.RedisMaxRetries,
		})
	case "memory":
		return cache.NewMemoryStore(cfg.MemoryMaxEntries, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// headerPrincipal trusts the X-User-ID header set by the authenticating
// gateway in front of this service.
func headerPrincipal(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// startJanitor schedules the orphaned-grant sweep. Grants whose permission
// left the catalog are inert at read time; the sweep just keeps the table
// tidy.
func startJanitor(cfg config.MaintenanceConfig, store *rbac.Store, logger *observability.Logger, metrics *observability.Metrics) *cron.Cron {
	if cfg.PruneSchedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.PruneSchedule, func() {
		defer observability.RecoverPanic(logger, "grant janitor")

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		pruned, err := store.PruneUnknownGrants(ctx, catalog.All())
		if err != nil {
			logger.WithError(err).Error("grant pruning failed")
			return
		}
		if pruned > 0 {
			logger.WithField("pruned", pruned).Info("removed grants for permissions no longer in the catalog")
		}
		metrics.RecordGrantsPruned(pruned)
	})
	if err != nil {
		logger.WithError(err).WithField("schedule", cfg.PruneSchedule).Error("invalid prune schedule, janitor disabled")
		return nil
	}

	c.Start()
	logger.WithField("schedule", cfg.PruneSchedule).Info("grant janitor scheduled")
	return c
}
