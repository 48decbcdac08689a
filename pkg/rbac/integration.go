package rbac

import (
	"context"
	"time"

	"github.com/gorilla/mux"

	"github.com/gatehouse/gatehouse/pkg/cache"
	"github.com/gatehouse/gatehouse/pkg/database"
	"github.com/gatehouse/gatehouse/pkg/observability"
)

// Manager wires the RBAC components together over a connection manager and a
// cache backend. Mutations and permission computations use the primary;
// plain group reads go to a replica when one is configured.
type Manager struct {
	store      *Store
	readStore  *Store
	cache      *PermissionCache
	checker    *Checker
	service    *Service
	handlers   *Handlers
	middleware *PermissionMiddleware
}

// NewManager assembles the RBAC stack.
func NewManager(conns *database.ConnectionManager, backend cache.Store, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics, resolver PrincipalResolver, opts ...ServiceOption) *Manager {
	store := NewStore(conns.Primary())
	readStore := NewStore(conns.Replica())
	permCache := NewPermissionCache(backend, ttl, logger, metrics)
	checker := NewChecker(store, permCache, logger, metrics)
	service := NewService(conns.Primary(), store, permCache, logger, metrics, opts...)

	return &Manager{
		store:      store,
		readStore:  readStore,
		cache:      permCache,
		checker:    checker,
		service:    service,
		handlers:   NewHandlers(service, checker, readStore, logger),
		middleware: NewPermissionMiddleware(checker, resolver),
	}
}

// Bootstrap applies migrations and creates the built-in groups.
func (m *Manager) Bootstrap(ctx context.Context, logger *observability.Logger) error {
	if err := RunMigrations(ctx, m.store.DB(), logger); err != nil {
		return err
	}
	return EnsureDefaultGroups(ctx, m.store, logger)
}

// RegisterRoutes mounts the RBAC HTTP API on the router.
func (m *Manager) RegisterRoutes(router *mux.Router) {
	m.handlers.RegisterRoutes(router)
}

// Store returns the primary-backed store.
func (m *Manager) Store() *Store {
	return m.store
}

// Checker returns the permission checker.
func (m *Manager) Checker() *Checker {
	return m.checker
}

// Service returns the group administration service.
func (m *Manager) Service() *Service {
	return m.service
}

// Middleware returns the route-guarding middleware.
func (m *Manager) Middleware() *PermissionMiddleware {
	return m.middleware
}
