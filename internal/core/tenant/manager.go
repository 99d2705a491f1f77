package tenant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"millstock/pkg/logger"
)

// ManagerConfig configures the tenant pool manager.
type ManagerConfig struct {
	// DBUser and DBPassword are used for all tenant database connections.
	DBUser     string
	DBPassword string

	// MaxTotalPools limits the number of simultaneously open tenant pools.
	MaxTotalPools int

	// MaxConnsPerTenant limits connections per tenant pool.
	MaxConnsPerTenant int32

	// PoolIdleTimeout evicts pools not used for this duration.
	PoolIdleTimeout time.Duration

	// EvictionInterval controls how often the idle sweep runs.
	EvictionInterval time.Duration
}

// DefaultManagerConfig returns production-safe defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxTotalPools:     100,
		MaxConnsPerTenant: 10,
		PoolIdleTimeout:   30 * time.Minute,
		EvictionInterval:  5 * time.Minute,
	}
}

// ManagedPool wraps a tenant's pgx pool with usage tracking.
type ManagedPool struct {
	pool   *pgxpool.Pool
	tenant *Tenant

	// activeRefs counts in-flight requests using this pool.
	// A pool with active refs is never evicted.
	activeRefs int64
	lastUsed   atomic.Int64 // unix nanos
}

// Pool returns the underlying pgx pool.
func (p *ManagedPool) Pool() *pgxpool.Pool { return p.pool }

// Tenant returns the tenant this pool belongs to.
func (p *ManagedPool) Tenant() *Tenant { return p.tenant }

// AcquireRef marks the pool as in use by a request.
func (p *ManagedPool) AcquireRef() {
	atomic.AddInt64(&p.activeRefs, 1)
	p.lastUsed.Store(time.Now().UnixNano())
}

// ReleaseRef releases a request's hold on the pool.
func (p *ManagedPool) ReleaseRef() {
	atomic.AddInt64(&p.activeRefs, -1)
	p.lastUsed.Store(time.Now().UnixNano())
}

func (p *ManagedPool) idleSince() time.Time {
	return time.Unix(0, p.lastUsed.Load())
}

// Manager lazily opens and caches one connection pool per tenant database.
// Pools are evicted after PoolIdleTimeout of inactivity.
type Manager struct {
	cfg      ManagerConfig
	registry Registry
	log      *logger.Logger

	mu    sync.RWMutex
	pools map[string]*ManagedPool

	stopEviction chan struct{}
	stopOnce     sync.Once
}

// NewManager creates a tenant pool manager and starts the idle eviction loop.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	m := &Manager{
		cfg:          cfg,
		registry:     registry,
		log:          log.WithComponent("tenant_manager"),
		pools:        make(map[string]*ManagedPool),
		stopEviction: make(chan struct{}),
	}
	go m.evictionLoop()
	return m
}

// GetPool returns the pool for a tenant, opening it on first use.
// Returns ErrTenantNotFound / ErrTenantNotActive / ErrMaxPoolLimit.
func (m *Manager) GetPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	m.mu.RLock()
	if p, ok := m.pools[tenantID]; ok {
		m.mu.RUnlock()
		p.lastUsed.Store(time.Now().UnixNano())
		return p, nil
	}
	m.mu.RUnlock()

	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantNotActive
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under write lock: another request may have opened it.
	if p, ok := m.pools[tenantID]; ok {
		p.lastUsed.Store(time.Now().UnixNano())
		return p, nil
	}

	if len(m.pools) >= m.cfg.MaxTotalPools {
		if !m.evictOneIdleLocked() {
			return nil, ErrMaxPoolLimit
		}
	}

	pool, err := m.openPool(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %s: %w", tenantID, err)
	}

	managed := &ManagedPool{pool: pool, tenant: t}
	managed.lastUsed.Store(time.Now().UnixNano())
	m.pools[tenantID] = managed

	m.log.Infow("tenant pool opened", "tenant_id", tenantID, "db", t.DBName, "open_pools", len(m.pools))
	return managed, nil
}

func (m *Manager) openPool(ctx context.Context, t *Tenant) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(t.DSN(m.cfg.DBUser, m.cfg.DBPassword))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = m.cfg.MaxConnsPerTenant

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant database: %w", err)
	}
	return pool, nil
}

// PrewarmPools opens pools for all active tenants up front.
func (m *Manager) PrewarmPools(ctx context.Context) error {
	tenants, err := m.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	var firstErr error
	for _, t := range tenants {
		if _, err := m.GetPool(ctx, t.ID); err != nil {
			m.log.Warnw("prewarm failed", "tenant_id", t.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// evictOneIdleLocked closes the least recently used pool with no active refs.
// Caller must hold m.mu. Returns false if every pool is busy.
func (m *Manager) evictOneIdleLocked() bool {
	var victimID string
	var victim *ManagedPool
	for tid, p := range m.pools {
		if atomic.LoadInt64(&p.activeRefs) > 0 {
			continue
		}
		if victim == nil || p.idleSince().Before(victim.idleSince()) {
			victimID, victim = tid, p
		}
	}
	if victim == nil {
		return false
	}
	delete(m.pools, victimID)
	victim.pool.Close()
	m.log.Infow("tenant pool evicted (capacity)", "tenant_id", victimID)
	return true
}

func (m *Manager) evictionLoop() {
	interval := m.cfg.EvictionInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopEviction:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.cfg.PoolIdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for tid, p := range m.pools {
		if atomic.LoadInt64(&p.activeRefs) > 0 {
			continue
		}
		if p.idleSince().After(cutoff) {
			continue
		}
		delete(m.pools, tid)
		p.pool.Close()
		m.log.Infow("tenant pool evicted (idle)", "tenant_id", tid)
	}
}

// Stats reports open pool counts for health endpoints.
type Stats struct {
	OpenPools int `json:"openPools"`
	MaxPools  int `json:"maxPools"`
}

// Stats returns current manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{OpenPools: len(m.pools), MaxPools: m.cfg.MaxTotalPools}
}

// Close stops eviction and closes all pools.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopEviction) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for tid, p := range m.pools {
		p.pool.Close()
		delete(m.pools, tid)
	}
}
