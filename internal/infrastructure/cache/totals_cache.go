// Package cache provides Redis-backed read caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"millstock/internal/domain/ledger"
	"millstock/pkg/logger"
)

// TotalsCache caches stock totals per tenant. Totals change only on intake,
// commit and reconcile, so a short TTL plus explicit invalidation after
// every write keeps the dashboard read path off the database.
//
// The cache is best-effort: every miss or Redis failure falls through to
// the ledger repository.
type TotalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTotalsCache creates a totals cache.
func NewTotalsCache(client *redis.Client, ttl time.Duration) *TotalsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TotalsCache{client: client, ttl: ttl}
}

func (c *TotalsCache) key(tenantID string) string {
	return fmt.Sprintf("millstock:%s:stock_totals", tenantID)
}

// Get returns cached totals, or ok=false on miss or error.
func (c *TotalsCache) Get(ctx context.Context, tenantID string) ([]*ledger.StockTotals, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx, "totals cache read failed", "error", err)
		}
		return nil, false
	}

	var totals []*ledger.StockTotals
	if err := json.Unmarshal(data, &totals); err != nil {
		logger.Warn(ctx, "totals cache decode failed", "error", err)
		return nil, false
	}

	return totals, true
}

// Set stores totals for a tenant.
func (c *TotalsCache) Set(ctx context.Context, tenantID string, totals []*ledger.StockTotals) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(totals)
	if err != nil {
		logger.Warn(ctx, "totals cache encode failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, c.key(tenantID), data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "totals cache write failed", "error", err)
	}
}

// Invalidate drops the tenant's cached totals. Called after any operation
// that moves stock.
func (c *TotalsCache) Invalidate(ctx context.Context, tenantID string) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Del(ctx, c.key(tenantID)).Err(); err != nil {
		logger.Warn(ctx, "totals cache invalidation failed", "error", err)
	}
}
