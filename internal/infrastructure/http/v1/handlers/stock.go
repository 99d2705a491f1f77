package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/internal/infrastructure/cache"
	"millstock/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for aggregate stock totals.
type StockHandler struct {
	*BaseHandler
	ledger *ledger.Service
	cache  *cache.TotalsCache
}

// NewStockHandler creates a new stock totals handler.
func NewStockHandler(base *BaseHandler, ledgerSvc *ledger.Service, totalsCache *cache.TotalsCache) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledger:      ledgerSvc,
		cache:       totalsCache,
	}
}

// GetTotals handles GET /stock/totals
//
// Totals are served from the per-tenant cache when fresh; every mutation
// endpoint invalidates it, so a miss falls through to the ledger.
func (h *StockHandler) GetTotals(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := h.GetTenantID(c)

	if totals, ok := h.cache.Get(ctx, tenantID); ok {
		c.JSON(http.StatusOK, dto.FromStockTotalsList(totals, true))
		return
	}

	totals, err := h.ledger.ListAll(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Set(ctx, tenantID, totals)

	c.JSON(http.StatusOK, dto.FromStockTotalsList(totals, false))
}

// GetProductTotals handles GET /stock/totals/:productType
func (h *StockHandler) GetProductTotals(c *gin.Context) {
	ctx := c.Request.Context()

	productType, err := lots.ParseProductType(c.Param("productType"))
	if err != nil {
		h.Error(c, err)
		return
	}

	totals, err := h.ledger.Get(ctx, productType)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStockTotals(totals))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/totals", h.GetTotals)
	rg.GET("/totals/:productType", h.GetProductTotals)
}
