package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/domain/intake"
	"millstock/internal/domain/lots"
	"millstock/internal/infrastructure/cache"
	"millstock/internal/infrastructure/http/v1/dto"
)

// LotsHandler handles HTTP requests for stock lots and intake.
type LotsHandler struct {
	*BaseHandler
	service *lots.Service
	intake  *intake.Service
	cache   *cache.TotalsCache
}

// NewLotsHandler creates a new lots handler.
func NewLotsHandler(base *BaseHandler, service *lots.Service, intakeSvc *intake.Service, totalsCache *cache.TotalsCache) *LotsHandler {
	return &LotsHandler{
		BaseHandler: base,
		service:     service,
		intake:      intakeSvc,
		cache:       totalsCache,
	}
}

// List handles GET /lots
func (h *LotsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.LotListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	query.Defaults()

	filter := lots.ListFilter{
		ListFilter: query.ToDomain(),
	}
	if query.ProductType != "" {
		productType, err := lots.ParseProductType(query.ProductType)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.ProductType = &productType
	}
	if query.Status != "" {
		status := lots.Status(query.Status)
		if !status.Valid() {
			h.Error(c, apperror.NewValidation("unknown lot status").WithDetail("status", query.Status))
			return
		}
		filter.Status = &status
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      dto.FromLots(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// ListTiers handles GET /lots/tiers
func (h *LotsHandler) ListTiers(c *gin.Context) {
	ctx := c.Request.Context()

	productType, err := lots.ParseProductType(c.Query("productType"))
	if err != nil {
		h.Error(c, err)
		return
	}

	tiers, err := h.service.ListTiers(ctx, productType)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.TierResponse, len(tiers))
	for i, t := range tiers {
		items[i] = dto.FromTier(t)
	}
	c.JSON(http.StatusOK, gin.H{"tiers": items})
}

// Intake handles POST /lots/intake
func (h *LotsHandler) Intake(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IntakeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	bags := make([]intake.BagInput, len(req.Bags))
	for i, bag := range req.Bags {
		bags[i] = intake.BagInput{
			ProductType: lots.ProductType(bag.ProductType),
			Weight:      bag.Weight,
			Price:       bag.Price,
		}
	}

	created, err := h.intake.Intake(ctx, bags)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Invalidate(ctx, h.GetTenantID(c))

	c.JSON(http.StatusCreated, dto.IntakeResponse{Lots: dto.FromLots(created)})
}

// RegisterRoutes registers lot routes.
func (h *LotsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/tiers", h.ListTiers)
	rg.POST("/intake", h.Intake)
}
