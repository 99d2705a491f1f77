package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/types"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/loads"
	"millstock/internal/domain/lots"
	"millstock/internal/domain/reconcile"
	"millstock/internal/infrastructure/cache"
	"millstock/internal/infrastructure/http/v1/dto"
)

// LoadsHandler handles HTTP requests for load planning, commit and
// reconciliation.
type LoadsHandler struct {
	*BaseHandler
	planner *allocation.Planner
	service *loads.Service
	engine  *reconcile.Engine
	cache   *cache.TotalsCache
}

// NewLoadsHandler creates a new loads handler.
func NewLoadsHandler(
	base *BaseHandler,
	planner *allocation.Planner,
	service *loads.Service,
	engine *reconcile.Engine,
	totalsCache *cache.TotalsCache,
) *LoadsHandler {
	return &LoadsHandler{
		BaseHandler: base,
		planner:     planner,
		service:     service,
		engine:      engine,
		cache:       totalsCache,
	}
}

func (h *LoadsHandler) planLines(c *gin.Context, lines []dto.AllocationLineRequest) ([]*allocation.Plan, bool) {
	plans := make([]*allocation.Plan, len(lines))
	for i, line := range lines {
		plan, err := h.planner.Plan(
			c.Request.Context(),
			lots.ProductType(line.ProductType),
			line.Quantity,
			line.TierID,
		)
		if err != nil {
			h.Error(c, err)
			return nil, false
		}
		plans[i] = plan
	}
	return plans, true
}

// Plan handles POST /loads/plan
//
// Pure preview: nothing is claimed, the returned selection can be shown for
// confirmation before committing.
func (h *LoadsHandler) Plan(c *gin.Context) {
	var req dto.PlanRequest
	if !h.BindJSON(c, &req) {
		return
	}

	plans, ok := h.planLines(c, req.Lines)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.FromPlans(plans))
}

// Commit handles POST /loads
//
// The allocation is re-planned from current availability and committed in
// one serializable transaction, so a confirmation preview that went stale
// fails with CONCURRENT_MODIFICATION instead of double-allocating lots.
func (h *LoadsHandler) Commit(c *gin.Context) {
	var req dto.CommitLoadRequest
	if !h.BindJSON(c, &req) {
		return
	}

	plans, ok := h.planLines(c, req.Lines)
	if !ok {
		return
	}

	load, err := h.service.Commit(c.Request.Context(), loads.CommitInput{
		Plans:    plans,
		Assignee: req.Assignee,
		Notes:    req.Notes,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Invalidate(c.Request.Context(), h.GetTenantID(c))

	c.JSON(http.StatusCreated, dto.FromLoad(load))
}

// Get handles GET /loads/:id
func (h *LoadsHandler) Get(c *gin.Context) {
	loadID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	load, err := h.service.GetByID(c.Request.Context(), loadID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLoad(load))
}

// List handles GET /loads
func (h *LoadsHandler) List(c *gin.Context) {
	var query dto.LoadListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	query.Defaults()

	result, err := h.service.List(c.Request.Context(), loads.ListFilter{
		ListFilter: query.ToDomain(),
		Assignee:   query.Assignee,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      dto.FromLoadList(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Reconcile handles POST /loads/:id/reconcile
func (h *LoadsHandler) Reconcile(c *gin.Context) {
	loadID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	remaining := make(map[lots.ProductType]types.Weight, len(req.Remaining))
	for productType, weight := range req.Remaining {
		remaining[lots.ProductType(productType)] = weight
	}

	report, err := h.engine.Reconcile(c.Request.Context(), reconcile.Input{
		LoadID:    loadID,
		Remaining: remaining,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Invalidate(c.Request.Context(), h.GetTenantID(c))

	c.JSON(http.StatusOK, dto.FromLoadReport(report))
}

// RegisterRoutes registers load routes.
func (h *LoadsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/plan", h.Plan)
	rg.POST("", h.Commit)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/reconcile", h.Reconcile)
}
