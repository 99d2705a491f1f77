package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/domain/reports"
	"millstock/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for load reports.
// Reports are read-only over HTTP; only the reconciliation engine writes them.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Get handles GET /reports/:id
func (h *ReportsHandler) Get(c *gin.Context) {
	reportID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	report, err := h.service.GetByID(c.Request.Context(), reportID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLoadReport(report))
}

// List handles GET /reports
func (h *ReportsHandler) List(c *gin.Context) {
	var query dto.ReportListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	query.Defaults()

	result, err := h.service.List(c.Request.Context(), reports.ListFilter{
		ListFilter: query.ToDomain(),
		Assignee:   query.Assignee,
		From:       query.From,
		To:         query.To,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      dto.FromLoadReportList(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers report routes.
func (h *ReportsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}
