package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/atlas/reconciler/internal/errors"
	"github.com/stwalsh4118/atlas/reconciler/internal/models"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// PortfolioHandler serves the derived owner portfolios.
type PortfolioHandler struct {
	service services.PortfolioAggregator
}

// NewPortfolioHandler creates a new PortfolioHandler instance.
func NewPortfolioHandler(service services.PortfolioAggregator) *PortfolioHandler {
	return &PortfolioHandler{
		service: service,
	}
}

// PortfolioListResponse wraps a page of portfolios.
type PortfolioListResponse struct {
	Portfolios []models.OwnerPortfolio `json:"portfolios"`
	Count      int                     `json:"count"`
}

// List handles GET /api/v1/portfolios.
func (h *PortfolioHandler) List(c *gin.Context) {
	var q ListQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = services.DefaultListLimit
	}

	portfolios, err := h.service.ListPortfolios(c.Request.Context(), q.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list portfolios", err)
		return
	}

	c.JSON(http.StatusOK, PortfolioListResponse{Portfolios: portfolios, Count: len(portfolios)})
}

// Get handles GET /api/v1/portfolios/:owner.
func (h *PortfolioHandler) Get(c *gin.Context) {
	portfolio, err := h.service.GetPortfolio(c.Request.Context(), c.Param("owner"))
	if err != nil {
		if errors.Is(err, services.ErrPortfolioNotFound) {
			apierrors.NotFound(c, "Portfolio not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to query portfolio", err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}
