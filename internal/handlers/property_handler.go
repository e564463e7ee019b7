package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/atlas/reconciler/internal/errors"
	"github.com/stwalsh4118/atlas/reconciler/internal/services"
)

// PropertyHandler serves account lookups.
type PropertyHandler struct {
	service services.PropertyService
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(service services.PropertyService) *PropertyHandler {
	return &PropertyHandler{
		service: service,
	}
}

// Get handles GET /api/v1/properties/:account.
func (h *PropertyHandler) Get(c *gin.Context) {
	p, err := h.service.GetProperty(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// History handles GET /api/v1/properties/:account/history.
func (h *PropertyHandler) History(c *gin.Context) {
	events, err := h.service.GetHistory(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChangesResponse{Changes: events, Count: len(events)})
}

func (h *PropertyHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrPropertyNotFound) {
		apierrors.NotFound(c, "Property not found")
		return
	}
	apierrors.InternalServerError(c, "Failed to query property", err)
}
