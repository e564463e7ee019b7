package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/atlas/reconciler/internal/errors"
)

// ListQuery holds the paging parameter shared by list endpoints.
type ListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// bindQuery binds query parameters into req and writes the error response
// when binding fails. It reports whether the handler should continue.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err, "Invalid query parameters")
		return false
	}
	return true
}

// bindJSON binds the request body into req, writing the error response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err, "Invalid request body")
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, map[string]interface{}{
		"reason": err.Error(),
	})
}
