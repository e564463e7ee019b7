package errors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/atlas/reconciler/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrDatabaseConnection = "DATABASE_CONNECTION_ERROR"
	ErrConflict           = "CONFLICT"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	warn(c, "Resource not found", message, nil)
	respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	warn(c, "Bad request", message, details)
	respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// Conflict returns a 409 Conflict error response, used when a batch is
// requested while another one is still running.
func Conflict(c *gin.Context, message string) {
	warn(c, "Request conflicts with current state", message, nil)
	respond(c, http.StatusConflict, ErrConflict, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// The error is logged with request context; the client only sees message.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Internal server error", err, map[string]interface{}{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
		})
	}
	if err != nil {
		_ = c.Error(err)
	}
	respond(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ServiceUnavailable returns a 503 response for a failed dependency such as the database.
func ServiceUnavailable(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Dependency unavailable", err, map[string]interface{}{
			"message":    message,
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
		})
	}
	respond(c, http.StatusServiceUnavailable, ErrDatabaseConnection, message, nil)
}

func respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

func warn(c *gin.Context, msg, message string, details map[string]interface{}) {
	log := middleware.GetLogger(c)
	if log == nil {
		return
	}
	fields := map[string]interface{}{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
		"path":       c.Request.URL.Path,
	}
	if details != nil {
		fields["details"] = details
	}
	log.Warn(msg, fields)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
// Field names are reported the way the client sent them (the json tag).
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, err := range validationErrors {
		details[fieldName(err)] = formatValidationError(err)
	}

	warn(c, "Validation error", "validation failed", details)
	respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// fieldName lower-cases the first letter of the struct field, which matches
// the camelCase json tags on request types.
func fieldName(err validator.FieldError) string {
	name := err.Field()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "len":
		return "Must have length of " + err.Param()
	case "gt":
		return "Must be greater than " + err.Param()
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lt":
		return "Must be less than " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "uuid":
		return "Must be a valid UUID"
	case "required_without":
		return "Required when " + err.Param() + " is not set"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
