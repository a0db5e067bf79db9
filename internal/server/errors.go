package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the error body for /api routes.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: message}
}

func (e *APIError) withDetails(details any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	errInvalidRequest     = newAPIError(http.StatusBadRequest, "INVALID_REQUEST", "invalid request")
	errInvalidParameter   = newAPIError(http.StatusBadRequest, "INVALID_PARAMETER", "invalid parameter value")
	errRateLimited        = newAPIError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "rate limit exceeded")
	errPredictionFailed   = newAPIError(http.StatusInternalServerError, "PREDICTION_FAILED", "prediction failed")
	errModelNotLoaded     = newAPIError(http.StatusServiceUnavailable, "MODEL_NOT_LOADED", "model not loaded")
	errDatabaseDisabled   = newAPIError(http.StatusServiceUnavailable, "DB_DISABLED", "prediction history requires ENABLE_DB=true")
	errServiceUnavailable = newAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable")
	errInternal           = newAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
)

func abortWithError(c *gin.Context, err *APIError) {
	c.AbortWithStatusJSON(err.StatusCode, err)
}
