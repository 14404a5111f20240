// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers shared by every endpoint. Failures are
// written as an ErrorResponse with a stable code; a statistics entry whose
// last fetch failed is not a failure of the request and is reported through
// ErrorBody inside a 200 payload instead.
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "bad_request",
//	  "message": "period must be one of day, week, month"
//	}
//
//	HTTP/1.1 200 OK
//	{ "period": "week", "data": {...}, "is_loading": false,
//	  "error": { "code": "transport_error", "message": "..." } }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-dashboard/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"bad_request"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"period must be one of day, week, month"`
}

// ErrorBody is the error object embedded in 200 payloads when a cache entry
// holds a fetch failure. It is null when the last fetch succeeded.
type ErrorBody struct {
	Code    string `json:"code" example:"transport_error"`
	Message string `json:"message" example:"fetch_statistics: status 503"`
}

// errorBody converts err into an ErrorBody, or nil for a nil error.
func errorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	return &ErrorBody{Code: errorCode(err), Message: err.Error()}
}

// fail aborts the request with an ErrorResponse. Gateway failures (502, 504)
// are the backend's fault and logged at warn; other 5xx are logged at error.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if status == http.StatusBadGateway || status == http.StatusGatewayTimeout {
			ev = lg.Warn()
		}
		ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
