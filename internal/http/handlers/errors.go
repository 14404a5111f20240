// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package) and to the `error` object carried inside
// statistics payloads. These codes provide clients with a stable, machine-readable
// error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unavailable) mirror common HTTP status
//     semantics to aid interoperability.
//   - Upstream codes (transport_error, malformed_response) describe why the
//     statistics backend could not be read. A cached entry that failed to refresh
//     is still a 200 response; the code travels in the body next to stale data.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "bad_request",
//     "message": "period must be one of day, week, month"
//   }

package handlers

import (
	"context"
	"errors"

	"github.com/tbourn/go-bot-dashboard/internal/query"
	"github.com/tbourn/go-bot-dashboard/internal/statsclient"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeGatewayTimeout   = "gateway_timeout"

	// Upstream statistics backend:
	ErrCodeTransport         = "transport_error"
	ErrCodeMalformedResponse = "malformed_response"
)

// errorCode classifies err into one of the codes above.
func errorCode(err error) string {
	switch {
	case errors.Is(err, statsclient.ErrTransport):
		return ErrCodeTransport
	case errors.Is(err, statsclient.ErrMalformedResponse):
		return ErrCodeMalformedResponse
	case errors.Is(err, query.ErrClosed):
		return ErrCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeGatewayTimeout
	default:
		return ErrCodeInternal
	}
}
