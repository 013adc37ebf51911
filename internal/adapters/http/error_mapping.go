package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// Client went away; 499 in nginx's vocabulary.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream provider detail out of responses.
func publicErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusUnauthorized:
		return "authentication failed"
	case http.StatusTooManyRequests:
		return "too many requests, try again shortly"
	case http.StatusRequestEntityTooLarge:
		return "question too long"
	case http.StatusGatewayTimeout:
		return "the assistant took too long, try again"
	case http.StatusServiceUnavailable:
		return "the assistant is temporarily unavailable"
	default:
		return "internal error"
	}
}
