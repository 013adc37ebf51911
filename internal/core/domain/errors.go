package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	// Upstream generation failures surfaced to callers, categorized so the
	// caller can decide whether a retry makes sense.
	ErrUnauthorized    = errors.New("upstream authentication failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrTemporary       = errors.New("temporary failure")
	ErrRequestTooLarge = errors.New("request too large")
	ErrTimeout         = errors.New("upstream timeout")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
