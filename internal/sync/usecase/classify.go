package usecase

import (
	"context"
	"errors"
	"net"
	"strings"

	"mailstream/internal/sync/domain"
	"mailstream/pkg/provider"
)

// parseError wraps provider-side decode failures so they classify as parsing
// rather than unknown.
type parseError struct {
	err error
}

func (e *parseError) Error() string { return "parse: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// NewParseError marks err as a message-decoding failure.
func NewParseError(err error) error {
	return &parseError{err: err}
}

// Classify maps an ingestion error onto the closed category set. Unmatched
// errors land in unknown, which stays retryable.
func Classify(err error) domain.ErrorCategory {
	if err == nil {
		return domain.CategoryUnknown
	}

	switch {
	case errors.Is(err, provider.ErrRateLimited):
		return domain.CategoryRateLimit
	case errors.Is(err, domain.ErrInvalidCandidate):
		return domain.CategoryValidation
	}

	var pe *parseError
	if errors.As(err, &pe) {
		return domain.CategoryParsing
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.CategoryNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, provider.ErrAuthFailed) {
		return domain.CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "no such host"):
		return domain.CategoryNetwork
	case strings.Contains(msg, "parse"), strings.Contains(msg, "malformed"):
		return domain.CategoryParsing
	case strings.Contains(msg, "duplicate"):
		return domain.CategoryDuplicate
	}

	return domain.CategoryUnknown
}
