package usecase

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"mailstream/internal/sync/domain"
	"mailstream/pkg/provider"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorCategory
	}{
		{"rate limit sentinel", provider.ErrRateLimited, domain.CategoryRateLimit},
		{"wrapped rate limit", fmt.Errorf("listing: %w", provider.ErrRateLimited), domain.CategoryRateLimit},
		{"validation sentinel", fmt.Errorf("%w: no sender", domain.ErrInvalidCandidate), domain.CategoryValidation},
		{"parse wrapper", NewParseError(errors.New("bad header")), domain.CategoryParsing},
		{"net error", &net.OpError{Op: "dial", Err: timeoutError{}}, domain.CategoryNetwork},
		{"connection refused text", errors.New("dial tcp: connection refused"), domain.CategoryNetwork},
		{"malformed text", errors.New("malformed envelope"), domain.CategoryParsing},
		{"duplicate text", errors.New("duplicate key value"), domain.CategoryDuplicate},
		{"unknown", errors.New("something odd"), domain.CategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCategoryRetryPolicy(t *testing.T) {
	if domain.CategoryValidation.Retryable() || domain.CategoryDuplicate.Retryable() {
		t.Fatalf("validation and duplicate failures must not retry")
	}
	if !domain.CategoryNetwork.Retryable() || !domain.CategoryRateLimit.Retryable() {
		t.Fatalf("network and rate-limit failures must retry")
	}
	if domain.CategoryRateLimit.RetryDelay() <= domain.CategoryNetwork.RetryDelay() {
		t.Fatalf("rate limits must back off longer than network faults")
	}
	if domain.CategoryNetwork.RetryDelay() != 5*time.Minute {
		t.Fatalf("expected a 5 minute base delay, got %s", domain.CategoryNetwork.RetryDelay())
	}
}
