package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "shopexport/pkg/errors"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, fastConfig(3))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.FromStatusCode(503, "unavailable")
		}
		return nil
	}, fastConfig(5))

	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnAuthError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.FromStatusCode(401, "unauthorized")
	}, fastConfig(5))

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Auth errors must not retry, got %d calls", calls)
	}

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != errs.KindAuth {
		t.Errorf("Expected auth error to pass through unchanged, got %v", err)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.FromStatusCode(500, "boom")
	}, fastConfig(3))

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}

	// The last underlying error stays reachable
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 500 {
		t.Errorf("Expected wrapped 500 error, got %v", err)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errs.FromStatusCode(429, "slow down")
		}
		return 42, nil
	}, fastConfig(3))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got %d", result)
	}
}

func TestDoWithNilContextRetries(t *testing.T) {
	// Callers commonly fill only the fields they care about; a missing
	// Context must fall back to context.Background, not panic in Wait.
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	calls := 0
	err := Do(func() error {
		calls++
		if calls < 2 {
			return errs.FromStatusCode(503, "unavailable")
		}
		return nil
	}, cfg)

	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if cfg.Context != nil {
		t.Error("Do must not mutate the caller's config")
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig(3)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(func() error {
		return errs.FromStatusCode(500, "boom")
	}, cfg)

	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	if DefaultRetryIf(nil) {
		t.Error("nil error must not retry")
	}
	if !DefaultRetryIf(errs.FromStatusCode(503, "x")) {
		t.Error("transient errors must retry")
	}
	if DefaultRetryIf(errs.FromStatusCode(404, "x")) {
		t.Error("not-found errors must not retry")
	}
	if DefaultRetryIf(context.Canceled) {
		t.Error("context errors must not retry")
	}
	if !DefaultRetryIf(errors.New("some unknown failure")) {
		t.Error("unknown errors default to retrying")
	}
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	Do(func() error {
		calls++
		if calls < 3 {
			return errs.FromStatusCode(500, "boom")
		}
		return nil
	}, cfg)

	if len(attempts) != 2 {
		t.Errorf("Expected 2 retry callbacks, got %d", len(attempts))
	}
}
