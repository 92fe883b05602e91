package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/calhub/internal/model"
)

func fastPolicy(attempts uint64) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRetryPolicy_TransientRetriedUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(4).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Classify(model.SourceCloud, OpList, 503, errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_TerminalFailsImmediately(t *testing.T) {
	calls := 0
	terminal := Classify(model.SourceCloud, OpUpdate, 403, errors.New("forbidden"))
	err := fastPolicy(4).Do(context.Background(), func() error {
		calls++
		return terminal
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("got %v, want the terminal error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on terminal failures)", calls)
	}
}

func TestRetryPolicy_NotFoundNotRetried(t *testing.T) {
	calls := 0
	_ = fastPolicy(4).Do(context.Background(), func() error {
		calls++
		return Classify(model.SourceCloud, OpGet, 404, errors.New("gone"))
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_AttemptBudgetExhausted(t *testing.T) {
	calls := 0
	transient := Classify(model.SourceCloud, OpList, 500, errors.New("flaky"))
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("got %v, want the transient error after exhaustion", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_OnRetryInvokedPerRetry(t *testing.T) {
	retries := 0
	p := fastPolicy(3)
	p.OnRetry = func(error, time.Duration) { retries++ }
	_ = p.Do(context.Background(), func() error {
		return Classify(model.SourceCloud, OpList, 500, errors.New("flaky"))
	})
	if retries != 2 {
		t.Errorf("OnRetry called %d times, want 2 (retries, not attempts)", retries)
	}
}

func TestRetryPolicy_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy(10).Do(ctx, func() error {
		return Classify(model.SourceCloud, OpList, 500, errors.New("flaky"))
	})
	if err == nil {
		t.Fatal("expected error under cancelled context")
	}
}
