package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil,
		func(ctx context.Context) error {
			calls++
			return NewPermanentError(errors.New("bad request"), "")
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryExhaustsTransientBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil,
		func(ctx context.Context) error {
			calls++
			return NewTransientError(errors.New("connection reset"), "")
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(),
		RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", NewTransientError(errors.New("503"), "")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Fatalf("got result=%q calls=%d", result, calls)
	}
}

func TestRetryOnAttemptHookSeesEveryAttempt(t *testing.T) {
	var attempts []int
	var attemptErrs []error
	config := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnAttempt: func(attempt int, elapsed time.Duration, err error) {
			attempts = append(attempts, attempt)
			attemptErrs = append(attemptErrs, err)
		},
	}

	calls := 0
	err := Retry(context.Background(), config, nil, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return NewTransientError(errors.New("timeout"), "")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected attempt numbers: %v", attempts)
	}
	if attemptErrs[0] == nil || attemptErrs[1] != nil {
		t.Fatalf("unexpected attempt errors: %v", attemptErrs)
	}
}

func TestRetryHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Minute}

	started := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, config, nil, func(ctx context.Context) error {
			return NewTransientError(errors.New("unavailable"), "")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
		if elapsed := time.Since(started); elapsed > 5*time.Second {
			t.Fatalf("retry did not abort backoff promptly: %v", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not return after cancellation")
	}
}

func TestBackoffDelayLinearGrowth(t *testing.T) {
	config := RetryConfig{BaseDelay: 30 * time.Second, Backoff: BackoffLinear}
	for attempt, want := range map[int]time.Duration{
		1: 30 * time.Second,
		2: 60 * time.Second,
		3: 90 * time.Second,
	} {
		if got := backoffDelay(attempt, config); got != want {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffDelayExponentialGrowth(t *testing.T) {
	config := RetryConfig{BaseDelay: time.Second, Backoff: BackoffExponential, MaxDelay: 5 * time.Second}
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, want := range wants {
		if got := backoffDelay(i+1, config); got != want {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, want)
		}
	}
}

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{NewTransientError(errors.New("x"), ""), true},
		{NewPermanentError(errors.New("x"), ""), false},
		{fmt.Errorf("evaluator request failed: HTTP 503: overloaded"), true},
		{fmt.Errorf("evaluator request failed: HTTP 401: bad key"), false},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("guideline text empty"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsPermanentClassification(t *testing.T) {
	if !IsPermanent(fmt.Errorf("rule set not found")) {
		t.Error("expected 'not found' to be permanent")
	}
	if IsPermanent(NewTransientError(errors.New("not found-ish wording"), "")) {
		t.Error("explicit transient marker must win over wording")
	}
}
