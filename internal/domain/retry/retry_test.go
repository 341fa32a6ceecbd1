package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsync/internal/domain/provider"
)

// fastConfig keeps backoff sleeps negligible so tests stay quick.
func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   8 * time.Millisecond,
	}
}

func transientErr() error {
	return &provider.Error{Code: "INSTITUTION_DOWN", Message: "down"}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, transientErr()
		}
		return 42, nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, transientErr()
	}, nil)

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxRetries retries after the initial attempt.
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoPermanentFailsFast(t *testing.T) {
	permanent := errors.New("invalid credential")
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	}, nil)

	if !errors.Is(err, permanent) {
		t.Errorf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a permanent error", calls)
	}
}

func TestDoObserverSeesBackoff(t *testing.T) {
	cfg := Config{
		MaxRetries: 4,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}

	var delays []time.Duration
	var attempts []int
	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, transientErr()
	}, func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		delays = append(delays, delay)
	})

	if err == nil {
		t.Fatal("expected error")
	}

	wantDelays := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond, // capped at MaxDelay
	}
	if len(delays) != len(wantDelays) {
		t.Fatalf("observer called %d times, want %d", len(delays), len(wantDelays))
	}
	for i, want := range wantDelays {
		if delays[i] != want {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want)
		}
		if attempts[i] != i+1 {
			t.Errorf("attempt[%d] = %d, want %d", i, attempts[i], i+1)
		}
	}
}

func TestDoContextCancellation(t *testing.T) {
	cfg := Config{
		MaxRetries: 5,
		BaseDelay:  time.Hour, // the sleep must be interrupted, not waited out
		MaxDelay:   time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Do(ctx, cfg, func(ctx context.Context) (int, error) {
		return 0, transientErr()
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, backoff sleep was not interrupted", elapsed)
	}
}

func TestDoAttemptTimeout(t *testing.T) {
	cfg := Config{
		MaxRetries:     0,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		AttemptTimeout: 10 * time.Millisecond,
	}

	var sawDeadline bool
	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
			sawDeadline = true
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return 0, nil
		}
	}, nil)

	if err == nil {
		t.Fatal("expected error from timed-out attempt")
	}
	if !sawDeadline {
		t.Error("attempt context was never cancelled")
	}
}
