package store

import (
	"errors"
	"testing"
	"time"
)

func TestRetryerSucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	r := Retryer{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(d time.Duration) { delays = append(delays, d) },
	}

	calls := 0
	err := r.Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected exactly 2 delays, got %d", len(delays))
	}
	if delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("expected linearly increasing delays, got %v", delays)
	}
}

func TestRetryerPropagatesLastError(t *testing.T) {
	var delays []time.Duration
	r := Retryer{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(d time.Duration) { delays = append(delays, d) },
	}

	calls := 0
	wantErr := errors.New("attempt 3 failed")
	err := r.Do(func() error {
		calls++
		if calls == 3 {
			return wantErr
		}
		return errors.New("earlier failure")
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error propagated, got: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	// No delay after the final attempt.
	if len(delays) != 2 {
		t.Fatalf("expected 2 delays, got %d", len(delays))
	}
}

func TestRetryerFirstAttemptSuccessSkipsDelays(t *testing.T) {
	r := Retryer{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep: func(time.Duration) {
			t.Fatalf("no delay expected on immediate success")
		},
	}
	if err := r.Do(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryerZeroValueUsesDefaults(t *testing.T) {
	r := Retryer{Sleep: func(time.Duration) {}}
	calls := 0
	_ = r.Do(func() error {
		calls++
		return errors.New("always failing")
	})
	if calls != defaultMaxAttempts {
		t.Fatalf("expected %d attempts with defaults, got %d", defaultMaxAttempts, calls)
	}
}
