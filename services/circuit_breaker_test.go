package services

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Hour)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected the wrapped call's error, got %v", err)
		}
	}
	if !cb.IsOpen() {
		t.Fatal("breaker must open after max failures")
	}

	// Open breaker fails fast without running the call
	ran := false
	err := cb.Call(func() error { ran = true; return nil })
	if err == nil || !strings.Contains(err.Error(), "open") {
		t.Errorf("expected an open-circuit error, got %v", err)
	}
	if ran {
		t.Error("an open breaker must not run the call")
	}
}

func TestCircuitBreakerRecoversAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	cb.Call(func() error { return errors.New("boom") })
	if !cb.IsOpen() {
		t.Fatal("breaker must open")
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("half-open call must run after cooldown, got %v", err)
	}
	if cb.IsOpen() {
		t.Error("a successful half-open call must close the breaker")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Hour)

	cb.Call(func() error { return errors.New("boom") })
	cb.Call(func() error { return nil })
	cb.Call(func() error { return errors.New("boom") })

	if cb.IsOpen() {
		t.Error("intermittent failures below the threshold must not open the breaker")
	}
}
