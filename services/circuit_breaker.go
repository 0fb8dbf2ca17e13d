package services

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// CircuitBreaker trips after a run of consecutive failures so callers fail
// fast during a dependency outage instead of piling up slow in-flight calls.
type CircuitBreaker struct {
	name     string
	limit    int
	cooldown time.Duration

	mu       sync.Mutex
	failures int
	open     bool
	openedAt time.Time
}

// NewCircuitBreaker returns a closed breaker that opens after limit
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(name string, limit int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:     name,
		limit:    limit,
		cooldown: cooldown,
	}
}

// Call runs fn unless the breaker is open. Once the cooldown elapses the next
// call is admitted half-open; its outcome decides whether the breaker closes.
// fn runs outside the breaker's lock, slow calls don't serialize each other.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return nil
	}

	if time.Since(cb.openedAt) <= cb.cooldown {
		return fmt.Errorf("circuit breaker %s is open (retry after %v)",
			cb.name, cb.openedAt.Add(cb.cooldown))
	}

	cb.open = false
	cb.failures = 0
	log.Printf("[CircuitBreaker:%s] Cooldown elapsed, admitting half-open call", cb.name)
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.limit && !cb.open {
		cb.open = true
		cb.openedAt = time.Now()
		log.Printf("🔴 [CircuitBreaker:%s] OPENED after %d consecutive failures (cooldown: %v)",
			cb.name, cb.failures, cb.cooldown)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures > 0 {
		log.Printf("✅ [CircuitBreaker:%s] Closed (recovered after %d failures)", cb.name, cb.failures)
	}
	cb.failures = 0
	cb.open = false
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Reset force-closes the breaker and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
	log.Printf("[CircuitBreaker:%s] Manually reset", cb.name)
}
