// Package emergence implements the variant rollout engine: proposal,
// testing, canary ramping, circuit breaking, automatic rollback,
// trend/anomaly analysis, A/B testing, and learning from outcomes
// (spec.md §4.D).
package emergence

import (
	"time"

	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
)

// circuitBreaker is the per-variant failure isolator. Shape grounded on
// the teacher's pkg/orchestration/orchestrator.go CircuitBreaker
// (consecutive-failure counters, not a sliding error-rate window),
// generalized with the half-open success threshold and flap-window
// detection original_source emergence.py's CircuitBreaker adds.
type circuitBreaker struct {
	state                 model.CircuitState
	failureCount          int
	successCount          int
	consecutiveFailures   int
	consecutiveSuccesses  int
	failureThreshold      int
	halfOpenSuccessThreshold int
	resetTimeoutSeconds   int
	lastFailureTime       time.Time
	stateChanges          []model.CircuitStateChange
}

func newCircuitBreaker(cfg config.EmergenceConfig) *circuitBreaker {
	return &circuitBreaker{
		state:                    model.CircuitClosed,
		failureThreshold:         cfg.FailureThreshold,
		halfOpenSuccessThreshold: cfg.HalfOpenSuccessThreshold,
		resetTimeoutSeconds:      cfg.ResetTimeoutSeconds,
	}
}

func (c *circuitBreaker) recordSuccess() {
	c.successCount++
	c.consecutiveSuccesses++
	c.consecutiveFailures = 0

	if c.state == model.CircuitHalfOpen && c.consecutiveSuccesses >= c.halfOpenSuccessThreshold {
		c.transitionTo(model.CircuitClosed)
		c.failureCount = 0
		c.successCount = 0
		c.consecutiveSuccesses = 0
	}
}

func (c *circuitBreaker) recordFailure() {
	c.failureCount++
	c.consecutiveFailures++
	c.consecutiveSuccesses = 0
	c.lastFailureTime = time.Now().UTC()

	if c.consecutiveFailures >= c.failureThreshold {
		c.transitionTo(model.CircuitOpen)
	}
	if c.state == model.CircuitHalfOpen {
		c.transitionTo(model.CircuitOpen)
	}
}

func (c *circuitBreaker) canProceed() bool {
	switch c.state {
	case model.CircuitClosed:
		return true
	case model.CircuitOpen:
		if !c.lastFailureTime.IsZero() {
			elapsed := time.Since(c.lastFailureTime)
			if elapsed >= time.Duration(c.resetTimeoutSeconds)*time.Second {
				c.transitionTo(model.CircuitHalfOpen)
				c.consecutiveSuccesses = 0
				return true
			}
		}
		return false
	default: // half_open
		return true
	}
}

func (c *circuitBreaker) transitionTo(next model.CircuitState) {
	if c.state == next {
		return
	}
	c.stateChanges = append(c.stateChanges, model.CircuitStateChange{
		From: c.state, To: next, At: time.Now().UTC(),
	})
	c.state = next
}

func (c *circuitBreaker) flapCount(windowMinutes int) int {
	cutoff := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	n := 0
	for _, ch := range c.stateChanges {
		if ch.At.After(cutoff) {
			n++
		}
	}
	return n
}

func (c *circuitBreaker) isFlapping(threshold, windowMinutes int) bool {
	return c.flapCount(windowMinutes) >= threshold
}

// CircuitSnapshot is the read-only view of a breaker returned by
// GetVariantStatus.
type CircuitSnapshot struct {
	State                model.CircuitState `json:"state"`
	FailureCount         int                 `json:"failure_count"`
	SuccessCount         int                 `json:"success_count"`
	ConsecutiveFailures  int                 `json:"consecutive_failures"`
	ConsecutiveSuccesses int                 `json:"consecutive_successes"`
	FailureThreshold     int                 `json:"failure_threshold"`
	ResetTimeoutSeconds  int                 `json:"reset_timeout_seconds"`
	IsFlapping           bool                `json:"is_flapping"`
	FlapCount            int                 `json:"flap_count"`
}

func (c *circuitBreaker) snapshot(flapThreshold, flapWindowMinutes int) CircuitSnapshot {
	return CircuitSnapshot{
		State: c.state, FailureCount: c.failureCount, SuccessCount: c.successCount,
		ConsecutiveFailures: c.consecutiveFailures, ConsecutiveSuccesses: c.consecutiveSuccesses,
		FailureThreshold: c.failureThreshold, ResetTimeoutSeconds: c.resetTimeoutSeconds,
		IsFlapping: c.isFlapping(flapThreshold, flapWindowMinutes),
		FlapCount:  c.flapCount(flapWindowMinutes),
	}
}
