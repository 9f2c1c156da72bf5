package emergence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
)

func testBreakerConfig() config.EmergenceConfig {
	return config.EmergenceConfig{
		FailureThreshold:         3,
		HalfOpenSuccessThreshold: 2,
		ResetTimeoutSeconds:      0, // elapses immediately for deterministic tests
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newCircuitBreaker(testBreakerConfig())
	assert.Equal(t, model.CircuitClosed, cb.state)

	cb.recordFailure()
	cb.recordFailure()
	assert.Equal(t, model.CircuitClosed, cb.state, "below threshold, still closed")

	cb.recordFailure()
	assert.Equal(t, model.CircuitOpen, cb.state)
}

func TestCircuitBreakerNeverGoesDirectlyOpenToClosed(t *testing.T) {
	cb := newCircuitBreaker(testBreakerConfig())
	for i := 0; i < 3; i++ {
		cb.recordFailure()
	}
	require := assert.New(t)
	require.Equal(model.CircuitOpen, cb.state)

	// a further failure while open must not flip straight to closed
	cb.recordFailure()
	require.Equal(model.CircuitOpen, cb.state)

	for _, ch := range cb.stateChanges {
		if ch.From == model.CircuitOpen {
			assert.NotEqual(t, model.CircuitClosed, ch.To, "invariant: no direct open->closed transition")
		}
	}
}

func TestCircuitBreakerHalfOpenRecoversToClosed(t *testing.T) {
	cb := newCircuitBreaker(testBreakerConfig())
	for i := 0; i < 3; i++ {
		cb.recordFailure()
	}
	require := assert.New(t)
	require.Equal(model.CircuitOpen, cb.state)

	// resetTimeoutSeconds is 0, so the next canProceed check moves to half_open
	cb.lastFailureTime = time.Now().UTC().Add(-time.Second)
	ok := cb.canProceed()
	require.True(ok)
	require.Equal(model.CircuitHalfOpen, cb.state)

	cb.recordSuccess()
	require.Equal(model.CircuitHalfOpen, cb.state, "below half-open success threshold")

	cb.recordSuccess()
	require.Equal(model.CircuitClosed, cb.state)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newCircuitBreaker(testBreakerConfig())
	for i := 0; i < 3; i++ {
		cb.recordFailure()
	}
	cb.lastFailureTime = time.Now().UTC().Add(-time.Second)
	cb.canProceed() // -> half_open
	assert := assert.New(t)
	assert.Equal(model.CircuitHalfOpen, cb.state)

	cb.recordFailure()
	assert.Equal(model.CircuitOpen, cb.state, "any failure in half_open reopens immediately")
}

func TestCircuitBreakerOpenBlocksUntilResetTimeout(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.ResetTimeoutSeconds = 3600
	cb := newCircuitBreaker(cfg)
	for i := 0; i < 3; i++ {
		cb.recordFailure()
	}

	assert.False(t, cb.canProceed(), "reset timeout has not elapsed")
	assert.Equal(t, model.CircuitOpen, cb.state)
}

func TestCircuitBreakerIsFlapping(t *testing.T) {
	cb := newCircuitBreaker(testBreakerConfig())
	for i := 0; i < 3; i++ {
		cb.recordFailure()
	}
	cb.lastFailureTime = time.Now().UTC().Add(-time.Second)
	cb.canProceed() // open -> half_open
	cb.recordFailure() // half_open -> open

	assert.True(t, cb.isFlapping(2, 60))
	assert.False(t, cb.isFlapping(10, 60))
}
