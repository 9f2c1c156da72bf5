package emergence

import (
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// rollbackRing is a bounded deque of RollbackPoints shared across all
// variants, matching spec.md §4.D "Rollback point ring" (push on
// start_canary; rollback scans newest-to-oldest).
type rollbackRing struct {
	capacity int
	points   []model.RollbackPoint
}

func newRollbackRing(capacity int) *rollbackRing {
	if capacity <= 0 {
		capacity = 200
	}
	return &rollbackRing{capacity: capacity}
}

func (r *rollbackRing) push(p model.RollbackPoint) {
	r.points = append(r.points, p)
	if len(r.points) > r.capacity {
		r.points = r.points[len(r.points)-r.capacity:]
	}
}

// findNewest scans newest-to-oldest for the given variant.
func (r *rollbackRing) findNewest(variantID string) (model.RollbackPoint, bool) {
	for i := len(r.points) - 1; i >= 0; i-- {
		if r.points[i].VariantID == variantID {
			return r.points[i], true
		}
	}
	return model.RollbackPoint{}, false
}

func (e *Engine) createRollbackPointLocked(v *model.ProtocolVariant) model.RollbackPoint {
	point := model.RollbackPoint{
		PointID:   uuid.NewString(),
		VariantID: v.VariantID,
		StateSnapshot: map[string]interface{}{
			"status":            string(v.Status),
			"changes":           cloneMap(v.Changes),
			"canary_percentage": v.CanaryPercentage,
		},
		CreatedAt: time.Now().UTC(),
	}
	e.rollbacks.push(point)
	return point
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Rollback moves a variant to rolled_back, invoking hooks and recording
// a learning outcome, and returns the rollback point used (if any).
// Auto-triggered and manual rollbacks share this path (spec.md §4.D
// "Rollback point ring").
func (e *Engine) Rollback(variantID string, reason RollbackReason) (*model.RollbackPoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rollbackLocked(variantID, reason)
}

func (e *Engine) rollbackLocked(variantID string, reason RollbackReason) (*model.RollbackPoint, error) {
	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	v.RollbackCount++

	for _, hook := range e.onRollback {
		safeInvokeRollback(hook, variantID, reason)
	}

	if e.cfg.TrackOutcomes {
		e.recordOutcomeLocked(v)
	}

	point, found := e.rollbacks.findNewest(variantID)

	e.transitionLocked(v, model.VariantRolledBack)
	if v.Metadata == nil {
		v.Metadata = make(map[string]interface{})
	}
	v.Metadata["rollback_reason"] = string(reason)

	e.emit("rollback", model.SeverityWarning, variantID, "variant rolled back: "+string(reason))

	if !found {
		return nil, nil
	}
	return &point, nil
}

// ShouldRollback reports the current auto-rollback decision without
// triggering it.
func (e *Engine) ShouldRollback(variantID string) (bool, RollbackReason, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return false, "", err
	}
	should, reason := e.shouldAutoRollbackLocked(v)
	return should, reason, nil
}

// shouldAutoRollbackLocked implements _should_auto_rollback: circuit
// open, flapping, then the last-3-metrics checks, then trend (spec.md
// §4.D "Automatic rollback decision"). Caller must hold e.mu.
func (e *Engine) shouldAutoRollbackLocked(v *model.ProtocolVariant) (bool, RollbackReason) {
	circuit := e.breakers[v.VariantID]

	if circuit.state == model.CircuitOpen {
		return true, ReasonCircuitOpen
	}
	if circuit.isFlapping(e.cfg.FlapThreshold, e.cfg.FlapWindowMinutes) {
		return true, ReasonAnomalyDetected
	}

	if len(v.MetricsHistory) >= 3 {
		recent := lastN(v.MetricsHistory, 3)

		avgSuccess := 0.0
		avgLatency := 0.0
		totalErrors := 0
		for _, m := range recent {
			avgSuccess += m.SuccessRate
			avgLatency += m.LatencyMS
			totalErrors += m.ErrorCount
		}
		avgSuccess /= float64(len(recent))
		avgLatency /= float64(len(recent))

		if avgSuccess < e.cfg.MinSuccessRate {
			return true, ReasonSuccessRateLow
		}
		if avgLatency > e.cfg.MaxLatencyMS {
			return true, ReasonLatencyHigh
		}
		if totalErrors > e.cfg.ErrorSpikeThreshold*3 {
			return true, ReasonErrorSpike
		}
	}

	trend := e.analyzeTrendLocked(v, "success_rate")
	if trend == TrendDegrading && len(v.MetricsHistory) >= e.cfg.TrendWindowSize {
		return true, ReasonTrendDegrading
	}

	return false, ""
}

// TrackPerformance appends a metrics sample, updates the circuit
// breaker, and runs the auto-rollback check (spec.md §4.D "Circuit
// breaker per variant" + "Automatic rollback decision").
func (e *Engine) TrackPerformance(variantID string, metrics model.PerformanceMetrics) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	if metrics.Timestamp.IsZero() {
		metrics.Timestamp = time.Now().UTC()
	}
	v.MetricsHistory = append(v.MetricsHistory, metrics)
	v.UpdatedAt = time.Now().UTC()

	circuit := e.breakers[variantID]
	switch {
	case metrics.SuccessRate < e.cfg.MinSuccessRate:
		circuit.recordFailure()
	case metrics.LatencyMS > e.cfg.MaxLatencyMS:
		circuit.recordFailure()
	case metrics.ErrorCount > e.cfg.ErrorSpikeThreshold:
		circuit.recordFailure()
	default:
		circuit.recordSuccess()
	}

	if needed, reason := e.shouldAutoRollbackLocked(v); needed {
		if _, err := e.rollbackLocked(variantID, reason); err != nil {
			return nil, &xerrors.CoordinationError{Op: "emergence.TrackPerformance", Kind: "emergence", ID: variantID, Err: err}
		}
	}

	return v.Clone(), nil
}
