package emergence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// RollbackReason is the closed set of rollback triggers (spec.md §4.D
// "Automatic rollback decision").
type RollbackReason string

const (
	ReasonCircuitOpen      RollbackReason = "circuit_open"
	ReasonSuccessRateLow   RollbackReason = "success_rate_low"
	ReasonLatencyHigh      RollbackReason = "latency_high"
	ReasonErrorSpike       RollbackReason = "error_spike"
	ReasonTrendDegrading   RollbackReason = "trend_degrading"
	ReasonAnomalyDetected  RollbackReason = "anomaly_detected"
	ReasonManual           RollbackReason = "manual"
	ReasonAlignmentThreshold RollbackReason = "alignment_threshold"
)

// Engine owns every ProtocolVariant, its circuit breaker, the shared
// rollback-point ring, A/B experiments, and the historical-outcome
// learning set — one mutex guards all of it, mirroring the teacher's
// StandardOrchestrator map-plus-mutex shape.
type Engine struct {
	mu sync.Mutex

	cfg config.EmergenceConfig

	variants  map[string]*model.ProtocolVariant
	breakers  map[string]*circuitBreaker
	rollbacks *rollbackRing

	currentActiveVariant string

	experiments map[string]*model.ABTestExperiment
	outcomes    []model.VariantOutcome

	onRollback  []func(variantID string, reason RollbackReason)
	onPromotion []func(variantID string)

	publish func(model.FlowEvent)
}

// New constructs an Engine bounded by cfg.RollbackRingCapacity.
func New(cfg config.EmergenceConfig, publish func(model.FlowEvent)) *Engine {
	if publish == nil {
		publish = func(model.FlowEvent) {}
	}
	return &Engine{
		cfg:         cfg,
		variants:    make(map[string]*model.ProtocolVariant),
		breakers:    make(map[string]*circuitBreaker),
		rollbacks:   newRollbackRing(cfg.RollbackRingCapacity),
		experiments: make(map[string]*model.ABTestExperiment),
		publish:     publish,
	}
}

func (e *Engine) emit(name string, severity model.EventSeverity, variantID, summary string) {
	e.publish(model.FlowEvent{
		FlowType:  "emergence",
		EventName: name,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Summary:   summary,
		Metrics:   map[string]interface{}{"variant_id": variantID},
	})
}

func (e *Engine) getLocked(variantID string) (*model.ProtocolVariant, error) {
	v, ok := e.variants[variantID]
	if !ok {
		return nil, xerrors.NotFound("emergence.getVariant", "variant", variantID)
	}
	return v, nil
}

// GetVariant returns a defensive copy of the variant.
func (e *Engine) GetVariant(variantID string) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// ProposeVariant creates a new variant in the proposed status with a
// fresh circuit breaker (spec.md §4.D).
func (e *Engine) ProposeVariant(description string, changes map[string]interface{}) *model.ProtocolVariant {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	v := &model.ProtocolVariant{
		VariantID:     uuid.NewString(),
		Description:   description,
		Changes:       changes,
		Status:        model.VariantProposed,
		StatusHistory: []model.VariantStatus{model.VariantProposed},
		CreatedAt:     now,
		UpdatedAt:     now,
		CanarySteps:   e.cfg.DefaultCanarySteps,
	}
	e.variants[v.VariantID] = v
	e.breakers[v.VariantID] = newCircuitBreaker(e.cfg)

	e.emit("propose_variant", model.SeverityInfo, v.VariantID, "variant proposed")
	return v.Clone()
}

// StartTesting moves a variant from proposed to testing.
func (e *Engine) StartTesting(variantID string) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VariantProposed {
		return nil, xerrors.IllegalTransition("emergence.StartTesting", "variant", variantID, string(v.Status), "start_testing")
	}
	e.transitionLocked(v, model.VariantTesting)
	e.emit("start_testing", model.SeverityInfo, variantID, "variant moved to testing")
	return v.Clone(), nil
}

// StartCanary moves a variant from testing to canary, creating a
// rollback point first (spec.md §4.D state table).
func (e *Engine) StartCanary(variantID string, initialPercentage *float64) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VariantTesting {
		return nil, xerrors.IllegalTransition("emergence.StartCanary", "variant", variantID, string(v.Status), "start_canary")
	}

	e.createRollbackPointLocked(v)

	e.transitionLocked(v, model.VariantCanary)
	if initialPercentage != nil {
		v.CanaryPercentage = *initialPercentage
	} else {
		v.CanaryPercentage = 0.1
	}
	e.emit("start_canary", model.SeverityInfo, variantID, "canary deployment started")
	return v.Clone(), nil
}

// RampDecision is the result of the adaptive ramp calculation.
type RampDecision string

const (
	RampFast   RampDecision = "fast"
	RampNormal RampDecision = "normal"
	RampSlow   RampDecision = "slow"
	RampPause  RampDecision = "pause"
)

// calculateAdaptiveRampLocked mirrors _calculate_adaptive_ramp: needs at
// least 3 samples, else "normal".
func (e *Engine) calculateAdaptiveRampLocked(v *model.ProtocolVariant) RampDecision {
	if len(v.MetricsHistory) < 3 {
		return RampNormal
	}
	avg := averageSuccessRate(v.MetricsHistory, 5)
	switch {
	case avg >= e.cfg.FastThreshold:
		return RampFast
	case avg >= e.cfg.SlowThreshold:
		return RampNormal
	case avg >= e.cfg.PauseThreshold:
		return RampSlow
	default:
		return RampPause
	}
}

func averageSuccessRate(history []model.PerformanceMetrics, window int) float64 {
	if len(history) == 0 {
		return 1.0
	}
	recent := lastN(history, window)
	sum := 0.0
	for _, m := range recent {
		sum += m.SuccessRate
	}
	return sum / float64(len(recent))
}

func averageLatency(history []model.PerformanceMetrics, window int) float64 {
	if len(history) == 0 {
		return 0.0
	}
	recent := lastN(history, window)
	sum := 0.0
	for _, m := range recent {
		sum += m.LatencyMS
	}
	return sum / float64(len(recent))
}

func lastN(history []model.PerformanceMetrics, n int) []model.PerformanceMetrics {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// RampCanary advances a canary's traffic percentage by one step,
// consulting the adaptive ramp decision unless force is set (spec.md
// §4.D state table + "Adaptive ramp decision").
func (e *Engine) RampCanary(variantID string, force bool) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VariantCanary {
		return nil, xerrors.IllegalTransition("emergence.RampCanary", "variant", variantID, string(v.Status), "ramp_canary")
	}

	stepSize := 1.0 / float64(v.CanarySteps)
	if !force {
		switch e.calculateAdaptiveRampLocked(v) {
		case RampPause:
			e.transitionLocked(v, model.VariantPaused)
			v.PauseCount++
			e.emit("ramp_canary_pause", model.SeverityWarning, variantID, "canary ramp paused by adaptive decision")
			return v.Clone(), nil
		case RampSlow:
			stepSize = 0.5 / float64(v.CanarySteps)
		case RampFast:
			stepSize = 2.0 / float64(v.CanarySteps)
		}
	}

	v.CanaryPercentage += stepSize
	if v.CanaryPercentage > 1.0 {
		v.CanaryPercentage = 1.0
	}
	v.UpdatedAt = time.Now().UTC()

	if v.CanaryPercentage >= 1.0 {
		e.transitionLocked(v, model.VariantActive)
		e.currentActiveVariant = variantID
		for _, hook := range e.onPromotion {
			safeInvokePromotion(hook, variantID)
		}
		e.emit("variant_active", model.SeverityInfo, variantID, "variant promoted to active")
	}

	return v.Clone(), nil
}

// ResumeVariant moves a paused variant back to canary.
func (e *Engine) ResumeVariant(variantID string) (*model.ProtocolVariant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VariantPaused {
		return nil, xerrors.IllegalTransition("emergence.ResumeVariant", "variant", variantID, string(v.Status), "resume_variant")
	}
	e.transitionLocked(v, model.VariantCanary)
	e.emit("resume_variant", model.SeverityInfo, variantID, "paused variant resumed")
	return v.Clone(), nil
}

func (e *Engine) transitionLocked(v *model.ProtocolVariant, next model.VariantStatus) {
	v.Status = next
	v.StatusHistory = append(v.StatusHistory, next)
	v.UpdatedAt = time.Now().UTC()
}

func safeInvokePromotion(hook func(string), variantID string) {
	defer func() { _ = recover() }()
	hook(variantID)
}

func safeInvokeRollback(hook func(string, RollbackReason), variantID string, reason RollbackReason) {
	defer func() { _ = recover() }()
	hook(variantID, reason)
}

// ListVariants returns defensive copies, optionally filtered by status.
func (e *Engine) ListVariants(status *model.VariantStatus) []*model.ProtocolVariant {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*model.ProtocolVariant, 0, len(e.variants))
	for _, v := range e.variants {
		if status != nil && v.Status != *status {
			continue
		}
		out = append(out, v.Clone())
	}
	return out
}

// CanaryStatus mirrors get_canary_status.
type CanaryStatus struct {
	ActiveCanaries       []*model.ProtocolVariant `json:"active_canaries"`
	CurrentActiveVariant string                   `json:"current_active_variant,omitempty"`
}

func (e *Engine) GetCanaryStatus() CanaryStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	var canaries []*model.ProtocolVariant
	for _, v := range e.variants {
		if v.Status == model.VariantCanary {
			canaries = append(canaries, v.Clone())
		}
	}
	return CanaryStatus{ActiveCanaries: canaries, CurrentActiveVariant: e.currentActiveVariant}
}

// VariantStatusReport is the comprehensive status returned by
// GetVariantStatus (spec.md §4.D get_variant_status).
type VariantStatusReport struct {
	Variant        *model.ProtocolVariant `json:"variant"`
	CircuitBreaker CircuitSnapshot        `json:"circuit_breaker"`
	ShouldRollback bool                   `json:"should_rollback"`
	RollbackReason RollbackReason         `json:"rollback_reason,omitempty"`
	CanProceed     bool                   `json:"can_proceed"`
}

func (e *Engine) GetVariantStatus(variantID string) (VariantStatusReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.getLocked(variantID)
	if err != nil {
		return VariantStatusReport{}, err
	}
	circuit := e.breakers[variantID]
	shouldRollback, reason := e.shouldAutoRollbackLocked(v)

	return VariantStatusReport{
		Variant:        v.Clone(),
		CircuitBreaker: circuit.snapshot(e.cfg.FlapThreshold, e.cfg.FlapWindowMinutes),
		ShouldRollback: shouldRollback,
		RollbackReason: reason,
		CanProceed:     circuit.canProceed(),
	}, nil
}

// OnRollback registers a rollback hook.
func (e *Engine) OnRollback(hook func(variantID string, reason RollbackReason)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRollback = append(e.onRollback, hook)
}

// OnPromotion registers a promotion hook.
func (e *Engine) OnPromotion(hook func(variantID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPromotion = append(e.onPromotion, hook)
}

// SetAlignmentScore records an alignment score on a variant, flagging
// low scores for caution (spec.md §4.D integration with the Scorer).
func (e *Engine) SetAlignmentScore(variantID string, score float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return err
	}
	v.AlignmentScore = &score
	if score < 0.5 {
		if v.Metadata == nil {
			v.Metadata = make(map[string]interface{})
		}
		v.Metadata["alignment_warning"] = true
	}
	return nil
}

// LinkNegotiation links a variant to a negotiation session id.
func (e *Engine) LinkNegotiation(variantID, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return err
	}
	if v.Metadata == nil {
		v.Metadata = make(map[string]interface{})
	}
	v.Metadata["negotiation_session_id"] = sessionID
	return nil
}
