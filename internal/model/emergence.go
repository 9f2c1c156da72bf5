package model

import "time"

// VariantStatus is the closed set of ProtocolVariant lifecycle states
// (spec.md §4.D).
type VariantStatus string

const (
	VariantProposed   VariantStatus = "proposed"
	VariantTesting    VariantStatus = "testing"
	VariantCanary     VariantStatus = "canary"
	VariantActive     VariantStatus = "active"
	VariantDeprecated VariantStatus = "deprecated"
	VariantRolledBack VariantStatus = "rolled_back"
	VariantPaused     VariantStatus = "paused"
)

// ProtocolVariant is a candidate set of protocol changes progressing
// through the lifecycle in spec.md §4.D.
type ProtocolVariant struct {
	VariantID         string                 `json:"variant_id"`
	Description       string                 `json:"description"`
	Changes           map[string]interface{} `json:"changes"`
	Status            VariantStatus          `json:"status"`
	StatusHistory     []VariantStatus        `json:"status_history"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	CanaryPercentage  float64                `json:"canary_percentage"`
	CanarySteps       int                    `json:"canary_steps"`
	MetricsHistory    []PerformanceMetrics   `json:"metrics_history,omitempty"`
	ParentVariantID   string                 `json:"parent_variant_id,omitempty"`
	Tags              []string               `json:"tags,omitempty"`
	FeatureFlags      map[string]bool        `json:"feature_flags,omitempty"`
	AlignmentScore    *float64               `json:"alignment_score,omitempty"`
	RollbackCount     int                    `json:"rollback_count"`
	PauseCount        int                    `json:"pause_count"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// Clone deep-copies the variant so a caller cannot mutate engine state.
func (v *ProtocolVariant) Clone() *ProtocolVariant {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Changes = cloneAnyMap(v.Changes)
	clone.StatusHistory = append([]VariantStatus(nil), v.StatusHistory...)
	clone.MetricsHistory = append([]PerformanceMetrics(nil), v.MetricsHistory...)
	clone.Tags = append([]string(nil), v.Tags...)
	if v.FeatureFlags != nil {
		clone.FeatureFlags = make(map[string]bool, len(v.FeatureFlags))
		for k, val := range v.FeatureFlags {
			clone.FeatureFlags[k] = val
		}
	}
	if v.AlignmentScore != nil {
		score := *v.AlignmentScore
		clone.AlignmentScore = &score
	}
	clone.Metadata = cloneAnyMap(v.Metadata)
	return &clone
}

func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PerformanceMetrics is one measurement appended to a variant's
// metrics_history (spec.md §3).
type PerformanceMetrics struct {
	SuccessRate    float64            `json:"success_rate"`
	LatencyMS      float64            `json:"latency_ms"`
	LatencyP50     float64            `json:"latency_p50,omitempty"`
	LatencyP95     float64            `json:"latency_p95,omitempty"`
	LatencyP99     float64            `json:"latency_p99,omitempty"`
	Throughput     float64            `json:"throughput,omitempty"`
	ErrorCount     int                `json:"error_count"`
	TotalRequests  int                `json:"total_requests"`
	Timestamp      time.Time          `json:"timestamp"`
	ErrorsByType   map[string]int     `json:"errors_by_type,omitempty"`
	MemoryMB       float64            `json:"memory_mb,omitempty"`
	CPUPercent     float64            `json:"cpu_percent,omitempty"`
}

// CircuitState is the closed set of per-variant circuit breaker states
// (spec.md §4.D).
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitStateChange records one breaker transition, used for flapping
// detection (spec.md §4.D "is_flapping").
type CircuitStateChange struct {
	From CircuitState `json:"from"`
	To   CircuitState `json:"to"`
	At   time.Time    `json:"at"`
}

// ABExperimentStatus is the closed set of experiment states.
type ABExperimentStatus string

const (
	ExperimentRunning      ABExperimentStatus = "running"
	ExperimentCompleted    ABExperimentStatus = "completed"
	ExperimentInconclusive ABExperimentStatus = "inconclusive"
)

// ABTestExperiment is a paired control/treatment rollout (spec.md §3).
type ABTestExperiment struct {
	ExperimentID       string               `json:"experiment_id"`
	ControlVariantID   string               `json:"control_variant_id"`
	TreatmentVariantID string               `json:"treatment_variant_id"`
	StartedAt          time.Time            `json:"started_at"`
	EndedAt            *time.Time           `json:"ended_at,omitempty"`
	TrafficSplit       float64              `json:"traffic_split"`
	ControlMetrics     []PerformanceMetrics `json:"control_metrics,omitempty"`
	TreatmentMetrics   []PerformanceMetrics `json:"treatment_metrics,omitempty"`
	Winner             string               `json:"winner,omitempty"`
	Confidence         float64              `json:"confidence"`
	Status             ABExperimentStatus   `json:"status"`
}

// RollbackPoint is one audit-only snapshot taken at start_canary
// (spec.md §4.D "Rollback point ring" — never reapplied automatically).
type RollbackPoint struct {
	PointID      string                 `json:"point_id"`
	VariantID    string                 `json:"variant_id"`
	StateSnapshot map[string]interface{} `json:"state_snapshot"`
	CreatedAt    time.Time              `json:"created_at"`
}

// VariantOutcome is a learning record appended on rollback of a
// non-proposed variant (spec.md §4.D "Learning").
type VariantOutcome struct {
	Changes        map[string]interface{} `json:"changes"`
	FinalStatus    VariantStatus          `json:"final_status"`
	AvgSuccessRate float64                `json:"avg_success_rate"`
	DurationHours  float64                `json:"duration_hours"`
	RollbackCount  int                    `json:"rollback_count"`
	Tags           []string               `json:"tags,omitempty"`
}
