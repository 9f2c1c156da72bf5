package model

import "time"

// SessionState is the closed set of collaboration session states
// (spec.md §4.E).
type SessionState string

const (
	SessionPending     SessionState = "pending"
	SessionAligning    SessionState = "aligning"
	SessionNegotiating SessionState = "negotiating"
	SessionActive      SessionState = "active"
	SessionEvolving    SessionState = "evolving"
	SessionSuspended   SessionState = "suspended"
	SessionCompleted   SessionState = "completed"
	SessionFailed      SessionState = "failed"
)

// CollaborationSession binds two agents, their alignment results, and
// their negotiated protocol into one orchestrated unit (spec.md §3).
type CollaborationSession struct {
	SessionID          string                     `json:"session_id"`
	AgentAID           string                     `json:"agent_a_id"`
	AgentBID           string                     `json:"agent_b_id"`
	State              SessionState               `json:"state"`
	AlignmentResults   map[string]AlignmentResult `json:"alignment_results,omitempty"`
	AlignmentSummary   *AlignmentSummary          `json:"alignment_summary,omitempty"`
	NegotiationSession *NegotiationSession        `json:"negotiation_session,omitempty"`
	ActiveVariantID    string                     `json:"active_variant_id,omitempty"`
	Metrics            map[string]interface{}     `json:"metrics,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
	ClosedAt           *time.Time                 `json:"closed_at,omitempty"`
	FailureReason      string                     `json:"failure_reason,omitempty"`
	Metadata           map[string]interface{}     `json:"metadata,omitempty"`
}

// Clone deep-copies a session record for safe external handling.
func (c *CollaborationSession) Clone() *CollaborationSession {
	if c == nil {
		return nil
	}
	clone := *c
	if c.AlignmentResults != nil {
		clone.AlignmentResults = make(map[string]AlignmentResult, len(c.AlignmentResults))
		for k, v := range c.AlignmentResults {
			clone.AlignmentResults[k] = v
		}
	}
	if c.AlignmentSummary != nil {
		summary := *c.AlignmentSummary
		clone.AlignmentSummary = &summary
	}
	clone.NegotiationSession = c.NegotiationSession.Clone()
	clone.Metrics = cloneAnyMap(c.Metrics)
	clone.Metadata = cloneAnyMap(c.Metadata)
	return &clone
}

// WorkflowStatus is the closed set of workflow execution states
// (spec.md §4.F).
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowPaused    WorkflowStatus = "paused"
)

// StepStatus is the closed set of per-step states within a WorkflowExecution.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// WorkflowStep is one named unit of work within a workflow definition
// (SPEC_FULL.md "Workflow Runner — step timing").
type WorkflowStep struct {
	Name        string                 `json:"name"`
	Status      StepStatus             `json:"status"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	DurationMS  float64                `json:"duration_ms,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// WorkflowExecution tracks one run of a named built-in workflow
// (spec.md §3).
type WorkflowExecution struct {
	ExecutionID      string                 `json:"execution_id"`
	WorkflowName     string                 `json:"workflow_name"`
	Status           WorkflowStatus         `json:"status"`
	Steps            []WorkflowStep         `json:"steps"`
	CurrentStepIndex int                    `json:"current_step_index"`
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
	TotalDurationMS  float64                `json:"total_duration_ms,omitempty"`
}

// Clone deep-copies an execution record.
func (w *WorkflowExecution) Clone() *WorkflowExecution {
	if w == nil {
		return nil
	}
	clone := *w
	clone.Steps = append([]WorkflowStep(nil), w.Steps...)
	clone.Context = cloneAnyMap(w.Context)
	return &clone
}

// EventSeverity is the closed set of FlowEvent severities, used by the
// Observation Bus's alert rules.
type EventSeverity string

const (
	SeverityDebug    EventSeverity = "debug"
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// FlowEvent is one structured record published to the Observation Bus
// (spec.md §3, §5).
type FlowEvent struct {
	EventID      string                 `json:"event_id"`
	FlowType     string                 `json:"flow_type"`
	EventName    string                 `json:"event_name"`
	Timestamp    time.Time              `json:"timestamp"`
	Severity     EventSeverity          `json:"severity"`
	SourceAgent  string                 `json:"source_agent,omitempty"`
	TargetAgent  string                 `json:"target_agent,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	Summary      string                 `json:"summary,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	ParentEventID string                `json:"parent_event_id,omitempty"`
	DurationMS   *float64               `json:"duration_ms,omitempty"`
	Acknowledged bool                   `json:"acknowledged,omitempty"`
}
