package model

import "time"

// NegotiationState is the closed set of session states (spec.md §4.C).
type NegotiationState string

const (
	StateAwaitingResponse     NegotiationState = "awaiting_response"
	StateProposalReceived     NegotiationState = "proposal_received"
	StateCounterReceived      NegotiationState = "counter_received"
	StateAwaitingFinalization NegotiationState = "awaiting_finalization"
	StateFinalizing           NegotiationState = "finalizing"
	StateFinalized            NegotiationState = "finalized"
	StateFailed               NegotiationState = "failed"
	StateTimedOut             NegotiationState = "timed_out"
	StateClosed               NegotiationState = "closed"
)

// IsTerminal reports whether the state is one of finalized/failed/timed_out/closed.
func (s NegotiationState) IsTerminal() bool {
	switch s {
	case StateFinalized, StateFailed, StateTimedOut, StateClosed:
		return true
	default:
		return false
	}
}

// TimeoutPolicy controls what happens when a session's deadline elapses.
type TimeoutPolicy string

const (
	TimeoutPolicyFail       TimeoutPolicy = "fail"
	TimeoutPolicyAutoAccept TimeoutPolicy = "auto_accept"
	TimeoutPolicyExtend     TimeoutPolicy = "extend"
)

// NegotiationRound records one action taken during a session's exchange
// (SPEC_FULL.md "Negotiation — round history detail").
type NegotiationRound struct {
	ActorID       string                 `json:"actor_id"`
	Action        string                 `json:"action"`
	ParamsSnapshot map[string]interface{} `json:"params_snapshot,omitempty"`
	At            time.Time              `json:"at"`
}

// NegotiationSession is the state-machine instance tracking one
// proposal/counter/finalize exchange (spec.md §3).
type NegotiationSession struct {
	SessionID     string             `json:"session_id"`
	InitiatorID   string             `json:"initiator_id"`
	ResponderID   string             `json:"responder_id"`
	State         NegotiationState   `json:"state"`
	ProposedParams NegotiableParams  `json:"proposed_params"`
	CounterParams *NegotiableParams  `json:"counter_params,omitempty"`
	FinalParams   *NegotiableParams  `json:"final_params,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Rounds        []NegotiationRound `json:"rounds,omitempty"`
	ExtendCount   int                `json:"extend_count"`
	AlignmentScore *float64          `json:"alignment_score,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	TimeoutPolicy TimeoutPolicy      `json:"timeout_policy"`
	MaxRounds     int                `json:"max_rounds"`
	MaxExtensions int                `json:"max_extensions"`
}

// Clone deep-copies a session so stored state can't be mutated by callers.
func (s *NegotiationSession) Clone() *NegotiationSession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.ProposedParams = *s.ProposedParams.Clone()
	if s.CounterParams != nil {
		clone.CounterParams = s.CounterParams.Clone()
	}
	if s.FinalParams != nil {
		clone.FinalParams = s.FinalParams.Clone()
	}
	clone.Rounds = append([]NegotiationRound(nil), s.Rounds...)
	if s.AlignmentScore != nil {
		score := *s.AlignmentScore
		clone.AlignmentScore = &score
	}
	return &clone
}
