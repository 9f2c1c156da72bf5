// Package negotiation implements the Negotiation State Machine: session
// lifecycle, authorization, timeout sweeping, auto-optimization,
// auto-resolve, and analytics. The state machine shape is grounded on
// original_source/mcp_server/xenocomm_mcp/negotiation.py's
// NegotiationEngine, generalized per spec.md §4.C with multi-round
// counters, timeout policies, and archived-session analytics the
// original did not have (supplemented features 2–3).
package negotiation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// Engine owns all NegotiationSessions, mirroring the teacher's
// single-mutex-guarded-map shape (pkg/orchestration/orchestrator.go).
type Engine struct {
	mu sync.Mutex

	cfg       config.NegotiationConfig
	sessions  map[string]*model.NegotiationSession
	completed []*model.NegotiationSession
	contests  map[string]int

	publish func(model.FlowEvent)
}

// New constructs an Engine. publish may be nil; when set, it receives a
// FlowEvent for every state transition (wired to the Observation Bus by
// the Orchestrator).
func New(cfg config.NegotiationConfig, publish func(model.FlowEvent)) *Engine {
	if publish == nil {
		publish = func(model.FlowEvent) {}
	}
	return &Engine{
		cfg:      cfg,
		sessions: make(map[string]*model.NegotiationSession),
		contests: make(map[string]int),
		publish:  publish,
	}
}

func (e *Engine) emit(name string, severity model.EventSeverity, s *model.NegotiationSession, summary string) {
	e.publish(model.FlowEvent{
		FlowType:    "negotiation",
		EventName:   name,
		Timestamp:   time.Now().UTC(),
		Severity:    severity,
		SourceAgent: s.InitiatorID,
		TargetAgent: s.ResponderID,
		SessionID:   s.SessionID,
		Summary:     summary,
	})
}

func (e *Engine) validateIfRequired(p model.NegotiableParams) error {
	if !e.cfg.RequireValidation {
		return nil
	}
	if err := p.Validate(); err != nil {
		return &xerrors.CoordinationError{Op: "negotiation.Validate", Kind: "negotiation", Err: xerrors.ErrValidation, Message: err.Error()}
	}
	return nil
}

// InitiateSession opens a new session in awaiting_response (spec.md
// §4.C). If proposed is invalid and validation is required, returns a
// Validation error and creates no session.
func (e *Engine) InitiateSession(initiatorID, responderID string, proposed model.NegotiableParams, policy model.TimeoutPolicy) (*model.NegotiationSession, error) {
	if err := e.validateIfRequired(proposed); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = model.TimeoutPolicy(e.cfg.TimeoutPolicy)
	}

	now := time.Now().UTC()
	session := &model.NegotiationSession{
		SessionID:      uuid.NewString(),
		InitiatorID:    initiatorID,
		ResponderID:    responderID,
		State:          model.StateAwaitingResponse,
		ProposedParams: proposed,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(e.cfg.DefaultTimeoutSeconds) * time.Second),
		TimeoutPolicy:  policy,
		MaxRounds:      e.cfg.MaxRounds,
		MaxExtensions:  e.cfg.MaxExtensions,
	}
	session.Rounds = append(session.Rounds, round(initiatorID, "initiate_session", proposed))

	e.mu.Lock()
	e.sessions[session.SessionID] = session
	e.mu.Unlock()

	e.emit("initiate_session", model.SeverityInfo, session, "negotiation session opened")
	return session.Clone(), nil
}

func round(actor, action string, params interface{}) model.NegotiationRound {
	snapshot := map[string]interface{}{}
	if p, ok := params.(model.NegotiableParams); ok {
		snapshot = map[string]interface{}{
			"protocol_version": p.ProtocolVersion, "data_format": p.DataFormat,
			"compression": p.Compression, "encryption": p.Encryption,
			"max_message_size": p.MaxMessageSize, "timeout_ms": p.TimeoutMS,
		}
	}
	return model.NegotiationRound{ActorID: actor, Action: action, ParamsSnapshot: snapshot, At: time.Now().UTC()}
}

func (e *Engine) get(sessionID string) (*model.NegotiationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, &xerrors.CoordinationError{Op: "negotiation.get", Kind: "negotiation", ID: sessionID, Err: xerrors.ErrNotFound}
	}
	return s, nil
}

func requireResponder(s *model.NegotiationSession, callerID string) error {
	if s.ResponderID != callerID {
		return &xerrors.CoordinationError{Op: "negotiation", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrNotParticipant, Message: "caller is not the responder"}
	}
	return nil
}

func requireInitiator(s *model.NegotiationSession, callerID string) error {
	if s.InitiatorID != callerID {
		return &xerrors.CoordinationError{Op: "negotiation", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrNotParticipant, Message: "caller is not the initiator"}
	}
	return nil
}

func illegalTransition(s *model.NegotiationSession, op string) error {
	return &xerrors.CoordinationError{Op: op, Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrIllegalTransition, Message: "illegal from state " + string(s.State)}
}

// ReceiveProposal transitions awaiting_response → proposal_received,
// called by the responder (spec.md §4.C).
func (e *Engine) ReceiveProposal(sessionID, responderID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireResponder(s, responderID); err != nil {
		return nil, err
	}
	if s.State != model.StateAwaitingResponse {
		return nil, illegalTransition(s, "negotiation.ReceiveProposal")
	}
	s.State = model.StateProposalReceived
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(responderID, "receive_proposal", nil))
	e.emit("receive_proposal", model.SeverityInfo, s, "proposal received")
	return s.Clone(), nil
}

// RespondAccept transitions to awaiting_finalization with no counter set.
func (e *Engine) RespondAccept(sessionID, responderID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireResponder(s, responderID); err != nil {
		return nil, err
	}
	if s.State != model.StateProposalReceived && s.State != model.StateCounterReceived {
		return nil, illegalTransition(s, "negotiation.RespondAccept")
	}
	s.State = model.StateAwaitingFinalization
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(responderID, "respond_accept", nil))
	e.emit("respond_accept", model.SeverityInfo, s, "proposal accepted")
	return s.Clone(), nil
}

// RespondCounter transitions to awaiting_finalization with counter_params set.
func (e *Engine) RespondCounter(sessionID, responderID string, counter model.NegotiableParams) (*model.NegotiationSession, error) {
	if err := e.validateIfRequired(counter); err != nil {
		return nil, err
	}
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireResponder(s, responderID); err != nil {
		return nil, err
	}
	if s.State != model.StateProposalReceived {
		return nil, illegalTransition(s, "negotiation.RespondCounter")
	}
	if e.cfg.RequireValidation && s.ProposedParams.ClassifyCompatibility(counter) == model.CompatibilityIncompatible {
		return nil, &xerrors.CoordinationError{Op: "negotiation.RespondCounter", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrValidation, Message: "counter params incompatible with proposal"}
	}

	c := counter
	s.CounterParams = &c
	s.State = model.StateAwaitingFinalization
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(responderID, "respond_counter", counter))
	e.emit("respond_counter", model.SeverityInfo, s, "counter-proposal submitted")
	return s.Clone(), nil
}

// RespondReject transitions to failed.
func (e *Engine) RespondReject(sessionID, responderID, reason string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireResponder(s, responderID); err != nil {
		return nil, err
	}
	if s.State.IsTerminal() {
		return nil, illegalTransition(s, "negotiation.RespondReject")
	}
	if reason == "" {
		reason = "proposal rejected"
	}
	s.State = model.StateFailed
	s.FailureReason = reason
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(responderID, "respond_reject", nil))
	e.archiveLocked(s)
	e.emit("respond_reject", model.SeverityWarning, s, reason)
	return s.Clone(), nil
}

// SubmitCounterProposal supports multi-round negotiation: counter_received,
// bounded by max_rounds (spec.md §4.C).
func (e *Engine) SubmitCounterProposal(sessionID, actorID string, params model.NegotiableParams) (*model.NegotiationSession, error) {
	if err := e.validateIfRequired(params); err != nil {
		return nil, err
	}
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if actorID != s.InitiatorID && actorID != s.ResponderID {
		return nil, &xerrors.CoordinationError{Op: "negotiation.SubmitCounterProposal", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrNotParticipant}
	}
	if s.State.IsTerminal() {
		return nil, illegalTransition(s, "negotiation.SubmitCounterProposal")
	}
	if len(s.Rounds) >= s.MaxRounds {
		return nil, &xerrors.CoordinationError{Op: "negotiation.SubmitCounterProposal", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrIllegalTransition, Message: "max_rounds exceeded"}
	}

	c := params
	s.CounterParams = &c
	s.State = model.StateCounterReceived
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(actorID, "submit_counter_proposal", params))
	e.emit("submit_counter_proposal", model.SeverityInfo, s, "counter-proposal round submitted")
	return s.Clone(), nil
}

// AcceptCounter transitions awaiting_finalization → finalizing, called
// by the initiator.
func (e *Engine) AcceptCounter(sessionID, initiatorID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireInitiator(s, initiatorID); err != nil {
		return nil, err
	}
	if s.State != model.StateAwaitingFinalization && s.State != model.StateCounterReceived {
		return nil, illegalTransition(s, "negotiation.AcceptCounter")
	}
	if s.CounterParams == nil {
		return nil, &xerrors.CoordinationError{Op: "negotiation.AcceptCounter", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrValidation, Message: "no counter-proposal to accept"}
	}
	s.State = model.StateFinalizing
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(initiatorID, "accept_counter", nil))
	e.emit("accept_counter", model.SeverityInfo, s, "counter-proposal accepted")
	return s.Clone(), nil
}

// FinalizeSession transitions to finalized, setting final_params to the
// counter if present else the original proposal (spec.md §8 invariant 2).
func (e *Engine) FinalizeSession(sessionID, initiatorID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireInitiator(s, initiatorID); err != nil {
		return nil, err
	}
	if s.State != model.StateAwaitingFinalization && s.State != model.StateFinalizing {
		return nil, illegalTransition(s, "negotiation.FinalizeSession")
	}

	if s.CounterParams != nil {
		final := *s.CounterParams
		s.FinalParams = &final
	} else {
		final := s.ProposedParams
		s.FinalParams = &final
	}
	s.State = model.StateFinalized
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(initiatorID, "finalize_session", nil))
	e.archiveLocked(s)
	e.emit("finalize_session", model.SeverityInfo, s, "negotiation finalized")
	return s.Clone(), nil
}

// CloseSession transitions any non-terminal session to closed; accepts
// either party.
func (e *Engine) CloseSession(sessionID, callerID string) (*model.NegotiationSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if callerID != s.InitiatorID && callerID != s.ResponderID {
		return nil, &xerrors.CoordinationError{Op: "negotiation.CloseSession", Kind: "negotiation", ID: s.SessionID, Err: xerrors.ErrNotParticipant}
	}
	if s.State.IsTerminal() {
		return s.Clone(), nil
	}
	s.State = model.StateClosed
	s.UpdatedAt = time.Now().UTC()
	s.Rounds = append(s.Rounds, round(callerID, "close_session", nil))
	e.archiveLocked(s)
	e.emit("close_session", model.SeverityInfo, s, "negotiation closed")
	return s.Clone(), nil
}

// archiveLocked moves a terminal session from the active map to the
// completed list. Caller must hold e.mu.
func (e *Engine) archiveLocked(s *model.NegotiationSession) {
	delete(e.sessions, s.SessionID)
	e.completed = append(e.completed, s)
}

// GetStatus returns a copy of the session's current state.
func (e *Engine) GetStatus(sessionID string) (*model.NegotiationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[sessionID]; ok {
		return s.Clone(), nil
	}
	for _, s := range e.completed {
		if s.SessionID == sessionID {
			return s.Clone(), nil
		}
	}
	return nil, &xerrors.CoordinationError{Op: "negotiation.GetStatus", Kind: "negotiation", ID: sessionID, Err: xerrors.ErrNotFound}
}

// ListSessions returns active sessions, optionally filtered by
// participant agent_id.
func (e *Engine) ListSessions(agentID string) []*model.NegotiationSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.NegotiationSession, 0, len(e.sessions))
	for _, s := range e.sessions {
		if agentID != "" && s.InitiatorID != agentID && s.ResponderID != agentID {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

// GetHistory returns the full round-by-round exchange for a session
// (supplemented feature 2).
func (e *Engine) GetHistory(sessionID string) ([]model.NegotiationRound, error) {
	s, err := e.GetStatus(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Rounds, nil
}
