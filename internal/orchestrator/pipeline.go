package orchestrator

import (
	"time"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// InitiateCollaboration runs the full pipeline described in spec.md
// §4.E: look up both agents, align, gate, negotiate (with optional
// capability-aware optimization), then activate.
func (o *Orchestrator) InitiateCollaboration(agentAID, agentBID string, requiredDomains []string, proposed *model.NegotiableParams, metadata map[string]interface{}) (*model.CollaborationSession, error) {
	agentA, err := o.registry.get(agentAID)
	if err != nil {
		return nil, err
	}
	agentB, err := o.registry.get(agentBID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &model.CollaborationSession{
		SessionID: newSessionID(),
		AgentAID:  agentAID,
		AgentBID:  agentBID,
		State:     model.SessionAligning,
		CreatedAt: now,
		UpdatedAt: now,
		Metrics:   make(map[string]interface{}),
		Metadata:  metadata,
	}

	o.mu.Lock()
	o.sessions[session.SessionID] = session
	o.mu.Unlock()

	o.emit("session_created", model.SeverityInfo, session, "collaboration session created")

	alignStart := time.Now()
	check := o.scorer.FullAlignmentCheck(*agentA, *agentB, requiredDomains, nil)
	session.Metrics["alignment_duration_ms"] = float64(time.Since(alignStart).Microseconds()) / 1000.0

	o.mu.Lock()
	session.AlignmentResults = map[string]model.AlignmentResult{
		"knowledge":   check.Knowledge,
		"goals":       check.Goals,
		"terminology": check.Terminology,
		"assumptions": check.Assumptions,
		"context":     check.Context,
	}
	session.AlignmentSummary = &check.Summary
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	for _, hook := range o.onAlignmentComplete {
		safeInvokeAlignment(hook, session, check)
	}

	alignedCount := check.Summary.AlignedCount
	score := (float64(alignedCount) + 0.5*float64(check.Summary.PartialCount)) / 5.0

	if alignedCount < o.gate.RequiredAlignedStrategies || score < o.gate.MinAlignmentConfidence {
		o.mu.Lock()
		session.State = model.SessionFailed
		session.FailureReason = "Insufficient alignment"
		session.UpdatedAt = time.Now().UTC()
		o.mu.Unlock()
		o.emit("session_failed", model.SeverityWarning, session, "insufficient alignment")
		return session.Clone(), nil
	}

	o.mu.Lock()
	session.State = model.SessionNegotiating
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()
	o.emit("negotiating", model.SeverityInfo, session, "alignment gate passed, opening negotiation")

	params := model.DefaultParams()
	if proposed != nil {
		params = *proposed
	}
	if score >= o.gate.AutoAcceptThreshold {
		params = negotiation.SuggestOptimalParams(agentA.Capabilities, agentB.Capabilities, negotiation.PriorityCompatibility, params)
	}

	negSession, err := o.negotiator.InitiateSession(agentAID, agentBID, params, model.TimeoutPolicyFail)
	if err != nil {
		o.mu.Lock()
		session.State = model.SessionFailed
		session.FailureReason = err.Error()
		session.UpdatedAt = time.Now().UTC()
		o.mu.Unlock()
		return session.Clone(), nil
	}

	o.mu.Lock()
	negSession.AlignmentScore = &score
	session.NegotiationSession = negSession
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	for _, hook := range o.onNegotiationComplete {
		safeInvokeNegotiation(hook, session, negSession)
	}

	o.mu.Lock()
	session.State = model.SessionActive
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	for _, hook := range o.onSessionReady {
		safeInvokeReady(hook, session)
	}
	o.emit("session_ready", model.SeverityInfo, session, "collaboration session active")

	return session.Clone(), nil
}

// ReadinessReport summarizes check_collaboration_readiness.
type ReadinessReport struct {
	Ready          bool                  `json:"ready"`
	Score          float64               `json:"score"`
	AlignedCount   int                   `json:"aligned_count"`
	PartialCount   int                   `json:"partial_count"`
	Summary        model.AlignmentSummary `json:"summary"`
}

// CheckCollaborationReadiness runs the alignment check without creating
// a session, exposing the gate decision for inspection.
func (o *Orchestrator) CheckCollaborationReadiness(agentAID, agentBID string, requiredDomains []string) (ReadinessReport, error) {
	agentA, err := o.registry.get(agentAID)
	if err != nil {
		return ReadinessReport{}, err
	}
	agentB, err := o.registry.get(agentBID)
	if err != nil {
		return ReadinessReport{}, err
	}

	check := o.scorer.FullAlignmentCheck(*agentA, *agentB, requiredDomains, nil)
	score := (float64(check.Summary.AlignedCount) + 0.5*float64(check.Summary.PartialCount)) / 5.0
	ready := check.Summary.AlignedCount >= o.gate.RequiredAlignedStrategies && score >= o.gate.MinAlignmentConfidence

	return ReadinessReport{
		Ready: ready, Score: score,
		AlignedCount: check.Summary.AlignedCount, PartialCount: check.Summary.PartialCount,
		Summary: check.Summary,
	}, nil
}

// CompleteNegotiation dispatches a responder's accept/counter/reject
// against the session's negotiation, keeping the CollaborationSession
// in sync (spec.md §4.E).
func (o *Orchestrator) CompleteNegotiation(sessionID, responderID, response string, counter *model.NegotiableParams) (*model.CollaborationSession, error) {
	o.mu.Lock()
	session, err := o.getSessionLocked(sessionID)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if session.NegotiationSession == nil {
		return nil, xerrors.Validation("orchestrator.CompleteNegotiation", "session has no open negotiation")
	}
	negID := session.NegotiationSession.SessionID

	if _, err := o.negotiator.ReceiveProposal(negID, responderID); err != nil {
		return nil, err
	}

	var neg *model.NegotiationSession
	switch response {
	case "accept":
		neg, err = o.negotiator.RespondAccept(negID, responderID)
	case "counter":
		if counter == nil {
			return nil, xerrors.Validation("orchestrator.CompleteNegotiation", "counter response requires counter params")
		}
		neg, err = o.negotiator.RespondCounter(negID, responderID, *counter)
	case "reject":
		neg, err = o.negotiator.RespondReject(negID, responderID, "rejected by responder")
	default:
		return nil, xerrors.Validation("orchestrator.CompleteNegotiation", "unknown response: "+response)
	}
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	session.NegotiationSession = neg
	session.UpdatedAt = time.Now().UTC()
	if neg.State == model.StateFailed {
		session.State = model.SessionFailed
		session.FailureReason = "negotiation rejected"
	}
	o.mu.Unlock()

	for _, hook := range o.onNegotiationComplete {
		safeInvokeNegotiation(hook, session, neg)
	}

	return session.Clone(), nil
}

// AcceptCounterAndFinalize runs accept_counter then finalize_session on
// the session's negotiation, activating the session on success.
func (o *Orchestrator) AcceptCounterAndFinalize(sessionID, initiatorID string) (*model.CollaborationSession, error) {
	o.mu.Lock()
	session, err := o.getSessionLocked(sessionID)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if session.NegotiationSession == nil {
		return nil, xerrors.Validation("orchestrator.AcceptCounterAndFinalize", "session has no open negotiation")
	}
	negID := session.NegotiationSession.SessionID

	if _, err := o.negotiator.AcceptCounter(negID, initiatorID); err != nil {
		return nil, err
	}
	neg, err := o.negotiator.FinalizeSession(negID, initiatorID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	session.NegotiationSession = neg
	session.State = model.SessionActive
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	for _, hook := range o.onSessionReady {
		safeInvokeReady(hook, session)
	}

	return session.Clone(), nil
}

// ProposeProtocolEvolution proposes a variant via the Emergence Engine
// and links it to the session, moving the session to evolving.
func (o *Orchestrator) ProposeProtocolEvolution(sessionID, description string, changes map[string]interface{}) (*model.ProtocolVariant, error) {
	o.mu.Lock()
	session, err := o.getSessionLocked(sessionID)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	variant := o.emergence.ProposeVariant(description, changes)
	if session.NegotiationSession != nil {
		_ = o.emergence.LinkNegotiation(variant.VariantID, session.NegotiationSession.SessionID)
	}

	o.mu.Lock()
	session.State = model.SessionEvolving
	session.ActiveVariantID = variant.VariantID
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	for _, hook := range o.onEvolutionTriggered {
		safeInvokeEvolution(hook, session, variant)
	}
	o.emit("protocol_evolution_proposed", model.SeverityInfo, session, "variant proposed: "+variant.VariantID)

	return variant, nil
}

// EvolveSessionProtocol drives the session's active variant through
// start_testing/start_canary if it is still proposed/testing, then
// reports its current status. Ramping to active is driven by the
// Workflow Runner's evolution.decide step, not here.
func (o *Orchestrator) EvolveSessionProtocol(sessionID, variantID string) (*model.ProtocolVariant, error) {
	o.mu.Lock()
	session, err := o.getSessionLocked(sessionID)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}

	v, err := o.emergence.GetVariant(variantID)
	if err != nil {
		return nil, err
	}

	switch v.Status {
	case model.VariantProposed:
		v, err = o.emergence.StartTesting(variantID)
	case model.VariantTesting:
		v, err = o.emergence.StartCanary(variantID, nil)
	}
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	session.ActiveVariantID = variantID
	session.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	return v, nil
}

// ReportSessionMetrics merges metrics into the session's metrics map
// (workflow-level timings, per spec.md §3 CollaborationSession.metrics).
func (o *Orchestrator) ReportSessionMetrics(sessionID string, metrics map[string]interface{}) (*model.CollaborationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, err := o.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Metrics == nil {
		session.Metrics = make(map[string]interface{})
	}
	for k, v := range metrics {
		session.Metrics[k] = v
	}
	session.UpdatedAt = time.Now().UTC()
	return session.Clone(), nil
}

// SuspendSession, ResumeSession, CloseSession manage the session's
// lifecycle outside the main pipeline.
func (o *Orchestrator) SuspendSession(sessionID string) (*model.CollaborationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, err := o.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	session.State = model.SessionSuspended
	session.UpdatedAt = time.Now().UTC()
	return session.Clone(), nil
}

func (o *Orchestrator) ResumeSession(sessionID string) (*model.CollaborationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, err := o.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != model.SessionSuspended {
		return nil, xerrors.IllegalTransition("orchestrator.ResumeSession", "session", sessionID, string(session.State), "resume")
	}
	session.State = model.SessionActive
	session.UpdatedAt = time.Now().UTC()
	return session.Clone(), nil
}

func (o *Orchestrator) CloseSession(sessionID string) (*model.CollaborationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session, err := o.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session.State = model.SessionCompleted
	session.ClosedAt = &now
	session.UpdatedAt = now
	return session.Clone(), nil
}
