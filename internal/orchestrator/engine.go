package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// Orchestrator is the sole writer of CollaborationSession records,
// composing the Scorer, Negotiation Engine, and Emergence Engine
// (spec.md §4.E "Concurrency contract with the engines").
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*model.CollaborationSession

	registry *registry

	scorer     *alignment.Scorer
	negotiator *negotiation.Engine
	emergence  *emergence.Engine

	gate config.GateConfig

	onAlignmentComplete []func(*model.CollaborationSession, model.FullAlignmentCheck)
	onNegotiationComplete []func(*model.CollaborationSession, *model.NegotiationSession)
	onSessionReady       []func(*model.CollaborationSession)
	onEvolutionTriggered []func(*model.CollaborationSession, *model.ProtocolVariant)

	publish func(model.FlowEvent)
}

// New constructs an Orchestrator wired to the three engines.
func New(gate config.GateConfig, scorer *alignment.Scorer, negotiator *negotiation.Engine, em *emergence.Engine, publish func(model.FlowEvent)) *Orchestrator {
	if publish == nil {
		publish = func(model.FlowEvent) {}
	}
	return &Orchestrator{
		sessions:   make(map[string]*model.CollaborationSession),
		registry:   newRegistry(),
		scorer:     scorer,
		negotiator: negotiator,
		emergence:  em,
		gate:       gate,
		publish:    publish,
	}
}

func (o *Orchestrator) emit(name string, severity model.EventSeverity, s *model.CollaborationSession, summary string) {
	o.publish(model.FlowEvent{
		FlowType:    "collaboration",
		EventName:   name,
		Timestamp:   time.Now().UTC(),
		Severity:    severity,
		SourceAgent: s.AgentAID,
		TargetAgent: s.AgentBID,
		SessionID:   s.SessionID,
		Summary:     summary,
	})
}

// RegisterAgent, GetAgent, UpdateAgent, DeregisterAgent delegate to the
// registry (spec.md §4.E contract).
func (o *Orchestrator) RegisterAgent(a model.AgentDescriptor) (*model.AgentDescriptor, error) {
	out, err := o.registry.register(a)
	if err == nil {
		o.scorer.ObserveCorpus(a)
	}
	return out, err
}

func (o *Orchestrator) GetAgent(agentID string) (*model.AgentDescriptor, error) {
	return o.registry.get(agentID)
}

func (o *Orchestrator) UpdateAgent(agentID string, mutate func(*model.AgentDescriptor)) (*model.AgentDescriptor, error) {
	return o.registry.update(agentID, mutate)
}

func (o *Orchestrator) DeregisterAgent(agentID string) error {
	return o.registry.deregister(agentID)
}

func (o *Orchestrator) ListAgents() []*model.AgentDescriptor {
	return o.registry.list()
}

func (o *Orchestrator) getSessionLocked(sessionID string) (*model.CollaborationSession, error) {
	s, ok := o.sessions[sessionID]
	if !ok {
		return nil, xerrors.NotFound("orchestrator.GetSession", "session", sessionID)
	}
	return s, nil
}

// GetSession returns a defensive copy of a collaboration session.
func (o *Orchestrator) GetSession(sessionID string) (*model.CollaborationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, err := o.getSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// ListSessions returns defensive copies of every session, optionally
// filtered to those involving agentID.
func (o *Orchestrator) ListSessions(agentID string) []*model.CollaborationSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*model.CollaborationSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		if agentID != "" && s.AgentAID != agentID && s.AgentBID != agentID {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

// OnAlignmentComplete, OnNegotiationComplete, OnSessionReady,
// OnEvolutionTriggered register integration hooks (spec.md §4.E).
func (o *Orchestrator) OnAlignmentComplete(hook func(*model.CollaborationSession, model.FullAlignmentCheck)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onAlignmentComplete = append(o.onAlignmentComplete, hook)
}

func (o *Orchestrator) OnNegotiationComplete(hook func(*model.CollaborationSession, *model.NegotiationSession)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onNegotiationComplete = append(o.onNegotiationComplete, hook)
}

func (o *Orchestrator) OnSessionReady(hook func(*model.CollaborationSession)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSessionReady = append(o.onSessionReady, hook)
}

func (o *Orchestrator) OnEvolutionTriggered(hook func(*model.CollaborationSession, *model.ProtocolVariant)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEvolutionTriggered = append(o.onEvolutionTriggered, hook)
}

// safeInvoke* swallow panics from hooks so they cannot affect session
// state (spec.md §4.E "Hook exceptions are swallowed").
func safeInvokeAlignment(hook func(*model.CollaborationSession, model.FullAlignmentCheck), s *model.CollaborationSession, check model.FullAlignmentCheck) {
	defer func() { _ = recover() }()
	hook(s, check)
}

func safeInvokeNegotiation(hook func(*model.CollaborationSession, *model.NegotiationSession), s *model.CollaborationSession, n *model.NegotiationSession) {
	defer func() { _ = recover() }()
	hook(s, n)
}

func safeInvokeReady(hook func(*model.CollaborationSession), s *model.CollaborationSession) {
	defer func() { _ = recover() }()
	hook(s)
}

func safeInvokeEvolution(hook func(*model.CollaborationSession, *model.ProtocolVariant), s *model.CollaborationSession, v *model.ProtocolVariant) {
	defer func() { _ = recover() }()
	hook(s, v)
}

// newSessionID is split out so it reads the same way across files.
func newSessionID() string { return uuid.NewString() }
