// Package orchestrator binds the Alignment Scorer, Negotiation State
// Machine, and Emergence Engine into CollaborationSessions, holding the
// agent registry. Structural shape (mutex-guarded maps, hook-swallowing
// convention) is grounded on the teacher's
// pkg/orchestration/orchestrator.go StandardOrchestrator (spec.md §4.E).
package orchestrator

import (
	"sync"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// registry owns AgentDescriptors, guarded by its own mutex per spec.md
// §5 "Shared state" (the Orchestrator owns agent_registry and sessions
// under separate locks from the engines).
type registry struct {
	mu     sync.RWMutex
	agents map[string]*model.AgentDescriptor
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]*model.AgentDescriptor)}
}

func (r *registry) register(a model.AgentDescriptor) (*model.AgentDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.AgentID]; exists {
		return nil, xerrors.New("orchestrator.RegisterAgent", "agent", xerrors.ErrAlreadyExists, a.AgentID, "agent already registered")
	}
	clone := a.Clone()
	r.agents[a.AgentID] = clone
	return clone.Clone(), nil
}

func (r *registry) get(agentID string) (*model.AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, xerrors.NotFound("orchestrator.GetAgent", "agent", agentID)
	}
	return a.Clone(), nil
}

func (r *registry) update(agentID string, mutate func(*model.AgentDescriptor)) (*model.AgentDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, xerrors.NotFound("orchestrator.UpdateAgent", "agent", agentID)
	}
	mutate(a)
	return a.Clone(), nil
}

func (r *registry) deregister(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; !ok {
		return xerrors.NotFound("orchestrator.DeregisterAgent", "agent", agentID)
	}
	delete(r.agents, agentID)
	return nil
}

func (r *registry) list() []*model.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.AgentDescriptor, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Clone())
	}
	return out
}
