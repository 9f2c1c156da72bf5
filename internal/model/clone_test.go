package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentDescriptorCloneIsIndependent(t *testing.T) {
	a := &AgentDescriptor{
		AgentID:          "agent-a",
		KnowledgeDomains: []string{"payments"},
		ExpertiseLevel:   map[string]float64{"payments": 0.8},
		Goals:            []Goal{{Type: "maximize_throughput"}},
		Terminology:      map[string]string{"invoice": "bill"},
		Assumptions:      []string{"network is reliable"},
		ContextParams:    map[string]interface{}{"region": "us-east"},
		Capabilities:     map[string]interface{}{"tier": "gold"},
	}
	clone := a.Clone()

	clone.KnowledgeDomains[0] = "mutated"
	clone.ExpertiseLevel["payments"] = 0.1
	clone.Goals[0].Type = "mutated"
	clone.Terminology["invoice"] = "mutated"
	clone.Assumptions[0] = "mutated"
	clone.ContextParams["region"] = "mutated"
	clone.Capabilities["tier"] = "mutated"

	assert.Equal(t, "payments", a.KnowledgeDomains[0])
	assert.Equal(t, 0.8, a.ExpertiseLevel["payments"])
	assert.Equal(t, "maximize_throughput", a.Goals[0].Type)
	assert.Equal(t, "bill", a.Terminology["invoice"])
	assert.Equal(t, "network is reliable", a.Assumptions[0])
	assert.Equal(t, "us-east", a.ContextParams["region"])
	assert.Equal(t, "gold", a.Capabilities["tier"])
}

func TestAgentDescriptorCloneOfNilIsNil(t *testing.T) {
	var a *AgentDescriptor
	assert.Nil(t, a.Clone())
}

func TestNegotiationSessionCloneIsIndependent(t *testing.T) {
	score := 0.9
	s := &NegotiationSession{
		SessionID:      "sess-1",
		ProposedParams: DefaultParams(),
		CounterParams:  &NegotiableParams{DataFormat: "json"},
		Rounds:         []NegotiationRound{{ActorID: "a", Action: "propose"}},
		AlignmentScore: &score,
	}
	clone := s.Clone()

	clone.CounterParams.DataFormat = "mutated"
	clone.Rounds[0].Action = "mutated"
	*clone.AlignmentScore = 0.1

	assert.Equal(t, "json", s.CounterParams.DataFormat)
	assert.Equal(t, "propose", s.Rounds[0].Action)
	assert.Equal(t, 0.9, *s.AlignmentScore)
}

func TestNegotiationSessionCloneOfNilIsNil(t *testing.T) {
	var s *NegotiationSession
	assert.Nil(t, s.Clone())
}

func TestCollaborationSessionCloneIsIndependent(t *testing.T) {
	c := &CollaborationSession{
		SessionID:        "collab-1",
		AlignmentResults: map[string]AlignmentResult{"knowledge": {StrategyName: "knowledge"}},
		AlignmentSummary: &AlignmentSummary{Status: StatusAligned},
		Metrics:          map[string]interface{}{"latency_ms": 10},
	}
	clone := c.Clone()

	clone.AlignmentResults["knowledge"] = AlignmentResult{StrategyName: "mutated"}
	clone.AlignmentSummary.Status = StatusMisaligned
	clone.Metrics["latency_ms"] = 999

	assert.Equal(t, "knowledge", c.AlignmentResults["knowledge"].StrategyName)
	assert.Equal(t, StatusAligned, c.AlignmentSummary.Status)
	assert.Equal(t, 10, c.Metrics["latency_ms"])
}

func TestCollaborationSessionCloneOfNilIsNil(t *testing.T) {
	var c *CollaborationSession
	assert.Nil(t, c.Clone())
}

func TestProtocolVariantCloneIsIndependent(t *testing.T) {
	score := 0.5
	v := &ProtocolVariant{
		VariantID:     "var-1",
		Changes:       map[string]interface{}{"timeout_ms": 5000},
		StatusHistory: []VariantStatus{VariantProposed},
		Tags:          []string{"experimental"},
		FeatureFlags:  map[string]bool{"fast_path": true},
		AlignmentScore: &score,
	}
	clone := v.Clone()

	clone.Changes["timeout_ms"] = 1
	clone.StatusHistory[0] = VariantActive
	clone.Tags[0] = "mutated"
	clone.FeatureFlags["fast_path"] = false
	*clone.AlignmentScore = 0.1

	assert.Equal(t, 5000, v.Changes["timeout_ms"])
	assert.Equal(t, VariantProposed, v.StatusHistory[0])
	assert.Equal(t, "experimental", v.Tags[0])
	assert.True(t, v.FeatureFlags["fast_path"])
	assert.Equal(t, 0.5, *v.AlignmentScore)
}

func TestProtocolVariantCloneOfNilIsNil(t *testing.T) {
	var v *ProtocolVariant
	assert.Nil(t, v.Clone())
}

func TestWorkflowExecutionCloneIsIndependent(t *testing.T) {
	w := &WorkflowExecution{
		ExecutionID: "exec-1",
		Steps:       []WorkflowStep{{Name: "first", Status: StepPending}},
		Context:     map[string]interface{}{"key": "value"},
		StartedAt:   time.Now(),
	}
	clone := w.Clone()

	clone.Steps[0].Status = StepCompleted
	clone.Context["key"] = "mutated"

	assert.Equal(t, StepPending, w.Steps[0].Status)
	assert.Equal(t, "value", w.Context["key"])
}

func TestWorkflowExecutionCloneOfNilIsNil(t *testing.T) {
	var w *WorkflowExecution
	assert.Nil(t, w.Clone())
}

func TestNegotiationStateIsTerminal(t *testing.T) {
	terminal := []NegotiationState{StateFinalized, StateFailed, StateTimedOut, StateClosed}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
	nonTerminal := []NegotiationState{StateAwaitingResponse, StateProposalReceived, StateCounterReceived, StateAwaitingFinalization, StateFinalizing}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestNegotiableParamsCloneNilIsHandled(t *testing.T) {
	var p *NegotiableParams
	require.Nil(t, p.Clone())
}
