package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
	"github.com/xenocomm/coordinator/internal/workflowrunner"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	scorer, err := alignment.New(alignment.Weights{Knowledge: 0.2, Goals: 0.2, Terminology: 0.2, Assumptions: 0.2, Context: 0.2})
	require.NoError(t, err)
	neg := negotiation.New(config.NegotiationConfig{DefaultTimeoutSeconds: 300, MaxRounds: 10, MaxExtensions: 3, RequireValidation: true, TimeoutPolicy: "fail"}, nil)
	em := emergence.New(config.EmergenceConfig{FailureThreshold: 5, HalfOpenSuccessThreshold: 3, ResetTimeoutSeconds: 30, RollbackRingCapacity: 200, DefaultCanarySteps: 10}, nil)
	gate := config.GateConfig{RequiredAlignedStrategies: 3, MinAlignmentConfidence: 0.6, AutoAcceptThreshold: 0.9}
	orch := orchestrator.New(gate, scorer, neg, em, nil)
	runner := workflowrunner.New(nil)
	workflowrunner.RegisterBuiltins(runner, orch, neg, em)
	return NewRegistry(scorer, neg, em, orch, runner)
}

func TestDispatchUnknownOperationReturnsErrorResult(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Dispatch("does_not_exist", nil)
	assert.Contains(t, out, "error")
}

func TestDispatchRegisterAgentRoundTrips(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Dispatch("register_agent", map[string]interface{}{
		"agent": map[string]interface{}{
			"agent_id":          "agent-a",
			"knowledge_domains": []interface{}{"payments"},
		},
	})
	assert.NotContains(t, out, "error")
	assert.Equal(t, "agent-a", out["agent_id"])
}

func TestDispatchRegisterAgentMissingFieldIsValidationError(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Dispatch("register_agent", map[string]interface{}{})
	assert.Contains(t, out, "error")
}

func TestDispatchFullAlignmentCheckRoundTrips(t *testing.T) {
	r := newTestRegistry(t)
	agentArgs := func(id string) map[string]interface{} {
		return map[string]interface{}{"agent_id": id, "knowledge_domains": []interface{}{"payments"}}
	}
	out := r.Dispatch("register_agent", map[string]interface{}{"agent": agentArgs("agent-a")})
	require.NotContains(t, out, "error")
	out = r.Dispatch("register_agent", map[string]interface{}{"agent": agentArgs("agent-b")})
	require.NotContains(t, out, "error")

	out = r.Dispatch("full_alignment_check", map[string]interface{}{
		"agent_a_id": "agent-a", "agent_b_id": "agent-b",
	})
	assert.NotContains(t, out, "error")
	assert.Contains(t, out, "summary")
}

func TestDispatchOperationPanicIsRecoveredAsError(t *testing.T) {
	r := newTestRegistry(t)
	r.register("panics", func(args map[string]interface{}) (interface{}, error) {
		panic("boom")
	})
	out := r.Dispatch("panics", nil)
	assert.Contains(t, out, "error")
}

func TestDispatchNilArgsAreTreatedAsEmptyMap(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Dispatch("list_workflow_types", nil)
	assert.NotContains(t, out, "error")
}

func TestOperationsListsEveryRegisteredName(t *testing.T) {
	r := newTestRegistry(t)
	names := r.Operations()
	assert.Contains(t, names, "register_agent")
	assert.Contains(t, names, "initiate_negotiation")
	assert.Contains(t, names, "propose_protocol_variant")
	assert.Contains(t, names, "initiate_collaboration")
	assert.Contains(t, names, "start_onboarding_workflow")
}

func TestDispatchInitiateNegotiationAndGetStatus(t *testing.T) {
	r := newTestRegistry(t)
	out := r.Dispatch("initiate_negotiation", map[string]interface{}{
		"initiator_id": "agent-a",
		"responder_id": "agent-b",
	})
	require.NotContains(t, out, "error")
	sessionID, ok := out["session_id"].(string)
	require.True(t, ok, "expected session_id in result, got %#v", out)

	status := r.Dispatch("get_negotiation_status", map[string]interface{}{"session_id": sessionID})
	assert.NotContains(t, status, "error")
}
