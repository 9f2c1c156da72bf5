package workflowrunner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

func newWiredRunner(t *testing.T) (*Runner, *orchestrator.Orchestrator, *negotiation.Engine, *emergence.Engine) {
	t.Helper()
	scorer, err := alignment.New(alignment.Weights{Knowledge: 0.2, Goals: 0.2, Terminology: 0.2, Assumptions: 0.2, Context: 0.2})
	require.NoError(t, err)
	neg := negotiation.New(config.NegotiationConfig{DefaultTimeoutSeconds: 300, MaxRounds: 10, MaxExtensions: 3, RequireValidation: true, TimeoutPolicy: "fail"}, nil)
	em := emergence.New(config.EmergenceConfig{FailureThreshold: 5, HalfOpenSuccessThreshold: 3, ResetTimeoutSeconds: 30, RollbackRingCapacity: 200, DefaultCanarySteps: 10}, nil)
	gate := config.GateConfig{RequiredAlignedStrategies: 3, MinAlignmentConfidence: 0.6, AutoAcceptThreshold: 0.9}
	orch := orchestrator.New(gate, scorer, neg, em, nil)

	r := New(nil)
	RegisterBuiltins(r, orch, neg, em)
	return r, orch, neg, em
}

func registerPair(t *testing.T, orch *orchestrator.Orchestrator) (model.AgentDescriptor, model.AgentDescriptor) {
	t.Helper()
	a := model.AgentDescriptor{
		AgentID:          "agent-a",
		KnowledgeDomains: []string{"payments", "billing"},
		Goals:            []model.Goal{{Type: "maximize_throughput", Priority: 1}},
		Terminology:      map[string]string{"invoice": "bill"},
		Assumptions:      []string{"network is reliable"},
		ContextParams:    map[string]interface{}{"region": "us-east"},
	}
	b := a
	b.AgentID = "agent-b"
	_, err := orch.RegisterAgent(a)
	require.NoError(t, err)
	_, err = orch.RegisterAgent(b)
	require.NoError(t, err)
	return a, b
}

func TestOnboardingWorkflowCompletesForAlignedAgents(t *testing.T) {
	r, orch, _, _ := newWiredRunner(t)
	a, b := registerPair(t, orch)

	exec, err := r.Start(WorkflowOnboarding, map[string]interface{}{"agent_a_id": a.AgentID, "agent_b_id": b.AgentID})
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCompleted, final.Status)
	for _, s := range final.Steps {
		assert.Equal(t, model.StepCompleted, s.Status, "step %s should have completed", s.Name)
	}
}

func TestOnboardingWorkflowFailsForUnknownAgent(t *testing.T) {
	r, _, _, _ := newWiredRunner(t)

	exec, err := r.Start(WorkflowOnboarding, map[string]interface{}{"agent_a_id": "ghost", "agent_b_id": "also-ghost"})
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowFailed, final.Status)
	assert.Equal(t, "register", final.Steps[0].Name)
	assert.Equal(t, model.StepFailed, final.Steps[0].Status)
}

func TestProtocolEvolutionWorkflowPromotesHealthyVariant(t *testing.T) {
	r, _, _, em := newWiredRunner(t)

	exec, err := r.Start(WorkflowProtocolEvolution, map[string]interface{}{
		"description": "lower timeout", "changes": map[string]interface{}{"timeout_ms": 5000},
	})
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCompleted, final.Status)

	decideStep := final.Steps[len(final.Steps)-1]
	assert.Equal(t, "decide", decideStep.Name)
	assert.Equal(t, model.StepCompleted, decideStep.Status)
	assert.Equal(t, "active", decideStep.Result["outcome"])

	list := em.ListVariants(nil)
	require.Len(t, list, 1)
	assert.Equal(t, model.VariantActive, list[0].Status)
}

func TestProtocolEvolutionWorkflowRecordsRollbackOutcome(t *testing.T) {
	r, _, _, em := newWiredRunner(t)

	exec, err := r.Start(WorkflowProtocolEvolution, map[string]interface{}{
		"description": "risky change",
	})
	require.NoError(t, err)

	for i := 0; i < 4; i++ { // propose, test, canary, monitor
		exec, err = r.ExecuteStep(exec.ExecutionID)
		require.NoError(t, err)
		require.Equal(t, model.WorkflowRunning, exec.Status)
	}

	variantID, _ := exec.Context["variant_id"].(string)
	require.NotEmpty(t, variantID)
	for i := 0; i < 5; i++ { // trip the circuit breaker so decide observes should_rollback
		_, err = em.TrackPerformance(variantID, model.PerformanceMetrics{
			SuccessRate: 0.10, LatencyMS: 100, TotalRequests: 100, ErrorCount: 50, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	final, err := r.ExecuteStep(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCompleted, final.Status, "a rollback still finalizes the execution, without deadlocking on r.mu")
	assert.Equal(t, variantID, final.Context["rolled_back_variant_id"])

	decideStep := final.Steps[len(final.Steps)-1]
	assert.Equal(t, "decide", decideStep.Name)
	assert.Equal(t, model.StepCompleted, decideStep.Status)
	assert.Equal(t, "rolled_back", decideStep.Result["outcome"])

	v, err := em.GetVariant(variantID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantRolledBack, v.Status)
}

func TestErrorRecoveryWorkflowTimeoutPath(t *testing.T) {
	r, _, neg, _ := newWiredRunner(t)

	_, err := neg.InitiateSession("agent-a", "agent-b", model.DefaultParams(), "")
	require.NoError(t, err)

	exec, err := r.Start(WorkflowErrorRecovery, map[string]interface{}{"error_type": "timeout"})
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCompleted, final.Status)
	recoverStep := final.Steps[2]
	assert.Equal(t, "recover", recoverStep.Name)
	assert.Equal(t, 0, recoverStep.Result["sessions_timed_out"], "default timeout has not elapsed yet")
}

func TestErrorRecoveryWorkflowRejectsMissingErrorType(t *testing.T) {
	r, _, _, _ := newWiredRunner(t)

	exec, err := r.Start(WorkflowErrorRecovery, nil)
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowFailed, final.Status)
	assert.Equal(t, "detect", final.Steps[0].Name)
}

func TestConflictResolutionWorkflowNegotiatesCounter(t *testing.T) {
	r, _, neg, _ := newWiredRunner(t)

	session, err := neg.InitiateSession("agent-a", "agent-b", model.DefaultParams(), "")
	require.NoError(t, err)
	_, err = neg.ReceiveProposal(session.SessionID, "agent-b")
	require.NoError(t, err)
	counter := model.DefaultParams()
	counter.DataFormat = "protobuf"
	_, err = neg.RespondCounter(session.SessionID, "agent-b", counter)
	require.NoError(t, err)

	exec, err := r.Start(WorkflowConflictResolution, map[string]interface{}{"session_id": session.SessionID})
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowCompleted, final.Status)

	negotiateStep := final.Steps[3]
	assert.Equal(t, "negotiate", negotiateStep.Name)
	assert.Equal(t, "json", negotiateStep.Result["data_format"])
}

func TestConflictResolutionWorkflowRequiresSessionID(t *testing.T) {
	r, _, _, _ := newWiredRunner(t)
	exec, err := r.Start(WorkflowConflictResolution, nil)
	require.NoError(t, err)

	final, err := r.ExecuteAll(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkflowFailed, final.Status)
	assert.Equal(t, "identify", final.Steps[0].Name)
}
