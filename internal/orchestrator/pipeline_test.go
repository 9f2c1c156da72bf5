package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
)

func testGateConfig() config.GateConfig {
	return config.GateConfig{RequiredAlignedStrategies: 3, MinAlignmentConfidence: 0.6, AutoAcceptThreshold: 0.9}
}

func testNegotiationConfig() config.NegotiationConfig {
	return config.NegotiationConfig{DefaultTimeoutSeconds: 300, MaxRounds: 10, MaxExtensions: 3, RequireValidation: true, TimeoutPolicy: "fail"}
}

func newTestOrchestrator(t *testing.T, gate config.GateConfig) *Orchestrator {
	t.Helper()
	scorer, err := alignment.New(alignment.Weights{Knowledge: 0.2, Goals: 0.2, Terminology: 0.2, Assumptions: 0.2, Context: 0.2})
	require.NoError(t, err)
	neg := negotiation.New(testNegotiationConfig(), nil)
	em := emergence.New(config.EmergenceConfig{FailureThreshold: 5, HalfOpenSuccessThreshold: 3, ResetTimeoutSeconds: 30, RollbackRingCapacity: 200}, nil)
	return New(gate, scorer, neg, em, nil)
}

func registerAlignedPair(t *testing.T, o *Orchestrator) (model.AgentDescriptor, model.AgentDescriptor) {
	t.Helper()
	a := model.AgentDescriptor{
		AgentID:          "agent-a",
		KnowledgeDomains: []string{"payments", "billing"},
		ExpertiseLevel:   map[string]float64{"payments": 0.8},
		Goals:            []model.Goal{{Type: "maximize_throughput", Priority: 1}},
		Terminology:      map[string]string{"invoice": "bill"},
		Assumptions:      []string{"network is reliable"},
		ContextParams:    map[string]interface{}{"region": "us-east"},
	}
	b := a
	b.AgentID = "agent-b"

	_, err := o.RegisterAgent(a)
	require.NoError(t, err)
	_, err = o.RegisterAgent(b)
	require.NoError(t, err)
	return a, b
}

func TestInitiateCollaborationRejectsUnknownAgent(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	_, err := o.InitiateCollaboration("agent-a", "agent-b", nil, nil, nil)
	require.Error(t, err)
}

func TestInitiateCollaborationAlignedPairReachesActive(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)

	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.State)
	require.NotNil(t, session.NegotiationSession)
	assert.Equal(t, model.StateAwaitingResponse, session.NegotiationSession.State)
}

func TestInitiateCollaborationFailsGateOnDivergentAgents(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a := model.AgentDescriptor{AgentID: "agent-a", KnowledgeDomains: []string{"payments"}}
	b := model.AgentDescriptor{AgentID: "agent-b", KnowledgeDomains: []string{"astronomy"}}
	_, err := o.RegisterAgent(a)
	require.NoError(t, err)
	_, err = o.RegisterAgent(b)
	require.NoError(t, err)

	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, session.State)
	assert.NotEmpty(t, session.FailureReason)
}

func TestCheckCollaborationReadinessDoesNotCreateSession(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)

	report, err := o.CheckCollaborationReadiness(a.AgentID, b.AgentID, []string{"payments"})
	require.NoError(t, err)
	assert.True(t, report.Ready)
	assert.Empty(t, o.ListSessions(""))
}

func TestCompleteNegotiationCounterPath(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)

	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, session.NegotiationSession)

	counter := model.DefaultParams()
	counter.TimeoutMS = 10000
	session, err = o.CompleteNegotiation(session.SessionID, b.AgentID, "counter", &counter)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingFinalization, session.NegotiationSession.State)

	session, err = o.AcceptCounterAndFinalize(session.SessionID, a.AgentID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.State)
	assert.Equal(t, model.StateFinalized, session.NegotiationSession.State)
}

func TestCompleteNegotiationRejectPathFailsSession(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)

	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	session, err = o.CompleteNegotiation(session.SessionID, b.AgentID, "reject", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, session.State)
}

func TestCompleteNegotiationCounterWithoutParamsIsRejected(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	_, err = o.CompleteNegotiation(session.SessionID, b.AgentID, "counter", nil)
	require.Error(t, err)
}

func TestProposeAndEvolveProtocolDrivesVariantThroughCanary(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	variant, err := o.ProposeProtocolEvolution(session.SessionID, "lower timeout", map[string]interface{}{"timeout_ms": 5000})
	require.NoError(t, err)
	assert.Equal(t, model.VariantProposed, variant.Status)

	got, err := o.GetSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionEvolving, got.State)
	assert.Equal(t, variant.VariantID, got.ActiveVariantID)

	v, err := o.EvolveSessionProtocol(session.SessionID, variant.VariantID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantTesting, v.Status)

	v, err = o.EvolveSessionProtocol(session.SessionID, variant.VariantID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantCanary, v.Status)
}

func TestSuspendResumeCloseSessionLifecycle(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	session, err = o.SuspendSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionSuspended, session.State)

	session, err = o.ResumeSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.State)

	session, err = o.CloseSession(session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.State)
	assert.NotNil(t, session.ClosedAt)
}

func TestResumeSessionRejectsNonSuspended(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	_, err = o.ResumeSession(session.SessionID)
	require.Error(t, err)
}

func TestReportSessionMetricsMerges(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	session, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	session, err = o.ReportSessionMetrics(session.SessionID, map[string]interface{}{"step_duration_ms": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, session.Metrics["step_duration_ms"])
	assert.Contains(t, session.Metrics, "alignment_duration_ms")
}

func TestListSessionsFiltersByAgent(t *testing.T) {
	o := newTestOrchestrator(t, testGateConfig())
	a, b := registerAlignedPair(t, o)
	_, err := o.InitiateCollaboration(a.AgentID, b.AgentID, []string{"payments"}, nil, nil)
	require.NoError(t, err)

	filtered := o.ListSessions(a.AgentID)
	assert.Len(t, filtered, 1)

	none := o.ListSessions("agent-z")
	assert.Empty(t, none)
}
