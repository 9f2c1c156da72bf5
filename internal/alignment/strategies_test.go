package alignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/model"
)

func TestVerifyGoalsUnknownWhenEitherAgentHasNoGoals(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a"}
	b := model.AgentDescriptor{AgentID: "b", Goals: []model.Goal{{Type: "minimize_cost"}}}

	result := s.VerifyGoals(a, b)
	assert.Equal(t, model.StatusUnknown, result.Status)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestVerifyGoalsConflictingGoalsAreMisaligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)
	s.AddGoalCompatibility("maximize_throughput", "minimize_cost", 0.1)

	a := model.AgentDescriptor{AgentID: "a", Goals: []model.Goal{{Type: "maximize_throughput"}}}
	b := model.AgentDescriptor{AgentID: "b", Goals: []model.Goal{{Type: "minimize_cost"}}}

	result := s.VerifyGoals(a, b)
	assert.Equal(t, model.StatusMisaligned, result.Status)
	assert.NotEmpty(t, result.Recommendations)
}

func TestVerifyGoalsCompatibleGoalsAreAligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)
	s.AddGoalCompatibility("maximize_throughput", "maximize_uptime", 0.95)

	a := model.AgentDescriptor{AgentID: "a", Goals: []model.Goal{{Type: "maximize_throughput"}}}
	b := model.AgentDescriptor{AgentID: "b", Goals: []model.Goal{{Type: "maximize_uptime"}}}

	result := s.VerifyGoals(a, b)
	assert.Equal(t, model.StatusAligned, result.Status)
}

func TestAlignTerminologyFlagsConflictingDefinitions(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", Terminology: map[string]string{"invoice": "a bill sent to a customer"}}
	b := model.AgentDescriptor{AgentID: "b", Terminology: map[string]string{"invoice": "a payment received from a vendor"}}

	result := s.AlignTerminology(a, b)
	details := result.Details["conflicts"].([]map[string]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, "invoice", details[0]["term"])
}

func TestAlignTerminologyIdenticalDefinitionsAreAligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", Terminology: map[string]string{"invoice": "bill"}}
	b := model.AgentDescriptor{AgentID: "b", Terminology: map[string]string{"invoice": "bill"}}

	result := s.AlignTerminology(a, b)
	assert.Equal(t, model.StatusAligned, result.Status)
}

func TestVerifyAssumptionsSharedAssumptionsAreAligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", Assumptions: []string{"network is reliable"}}
	b := model.AgentDescriptor{AgentID: "b", Assumptions: []string{"network is reliable"}}

	result := s.VerifyAssumptions(a, b)
	assert.Equal(t, model.StatusAligned, result.Status)
}

func TestVerifyAssumptionsNegationConflictIsMisaligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", Assumptions: []string{"the network is reliable"}}
	b := model.AgentDescriptor{AgentID: "b", Assumptions: []string{"the network is not reliable"}}

	result := s.VerifyAssumptions(a, b)
	assert.Equal(t, model.StatusMisaligned, result.Status)
	details := result.Details["conflicts"].([]map[string]interface{})
	assert.NotEmpty(t, details)
}

func TestSyncContextMissingRequiredParamIsMisaligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", ContextParams: map[string]interface{}{"region": "us-east"}}
	b := model.AgentDescriptor{AgentID: "b", ContextParams: map[string]interface{}{}}

	result := s.SyncContext(a, b, []string{"region"})
	assert.Equal(t, model.StatusMisaligned, result.Status)
	assert.Contains(t, result.Details["required_missing"], "region")
}

func TestSyncContextMismatchedValueIsPartial(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", ContextParams: map[string]interface{}{"region": "us-east"}}
	b := model.AgentDescriptor{AgentID: "b", ContextParams: map[string]interface{}{"region": "eu-west"}}

	result := s.SyncContext(a, b, nil)
	assert.Equal(t, model.StatusPartial, result.Status)
	mismatches := result.Details["mismatched_params"].([]map[string]interface{})
	require.Len(t, mismatches, 1)
	assert.Equal(t, "region", mismatches[0]["param"])
}

func TestSyncContextFullyMatchedParamsAreAligned(t *testing.T) {
	s, err := New(equalWeights())
	require.NoError(t, err)

	a := model.AgentDescriptor{AgentID: "a", ContextParams: map[string]interface{}{"region": "us-east"}}
	b := model.AgentDescriptor{AgentID: "b", ContextParams: map[string]interface{}{"region": "us-east"}}

	result := s.SyncContext(a, b, nil)
	assert.Equal(t, model.StatusAligned, result.Status)
}
