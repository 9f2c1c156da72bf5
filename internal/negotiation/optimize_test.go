package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/model"
)

func TestSuggestOptimalParamsPerformancePrefersFastestCommonFormat(t *testing.T) {
	capsA := map[string]interface{}{"supports_protobuf": true, "supports_msgpack": true}
	capsB := map[string]interface{}{"supports_msgpack": true, "supports_json": true}

	got := SuggestOptimalParams(capsA, capsB, PriorityPerformance, model.DefaultParams())
	assert.Equal(t, "msgpack", got.DataFormat)
}

func TestSuggestOptimalParamsFallsBackToCompatibilityForUnknownPriority(t *testing.T) {
	capsA := map[string]interface{}{"supports_json": true}
	capsB := map[string]interface{}{"supports_json": true}

	got := SuggestOptimalParams(capsA, capsB, Priority("bogus"), model.DefaultParams())
	assert.Equal(t, "json", got.DataFormat)
}

func TestSuggestOptimalParamsTakesMinOfSharedLimits(t *testing.T) {
	capsA := map[string]interface{}{"max_message_size": 1000, "batch_size": 50}
	capsB := map[string]interface{}{"max_message_size": 500, "batch_size": 20}

	got := SuggestOptimalParams(capsA, capsB, PriorityCompatibility, model.DefaultParams())
	assert.Equal(t, 500, got.MaxMessageSize)
	assert.Equal(t, 20, got.BatchSize)
}

func TestSuggestOptimalParamsStreamingRequiresBothSides(t *testing.T) {
	base := model.DefaultParams()
	got := SuggestOptimalParams(
		map[string]interface{}{"streaming": true},
		map[string]interface{}{"streaming": false},
		PriorityCompatibility, base,
	)
	assert.False(t, got.Streaming)
}

func TestAutoResolveRejectsSessionWithoutCounter(t *testing.T) {
	e := New(testConfig(), nil)
	s, err := e.InitiateSession("agent-a", "agent-b", model.DefaultParams(), "")
	require.NoError(t, err)

	_, err = e.AutoResolve(s.SessionID)
	assert.Error(t, err)
}

func TestAutoResolveMergesAndRecordsContests(t *testing.T) {
	e := New(testConfig(), nil)
	s, err := e.InitiateSession("agent-a", "agent-b", model.DefaultParams(), "")
	require.NoError(t, err)
	_, err = e.ReceiveProposal(s.SessionID, "agent-b")
	require.NoError(t, err)

	counter := model.DefaultParams()
	counter.DataFormat = "protobuf"
	_, err = e.RespondCounter(s.SessionID, "agent-b", counter)
	require.NoError(t, err)

	merged, err := e.AutoResolve(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultParams().DataFormat, merged.DataFormat)

	_, err = e.RespondReject(s.SessionID, "agent-b", "")
	require.NoError(t, err)

	analytics := e.GetAnalytics("")
	assert.Contains(t, analytics.AllContestedParams, "data_format")
}
