package emergence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/model"
)

func TestPredictSuccessWithNoHistoryReturnsNeutral(t *testing.T) {
	e := New(testEmergenceConfig(), nil)
	p := e.PredictSuccess(map[string]interface{}{"timeout_ms": 5000}, nil)
	assert.Equal(t, 0.5, p)
}

func TestPredictSuccessWeightsTowardsSimilarSuccessfulOutcomes(t *testing.T) {
	e := New(testEmergenceConfig(), nil)

	active := e.ProposeVariant("active change", map[string]interface{}{"timeout_ms": 5000})
	_, err := e.StartTesting(active.VariantID)
	require.NoError(t, err)
	_, err = e.StartCanary(active.VariantID, &[]float64{0.99}[0])
	require.NoError(t, err)
	got, err := e.RampCanary(active.VariantID, true)
	require.NoError(t, err)
	require.Equal(t, model.VariantActive, got.Status)

	e.mu.Lock()
	e.outcomes = nil
	v := e.variants[active.VariantID]
	e.recordOutcomeLocked(v)
	e.mu.Unlock()

	p := e.PredictSuccess(map[string]interface{}{"timeout_ms": 5000}, nil)
	assert.Greater(t, p, 0.5)
}

func TestGetLearningInsightsEmpty(t *testing.T) {
	e := New(testEmergenceConfig(), nil)
	insights := e.GetLearningInsights()
	assert.Equal(t, 0, insights.TotalOutcomes)
	assert.NotEmpty(t, insights.Message)
}

func TestGetLearningInsightsAggregatesOutcomes(t *testing.T) {
	e := New(testEmergenceConfig(), nil)

	for i := 0; i < 3; i++ {
		v := e.ProposeVariant("desc", map[string]interface{}{"shared_key": "x"})
		_, err := e.StartTesting(v.VariantID)
		require.NoError(t, err)
		_, err = e.StartCanary(v.VariantID, nil)
		require.NoError(t, err)
		_, err = e.Rollback(v.VariantID, ReasonManual)
		require.NoError(t, err)
	}

	insights := e.GetLearningInsights()
	assert.Equal(t, 3, insights.TotalOutcomes)
	assert.Equal(t, 0.0, insights.SuccessRate, "none of the outcomes reached active status")
	assert.Contains(t, insights.HighRiskChanges, "shared_key")
}
