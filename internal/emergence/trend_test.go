package emergence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenocomm/coordinator/internal/model"
)

func TestAnalyzeTrendInsufficientData(t *testing.T) {
	e := New(testEmergenceConfig(), nil)
	v := e.ProposeVariant("desc", nil)

	trend, err := e.AnalyzeTrend(v.VariantID, "success_rate")
	require.NoError(t, err)
	assert.Equal(t, TrendInsufficientData, trend)
}

func TestAnalyzeTrendDetectsDegrading(t *testing.T) {
	cfg := testEmergenceConfig()
	cfg.FailureThreshold = 1000 // keep the circuit closed; we only want TrackPerformance appending history
	e := New(cfg, nil)
	v := e.ProposeVariant("desc", nil)

	rates := []float64{0.99, 0.95, 0.90, 0.85, 0.80}
	for _, r := range rates {
		_, err := e.TrackPerformance(v.VariantID, model.PerformanceMetrics{
			SuccessRate: r, LatencyMS: 100, TotalRequests: 100, ErrorCount: 1, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	trend, err := e.AnalyzeTrend(v.VariantID, "success_rate")
	require.NoError(t, err)
	assert.Equal(t, TrendDegrading, trend)
}

func TestAnalyzeTrendDetectsImproving(t *testing.T) {
	cfg := testEmergenceConfig()
	cfg.FailureThreshold = 1000
	e := New(cfg, nil)
	v := e.ProposeVariant("desc", nil)

	rates := []float64{0.80, 0.85, 0.90, 0.95, 0.99}
	for _, r := range rates {
		_, err := e.TrackPerformance(v.VariantID, model.PerformanceMetrics{
			SuccessRate: r, LatencyMS: 100, TotalRequests: 100, ErrorCount: 1, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	trend, err := e.AnalyzeTrend(v.VariantID, "success_rate")
	require.NoError(t, err)
	assert.Equal(t, TrendImproving, trend)
}

func TestAnalyzeTrendUnknownVariant(t *testing.T) {
	e := New(testEmergenceConfig(), nil)
	_, err := e.AnalyzeTrend("does-not-exist", "success_rate")
	require.Error(t, err)
}

func TestDetectAnomalyRequiresTenSamples(t *testing.T) {
	e := New(testEmergenceConfig(), nil)
	v := e.ProposeVariant("desc", nil)

	for i := 0; i < 5; i++ {
		_, err := e.TrackPerformance(v.VariantID, model.PerformanceMetrics{
			SuccessRate: 0.98, LatencyMS: 100, TotalRequests: 100, ErrorCount: 0, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	anomaly, err := e.DetectAnomaly(v.VariantID, "success_rate")
	require.NoError(t, err)
	assert.False(t, anomaly, "fewer than 10 samples never flags an anomaly")
}

func TestDetectAnomalyFlagsOutlier(t *testing.T) {
	cfg := testEmergenceConfig()
	cfg.FailureThreshold = 1000
	e := New(cfg, nil)
	v := e.ProposeVariant("desc", nil)

	for i := 0; i < 10; i++ {
		_, err := e.TrackPerformance(v.VariantID, model.PerformanceMetrics{
			SuccessRate: 0.98, LatencyMS: 100, TotalRequests: 100, ErrorCount: 0, Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	// a wild outlier as the 11th sample
	_, err := e.TrackPerformance(v.VariantID, model.PerformanceMetrics{
		SuccessRate: 0.01, LatencyMS: 100, TotalRequests: 100, ErrorCount: 90, Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	anomaly, err := e.DetectAnomaly(v.VariantID, "success_rate")
	require.NoError(t, err)
	assert.True(t, anomaly)
}
