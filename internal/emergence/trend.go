package emergence

import (
	"math"

	"github.com/xenocomm/coordinator/internal/model"
)

// MetricTrend is the closed set of trend classifications (spec.md §4.D
// "Trend analysis").
type MetricTrend string

const (
	TrendImproving        MetricTrend = "improving"
	TrendStable           MetricTrend = "stable"
	TrendDegrading        MetricTrend = "degrading"
	TrendVolatile         MetricTrend = "volatile"
	TrendInsufficientData MetricTrend = "insufficient_data"
)

func metricValue(m model.PerformanceMetrics, metric string) float64 {
	switch metric {
	case "latency_ms":
		return m.LatencyMS
	case "throughput":
		return m.Throughput
	default:
		return m.SuccessRate
	}
}

// AnalyzeTrend classifies the recent trend of metric for a variant via
// linear regression slope normalized by mean, with a coefficient-of-
// variation volatility check (spec.md §4.D "Trend analysis").
func (e *Engine) AnalyzeTrend(variantID, metric string) (MetricTrend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return "", err
	}
	return e.analyzeTrendLocked(v, metric), nil
}

func (e *Engine) analyzeTrendLocked(v *model.ProtocolVariant, metric string) MetricTrend {
	window := e.cfg.TrendWindowSize
	if window <= 0 {
		window = 5
	}
	if len(v.MetricsHistory) < window {
		return TrendInsufficientData
	}

	recent := lastN(v.MetricsHistory, window)
	values := make([]float64, len(recent))
	for i, m := range recent {
		values[i] = metricValue(m, metric)
	}

	n := len(values)
	if n < 2 {
		return TrendInsufficientData
	}

	xMean := float64(n-1) / 2
	yMean := 0.0
	for _, y := range values {
		yMean += y
	}
	yMean /= float64(n)

	var numerator, denominator float64
	for i, y := range values {
		numerator += (float64(i) - xMean) * (y - yMean)
		denominator += (float64(i) - xMean) * (float64(i) - xMean)
	}

	if denominator == 0 {
		return TrendStable
	}

	slope := numerator / denominator
	divisor := yMean
	if divisor == 0 {
		divisor = 1
	}
	normalizedSlope := slope / divisor

	cv := coefficientOfVariation(values, yMean)

	inverted := metric == "latency_ms"

	switch {
	case cv > 0.3:
		return TrendVolatile
	case normalizedSlope > 0.05:
		if inverted {
			return TrendDegrading
		}
		return TrendImproving
	case normalizedSlope < -0.05:
		if inverted {
			return TrendImproving
		}
		return TrendDegrading
	default:
		return TrendStable
	}
}

func coefficientOfVariation(values []float64, mean float64) float64 {
	if len(values) < 2 || mean == 0 {
		return 0
	}
	variance := sampleVariance(values, mean)
	return math.Sqrt(variance) / mean
}

// sampleVariance computes the unbiased (n-1) sample variance, matching
// Python's statistics.variance.
func sampleVariance(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values)-1)
}

func sampleStdDev(values []float64, mean float64) float64 {
	return math.Sqrt(sampleVariance(values, mean))
}

// DetectAnomaly reports whether the latest metric sample is a Z-score
// outlier (|Z| > 3) against the prior baseline, requiring at least 10
// prior samples (spec.md §4.D "Anomaly detection").
func (e *Engine) DetectAnomaly(variantID, metric string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.getLocked(variantID)
	if err != nil {
		return false, err
	}

	if len(v.MetricsHistory)-1 < 10 {
		return false, nil
	}

	baseline := v.MetricsHistory[:len(v.MetricsHistory)-1]
	latest := v.MetricsHistory[len(v.MetricsHistory)-1]

	values := make([]float64, len(baseline))
	mean := 0.0
	for i, m := range baseline {
		values[i] = metricValue(m, metric)
		mean += values[i]
	}
	mean /= float64(len(values))

	std := sampleStdDev(values, mean)
	if std == 0 {
		return false, nil
	}

	latestValue := metricValue(latest, metric)
	z := math.Abs(latestValue-mean) / std
	return z > 3, nil
}
