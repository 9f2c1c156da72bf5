package emergence

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// confidenceZThresholds maps a configured significance level to its
// two-tailed Z threshold (spec.md §4.D "A/B testing").
var confidenceZThresholds = map[float64]float64{
	0.90: 1.645,
	0.95: 1.96,
	0.99: 2.576,
}

// StartExperiment begins an A/B test between two existing variants.
func (e *Engine) StartExperiment(controlID, treatmentID string, trafficSplit float64) (*model.ABTestExperiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.getLocked(controlID); err != nil {
		return nil, err
	}
	if _, err := e.getLocked(treatmentID); err != nil {
		return nil, err
	}

	exp := &model.ABTestExperiment{
		ExperimentID:       uuid.NewString(),
		ControlVariantID:   controlID,
		TreatmentVariantID: treatmentID,
		StartedAt:          time.Now().UTC(),
		TrafficSplit:       trafficSplit,
		Status:             model.ExperimentRunning,
	}
	e.experiments[exp.ExperimentID] = exp
	e.emit("start_experiment", model.SeverityInfo, "", "A/B experiment started: "+exp.ExperimentID)
	return cloneExperiment(exp), nil
}

func cloneExperiment(exp *model.ABTestExperiment) *model.ABTestExperiment {
	clone := *exp
	clone.ControlMetrics = append([]model.PerformanceMetrics(nil), exp.ControlMetrics...)
	clone.TreatmentMetrics = append([]model.PerformanceMetrics(nil), exp.TreatmentMetrics...)
	return &clone
}

func (e *Engine) getExperimentLocked(experimentID string) (*model.ABTestExperiment, error) {
	exp, ok := e.experiments[experimentID]
	if !ok {
		return nil, xerrors.NotFound("emergence.getExperiment", "experiment", experimentID)
	}
	return exp, nil
}

// RecordExperimentMetrics appends a metrics sample to the appropriate
// arm and checks for statistical significance.
func (e *Engine) RecordExperimentMetrics(experimentID, variantID string, metrics model.PerformanceMetrics) (*model.ABTestExperiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.getExperimentLocked(experimentID)
	if err != nil {
		return nil, err
	}
	if metrics.Timestamp.IsZero() {
		metrics.Timestamp = time.Now().UTC()
	}

	switch variantID {
	case exp.ControlVariantID:
		exp.ControlMetrics = append(exp.ControlMetrics, metrics)
	case exp.TreatmentVariantID:
		exp.TreatmentMetrics = append(exp.TreatmentMetrics, metrics)
	default:
		return nil, xerrors.Validation("emergence.RecordExperimentMetrics", "variant is not part of experiment "+experimentID)
	}

	e.checkExperimentSignificanceLocked(exp)
	return cloneExperiment(exp), nil
}

// checkExperimentSignificanceLocked implements _check_experiment_significance:
// pooled-SE Z-test on mean success rates once both arms reach
// min_sample_size (spec.md §4.D "A/B testing"). Caller must hold e.mu.
func (e *Engine) checkExperimentSignificanceLocked(exp *model.ABTestExperiment) {
	if len(exp.ControlMetrics) < e.cfg.MinSampleSize || len(exp.TreatmentMetrics) < e.cfg.MinSampleSize {
		return
	}

	controlRates := successRates(exp.ControlMetrics)
	treatmentRates := successRates(exp.TreatmentMetrics)

	controlMean := mean(controlRates)
	treatmentMean := mean(treatmentRates)

	controlVar := sampleVariance(controlRates, controlMean)
	treatmentVar := sampleVariance(treatmentRates, treatmentMean)

	se := math.Sqrt(controlVar/float64(len(controlRates)) + treatmentVar/float64(len(treatmentRates)))
	diff := math.Abs(treatmentMean - controlMean)
	var z float64
	if se == 0 {
		if diff == 0 {
			return
		}
		// Both arms are constant and their means differ.
		z = math.Inf(1)
	} else {
		z = diff / se
	}

	threshold, ok := confidenceZThresholds[e.cfg.ABSignificanceLevel]
	if !ok {
		threshold = 1.96
	}

	if z >= threshold {
		exp.Status = model.ExperimentCompleted
		now := time.Now().UTC()
		exp.EndedAt = &now
		exp.Confidence = math.Min(0.99, 1-1/(1+z))
		if treatmentMean > controlMean {
			exp.Winner = exp.TreatmentVariantID
		} else {
			exp.Winner = exp.ControlVariantID
		}
	}
}

func successRates(history []model.PerformanceMetrics) []float64 {
	out := make([]float64, len(history))
	for i, m := range history {
		out[i] = m.SuccessRate
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ExperimentStatusReport adds derived success rates and improvement to
// the raw experiment (spec.md §4.D get_experiment_status).
type ExperimentStatusReport struct {
	*model.ABTestExperiment
	ControlSuccessRate   float64 `json:"control_success_rate"`
	TreatmentSuccessRate float64 `json:"treatment_success_rate"`
	Improvement          float64 `json:"improvement"`
}

func (e *Engine) GetExperimentStatus(experimentID string) (ExperimentStatusReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.getExperimentLocked(experimentID)
	if err != nil {
		return ExperimentStatusReport{}, err
	}

	controlSuccess := mean(successRates(exp.ControlMetrics))
	treatmentSuccess := mean(successRates(exp.TreatmentMetrics))

	improvement := 0.0
	if controlSuccess > 0 {
		improvement = (treatmentSuccess - controlSuccess) / controlSuccess
	}

	return ExperimentStatusReport{
		ABTestExperiment:     cloneExperiment(exp),
		ControlSuccessRate:   controlSuccess,
		TreatmentSuccessRate: treatmentSuccess,
		Improvement:          improvement,
	}, nil
}

// EndExperiment manually terminates an experiment; omitting winner
// marks it inconclusive.
func (e *Engine) EndExperiment(experimentID, winner string) (*model.ABTestExperiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.getExperimentLocked(experimentID)
	if err != nil {
		return nil, err
	}

	if winner != "" {
		exp.Status = model.ExperimentCompleted
		exp.Winner = winner
	} else {
		exp.Status = model.ExperimentInconclusive
	}
	now := time.Now().UTC()
	exp.EndedAt = &now

	return cloneExperiment(exp), nil
}
