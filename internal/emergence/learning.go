package emergence

import (
	"sort"
	"time"

	"github.com/xenocomm/coordinator/internal/model"
)

// recordOutcomeLocked appends a VariantOutcome for learning when a
// variant is rolled back, matching original_source emergence.py's
// _record_outcome (spec.md §4.D "Learning"). Caller must hold e.mu.
func (e *Engine) recordOutcomeLocked(v *model.ProtocolVariant) {
	if v.Status == model.VariantProposed {
		return
	}
	duration := time.Since(v.CreatedAt).Hours()

	e.outcomes = append(e.outcomes, model.VariantOutcome{
		Changes:        cloneMap(v.Changes),
		FinalStatus:    v.Status,
		AvgSuccessRate: averageSuccessRate(v.MetricsHistory, 10),
		DurationHours:  duration,
		RollbackCount:  v.RollbackCount,
		Tags:           append([]string(nil), v.Tags...),
	})
}

// PredictSuccess estimates a success probability for a proposed change
// set by weighting historical outcomes by change similarity, filtered
// to similarity > 0.3, then blending in per-tag historical success
// rates (spec.md §4.D "Learning").
func (e *Engine) PredictSuccess(changes map[string]interface{}, tags []string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.outcomes) == 0 {
		return 0.5
	}

	type weighted struct {
		outcome    model.VariantOutcome
		similarity float64
	}
	var similar []weighted
	for _, o := range e.outcomes {
		sim := changeSimilarity(changes, o.Changes)
		if sim > 0.3 {
			similar = append(similar, weighted{o, sim})
		}
	}
	if len(similar) == 0 {
		return 0.5
	}

	totalWeight := 0.0
	weightedSuccess := 0.0
	for _, w := range similar {
		totalWeight += w.similarity
		if w.outcome.FinalStatus == model.VariantActive {
			weightedSuccess += w.similarity
		}
	}

	prediction := 0.5
	if totalWeight > 0 {
		prediction = weightedSuccess / totalWeight
	}

	if len(tags) > 0 {
		tagRates := e.tagSuccessRatesLocked()
		var adjustments []float64
		for _, t := range tags {
			if rate, ok := tagRates[t]; ok {
				adjustments = append(adjustments, rate)
			}
		}
		if len(adjustments) > 0 {
			prediction = (prediction + mean(adjustments)) / 2
		}
	}

	if prediction > 1.0 {
		prediction = 1.0
	}
	if prediction < 0.0 {
		prediction = 0.0
	}
	return prediction
}

// changeSimilarity mirrors _calculate_change_similarity: the average of
// key-set Jaccard similarity and value-match ratio over shared keys.
func changeSimilarity(a, b map[string]interface{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a)
	for k := range b {
		if _, ok := a[k]; !ok {
			union++
		}
	}

	keySimilarity := 0.0
	if union > 0 {
		keySimilarity = float64(intersection) / float64(union)
	}

	valueMatches := 0
	for k, va := range a {
		if vb, ok := b[k]; ok && va == vb {
			valueMatches++
		}
	}
	valueSimilarity := 0.0
	if intersection > 0 {
		valueSimilarity = float64(valueMatches) / float64(intersection)
	}

	return (keySimilarity + valueSimilarity) / 2
}

func (e *Engine) tagSuccessRatesLocked() map[string]float64 {
	tagOutcomes := make(map[string][]bool)
	for _, o := range e.outcomes {
		success := o.FinalStatus == model.VariantActive
		for _, t := range o.Tags {
			tagOutcomes[t] = append(tagOutcomes[t], success)
		}
	}
	rates := make(map[string]float64, len(tagOutcomes))
	for tag, results := range tagOutcomes {
		if len(results) == 0 {
			continue
		}
		n := 0
		for _, r := range results {
			if r {
				n++
			}
		}
		rates[tag] = float64(n) / float64(len(results))
	}
	return rates
}

// LearningInsights summarizes historical outcomes (spec.md §4.D
// get_learning_insights).
type LearningInsights struct {
	TotalOutcomes         int                `json:"total_outcomes"`
	SuccessRate           float64            `json:"success_rate"`
	AverageDurationHours  float64            `json:"average_duration_hours"`
	TagSuccessRates       map[string]float64 `json:"tag_success_rates"`
	ChangeKeySuccessRates map[string]float64 `json:"change_key_success_rates"`
	HighRiskChanges       []string           `json:"high_risk_changes"`
	SafeChanges           []string           `json:"safe_changes"`
	Message               string             `json:"message,omitempty"`
}

func (e *Engine) GetLearningInsights() LearningInsights {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.outcomes) == 0 {
		return LearningInsights{Message: "No historical data available"}
	}

	successful := 0
	durationSum := 0.0
	changeKeySuccess := make(map[string][]bool)

	for _, o := range e.outcomes {
		success := o.FinalStatus == model.VariantActive
		if success {
			successful++
		}
		durationSum += o.DurationHours
		for k := range o.Changes {
			changeKeySuccess[k] = append(changeKeySuccess[k], success)
		}
	}

	changeRates := make(map[string]float64)
	var highRisk, safe []string
	for key, results := range changeKeySuccess {
		if len(results) < 3 {
			continue
		}
		n := 0
		for _, r := range results {
			if r {
				n++
			}
		}
		rate := float64(n) / float64(len(results))
		changeRates[key] = rate
		if rate < 0.5 {
			highRisk = append(highRisk, key)
		}
		if rate >= 0.8 {
			safe = append(safe, key)
		}
	}
	sort.Strings(highRisk)
	sort.Strings(safe)

	return LearningInsights{
		TotalOutcomes:         len(e.outcomes),
		SuccessRate:           float64(successful) / float64(len(e.outcomes)),
		AverageDurationHours:  durationSum / float64(len(e.outcomes)),
		TagSuccessRates:       e.tagSuccessRatesLocked(),
		ChangeKeySuccessRates: changeRates,
		HighRiskChanges:       highRisk,
		SafeChanges:           safe,
	}
}
