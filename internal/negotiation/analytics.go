package negotiation

import (
	"sort"
	"time"

	"github.com/xenocomm/coordinator/internal/model"
)

// Analytics summarizes the completed-sessions archive (spec.md §4.C
// "Analytics").
type Analytics struct {
	Total               int                `json:"total"`
	Successful          int                `json:"successful"`
	Failed              int                `json:"failed"`
	TimedOut            int                `json:"timed_out"`
	AverageRounds       float64            `json:"average_rounds"`
	AverageDurationMS   float64            `json:"average_duration_ms"`
	SuccessRate         float64            `json:"success_rate"`
	TopContestedParams  []ContestedParam   `json:"top_contested_params"`
	AllContestedParams  map[string]int     `json:"all_contested_params,omitempty"`
}

// ContestedParam is one entry in the top-5 contested-parameter ranking.
type ContestedParam struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// GetAnalytics computes aggregate statistics over archived sessions,
// optionally filtered to those involving agentID. When agentID is empty,
// AllContestedParams is also populated (supplemented feature 3).
func (e *Engine) GetAnalytics(agentID string) Analytics {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total, successful, failed, timedOut int
	var roundSum float64
	var durationSum time.Duration

	for _, s := range e.completed {
		if agentID != "" && s.InitiatorID != agentID && s.ResponderID != agentID {
			continue
		}
		total++
		switch s.State {
		case model.StateFinalized:
			successful++
		case model.StateFailed:
			failed++
		case model.StateTimedOut:
			timedOut++
		}
		roundSum += float64(len(s.Rounds))
		durationSum += s.UpdatedAt.Sub(s.CreatedAt)
	}

	avgRounds, avgDuration, successRate := 0.0, 0.0, 0.0
	if total > 0 {
		avgRounds = roundSum / float64(total)
		avgDuration = float64(durationSum.Milliseconds()) / float64(total)
		successRate = float64(successful) / float64(total)
	}

	type kv struct {
		name  string
		count int
	}
	contests := make([]kv, 0, len(e.contests))
	for k, v := range e.contests {
		contests = append(contests, kv{k, v})
	}
	sort.Slice(contests, func(i, j int) bool {
		if contests[i].count != contests[j].count {
			return contests[i].count > contests[j].count
		}
		return contests[i].name < contests[j].name
	})

	top := make([]ContestedParam, 0, 5)
	for i, c := range contests {
		if i >= 5 {
			break
		}
		top = append(top, ContestedParam{Name: c.name, Count: c.count})
	}

	var all map[string]int
	if agentID == "" {
		all = make(map[string]int, len(e.contests))
		for k, v := range e.contests {
			all[k] = v
		}
	}

	return Analytics{
		Total: total, Successful: successful, Failed: failed, TimedOut: timedOut,
		AverageRounds: avgRounds, AverageDurationMS: avgDuration, SuccessRate: successRate,
		TopContestedParams: top, AllContestedParams: all,
	}
}
