package negotiation

import (
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// Priority selects which preference list SuggestOptimalParams draws from.
type Priority string

const (
	PriorityPerformance  Priority = "performance"
	PriorityCompatibility Priority = "compatibility"
	PrioritySecurity     Priority = "security"
)

// preference lists: first value common to both capability sets wins.
var preferenceLists = map[Priority]map[string][]string{
	PriorityPerformance: {
		"data_format": {"protobuf", "msgpack", "vector_float32", "json"},
		"compression": {"lz4", "snappy", "zstd", "gzip", "null"},
	},
	PriorityCompatibility: {
		"data_format": {"json", "msgpack", "protobuf"},
		"compression": {"null", "gzip"},
	},
	PrioritySecurity: {
		"data_format": {"protobuf", "json"},
		"compression": {"zstd", "gzip", "null"},
	},
}

var encryptionPreference = map[Priority][]string{
	PriorityPerformance:   {"tls", "chacha20", "aes256", "none"},
	PriorityCompatibility: {"tls", "none", "aes256"},
	PrioritySecurity:      {"aes256", "chacha20", "tls"},
}

// SuggestOptimalParams produces an advisory NegotiableParams given two
// capability maps and a priority, never applied implicitly to an
// existing session (spec.md §4.C "Auto-optimization").
func SuggestOptimalParams(capsA, capsB map[string]interface{}, priority Priority, base model.NegotiableParams) model.NegotiableParams {
	lists, ok := preferenceLists[priority]
	if !ok {
		lists = preferenceLists[PriorityCompatibility]
	}

	suggested := base

	if v := firstCommon(lists["data_format"], capsA, capsB); v != "" {
		suggested.DataFormat = v
	}
	if v := firstCommon(lists["compression"], capsA, capsB); v != "" {
		suggested.Compression = v
	}
	if v := firstCommonFrom(encryptionPreference[priority], capsA, capsB); v != "" {
		suggested.Encryption = v
	}

	if v, ok := capsA["max_message_size"].(int); ok {
		if v2, ok2 := capsB["max_message_size"].(int); ok2 {
			suggested.MaxMessageSize = min(v, v2)
		}
	}
	streamA, _ := capsA["streaming"].(bool)
	streamB, _ := capsB["streaming"].(bool)
	suggested.Streaming = streamA && streamB

	batchA, okA := capsA["batch_size"].(int)
	batchB, okB := capsB["batch_size"].(int)
	if okA && okB {
		suggested.BatchSize = min(batchA, batchB)
	}

	return suggested
}

// firstCommon returns the first candidate that both capability maps
// support, where "supports X" means either caps[key]==candidate or a
// caps["supports_"+candidate]==true flag, mirroring the "both support
// msgpack"/"both support high_throughput" phrasing in spec.md §4.E.
func firstCommon(candidates []string, capsA, capsB map[string]interface{}) string {
	return firstCommonFrom(candidates, capsA, capsB)
}

func firstCommonFrom(candidates []string, capsA, capsB map[string]interface{}) string {
	for _, c := range candidates {
		if supports(capsA, c) && supports(capsB, c) {
			return c
		}
	}
	return ""
}

func supports(caps map[string]interface{}, value string) bool {
	if caps == nil {
		return false
	}
	if flag, ok := caps["supports_"+value].(bool); ok && flag {
		return true
	}
	for _, v := range caps {
		if s, ok := v.(string); ok && s == value {
			return true
		}
		if list, ok := v.([]string); ok {
			for _, item := range list {
				if item == value {
					return true
				}
			}
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AutoResolve merges proposed_params and counter_params field-wise,
// incrementing per-field contest counters for any field the two sides
// disagreed on, used by analytics' contested-parameter ranking (spec.md
// §4.C "Auto-resolve").
func (e *Engine) AutoResolve(sessionID string) (model.NegotiableParams, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return model.NegotiableParams{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.CounterParams == nil {
		return model.NegotiableParams{}, &xerrors.CoordinationError{
			Op: "negotiation.AutoResolve", Kind: "negotiation", ID: s.SessionID,
			Err: xerrors.ErrValidation, Message: "no counter-proposal to resolve",
		}
	}

	e.recordContestsLocked(s.ProposedParams, *s.CounterParams)
	merged := s.ProposedParams.MergeWith(*s.CounterParams)
	return merged, nil
}

// recordContestsLocked increments e.contests for every field where the
// two sides differed. Caller must hold e.mu.
func (e *Engine) recordContestsLocked(a, b model.NegotiableParams) {
	if a.DataFormat != b.DataFormat {
		e.contests["data_format"]++
	}
	if a.Compression != b.Compression {
		e.contests["compression"]++
	}
	if a.Encryption != b.Encryption {
		e.contests["encryption"]++
	}
	if a.ErrorCorrection != b.ErrorCorrection {
		e.contests["error_correction"]++
	}
	if a.MaxMessageSize != b.MaxMessageSize {
		e.contests["max_message_size"]++
	}
	if a.TimeoutMS != b.TimeoutMS {
		e.contests["timeout_ms"]++
	}
	if a.Streaming != b.Streaming {
		e.contests["streaming_enabled"]++
	}
	if a.BatchSize != b.BatchSize {
		e.contests["batch_size"]++
	}
	if a.RetryPolicy != b.RetryPolicy {
		e.contests["retry_policy"]++
	}
	if a.MaxRetries != b.MaxRetries {
		e.contests["max_retries"]++
	}
	if a.Priority != b.Priority {
		e.contests["priority"]++
	}
}
