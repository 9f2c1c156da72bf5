package model

import "reflect"

// NegotiableParams is the fixed-schema record of communication settings
// negotiated between two agents (spec.md §3 "NegotiableParams").
type NegotiableParams struct {
	ProtocolVersion  string                 `json:"protocol_version"`
	DataFormat       string                 `json:"data_format"`
	Compression      string                 `json:"compression"`
	ErrorCorrection  string                 `json:"error_correction"`
	Encryption       string                 `json:"encryption"`
	MaxMessageSize   int                    `json:"max_message_size"`
	TimeoutMS        int                    `json:"timeout_ms"`
	Streaming        bool                   `json:"streaming_enabled"`
	BatchSize        int                    `json:"batch_size"`
	RetryPolicy      string                 `json:"retry_policy"`
	MaxRetries       int                    `json:"max_retries"`
	Priority         int                    `json:"priority"`
	CustomParams     map[string]interface{} `json:"custom_params,omitempty"`
}

// Clone returns a deep-enough copy for safe external handling.
func (p *NegotiableParams) Clone() *NegotiableParams {
	if p == nil {
		return nil
	}
	clone := *p
	if p.CustomParams != nil {
		clone.CustomParams = make(map[string]interface{}, len(p.CustomParams))
		for k, v := range p.CustomParams {
			clone.CustomParams[k] = v
		}
	}
	return &clone
}

// DefaultParams returns a conservative, fully-valid set of negotiable
// parameters, used when a caller does not supply proposed_params.
func DefaultParams() NegotiableParams {
	return NegotiableParams{
		ProtocolVersion: "1.0",
		DataFormat:      "json",
		Compression:     "null",
		ErrorCorrection: "none",
		Encryption:      "tls",
		MaxMessageSize:  1024 * 1024,
		TimeoutMS:       30000,
		Streaming:       false,
		BatchSize:       1,
		RetryPolicy:     "exponential_backoff",
		MaxRetries:      3,
		Priority:        5,
	}
}

// encryptionStrength ranks encryption options from weakest to strongest,
// used both for compatibility classification and for auto_resolve's
// "strongest of the two" merge rule.
var encryptionStrength = map[string]int{
	"none":     0,
	"tls":      1,
	"aes256":   2,
	"chacha20": 2,
}

// CompatibilityClass is the result of comparing two NegotiableParams.
type CompatibilityClass string

const (
	CompatibilityCompatible   CompatibilityClass = "compatible"
	CompatibilityNegotiable   CompatibilityClass = "negotiable"
	CompatibilityIncompatible CompatibilityClass = "incompatible"
)

// ClassifyCompatibility compares two parameter sets. Encryption "none" on
// one side when the other side had something stronger is incompatible
// (spec.md §4.C "Validation"); differing-but-mergeable fields are
// negotiable; identical sets are compatible.
func (p NegotiableParams) ClassifyCompatibility(other NegotiableParams) CompatibilityClass {
	pEnc := encryptionStrength[p.Encryption]
	oEnc := encryptionStrength[other.Encryption]
	if (p.Encryption == "none" && oEnc > 0) || (other.Encryption == "none" && pEnc > 0) {
		return CompatibilityIncompatible
	}
	if reflect.DeepEqual(p, other) {
		return CompatibilityCompatible
	}
	return CompatibilityNegotiable
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MergeWith merges self and other into a new stricter/safer
// NegotiableParams, using self's tie-breaking choice for "preferred
// side" fields (data_format, retry_policy). The deterministic fields
// (max_message_size, timeout_ms, streaming_enabled, max_retries,
// priority) are commutative regardless of which side calls MergeWith
// (spec.md §8 invariant 7).
func (p NegotiableParams) MergeWith(other NegotiableParams) NegotiableParams {
	merged := NegotiableParams{}

	if p.ProtocolVersion >= other.ProtocolVersion {
		merged.ProtocolVersion = p.ProtocolVersion
	} else {
		merged.ProtocolVersion = other.ProtocolVersion
	}

	merged.DataFormat = p.DataFormat // preferred side's choice

	if p.Compression != "null" && p.Compression == other.Compression {
		merged.Compression = p.Compression
	} else {
		merged.Compression = "null"
	}

	merged.MaxMessageSize = min(p.MaxMessageSize, other.MaxMessageSize)
	merged.TimeoutMS = min(p.TimeoutMS, other.TimeoutMS)

	if encryptionStrength[p.Encryption] >= encryptionStrength[other.Encryption] {
		merged.Encryption = p.Encryption
	} else {
		merged.Encryption = other.Encryption
	}

	merged.Streaming = p.Streaming && other.Streaming
	merged.BatchSize = min(p.BatchSize, other.BatchSize)
	merged.RetryPolicy = p.RetryPolicy // preferred side's choice
	merged.MaxRetries = max(p.MaxRetries, other.MaxRetries)
	merged.Priority = max(p.Priority, other.Priority)

	if p.ErrorCorrection == other.ErrorCorrection {
		merged.ErrorCorrection = p.ErrorCorrection
	} else if p.ErrorCorrection == "none" {
		merged.ErrorCorrection = other.ErrorCorrection
	} else if other.ErrorCorrection == "none" {
		merged.ErrorCorrection = p.ErrorCorrection
	} else {
		merged.ErrorCorrection = p.ErrorCorrection
	}

	merged.CustomParams = make(map[string]interface{})
	for k, v := range other.CustomParams {
		merged.CustomParams[k] = v
	}
	for k, v := range p.CustomParams {
		merged.CustomParams[k] = v // preferred side wins on key conflicts
	}
	if len(merged.CustomParams) == 0 {
		merged.CustomParams = nil
	}

	return merged
}
