package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// The tool-RPC boundary passes JSON-encodable argument maps (spec.md §6).
// These helpers extract typed values from that map the way a hand-rolled
// capability handler would, rather than requiring every operation to
// redo type assertions and presence checks.

func reqString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", xerrors.Validation("rpc", fmt.Sprintf("missing required argument %q", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", xerrors.Validation("rpc", fmt.Sprintf("argument %q must be a non-empty string", key))
	}
	return s, nil
}

func optString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func optStringSlice(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optMap(args map[string]interface{}, key string) map[string]interface{} {
	if v, ok := args[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func optFloat(args map[string]interface{}, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func optFloatPtr(args map[string]interface{}, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func optBool(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func optInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// decodeInto round-trips an arbitrary JSON-ish value (as produced by
// decoding a request body, or as assembled in-process from an args map)
// into a typed struct. Used for agent descriptors and negotiable params,
// whose shapes are too wide to hand-extract field by field.
func decodeInto(v interface{}, out interface{}) error {
	if v == nil {
		return xerrors.Validation("rpc", "missing required structured argument")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return xerrors.Validation("rpc", "argument is not JSON-encodable: "+err.Error())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return xerrors.Validation("rpc", "argument does not match expected shape: "+err.Error())
	}
	return nil
}

func optAgentDescriptor(args map[string]interface{}, key string) (model.AgentDescriptor, error) {
	var a model.AgentDescriptor
	v, ok := args[key]
	if !ok {
		return a, xerrors.Validation("rpc", fmt.Sprintf("missing required argument %q", key))
	}
	if err := decodeInto(v, &a); err != nil {
		return a, err
	}
	return a, nil
}

func optNegotiableParams(args map[string]interface{}, key string) (*model.NegotiableParams, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	var p model.NegotiableParams
	if err := decodeInto(v, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// toResultMap converts any handler return value into a JSON-encodable
// map, the shape every tool-RPC response takes (spec.md §6).
func toResultMap(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return map[string]interface{}{}, nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not an object at the top level (e.g. a handler returned a bare
		// slice or scalar) — wrap it so the response is still a map.
		var any interface{}
		if uerr := json.Unmarshal(raw, &any); uerr == nil {
			return map[string]interface{}{"result": any}, nil
		}
		return nil, err
	}
	return m, nil
}
