// Package rpc is the tool-RPC boundary of spec.md §6: a flat table of
// named operations, each taking a JSON-encodable argument map and
// returning a JSON-encodable result map. Grounded on the teacher's
// core/agent.go RegisterCapability/handleCapabilityRequest convention
// (decode a map, dispatch to a named handler, encode the result),
// generalized from one HTTP endpoint per capability to one operation
// name shared by both the stdio and HTTP transports spec.md treats as
// interchangeable ("the core does not care which").
package rpc

import (
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// Handler executes one named operation against the wired engines.
type Handler func(args map[string]interface{}) (interface{}, error)

// Registry is the full table of tool-RPC operations (spec.md §6
// "Operations (grouped)"), built once at process wiring time by
// NewRegistry and never mutated afterward — safe for concurrent
// Dispatch calls from multiple transport goroutines.
type Registry struct {
	ops map[string]Handler
}

func newRegistry() *Registry {
	return &Registry{ops: make(map[string]Handler)}
}

func (r *Registry) register(name string, h Handler) {
	r.ops[name] = h
}

// Operations lists every registered operation name, for list_workflow_types-
// style introspection and for transport-level diagnostics.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

// Dispatch runs one named operation and always returns a JSON-encodable
// result map: either the operation's own result, or {"error": "..."}
// per spec.md §7 ("all other errors propagate to the tool-RPC boundary
// and become a structured error result"). It never panics the caller —
// a handler panic is recovered and reported the same way a returned
// error would be, since a malformed handler invocation is still a
// caller-visible failure, not a transport fault.
func (r *Registry) Dispatch(operation string, args map[string]interface{}) map[string]interface{} {
	if args == nil {
		args = map[string]interface{}{}
	}
	handler, ok := r.ops[operation]
	if !ok {
		return xerrors.ToResult(xerrors.NotFound("rpc.Dispatch", "operation", operation))
	}

	result, err := r.safeInvoke(handler, args)
	if err != nil {
		return xerrors.ToResult(err)
	}
	out, encErr := toResultMap(result)
	if encErr != nil {
		return xerrors.ToResult(encErr)
	}
	return out
}

func (r *Registry) safeInvoke(h Handler, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = xerrors.Validation("rpc.Dispatch", "operation panicked")
		}
	}()
	return h(args)
}
