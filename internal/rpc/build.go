package rpc

import (
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
	"github.com/xenocomm/coordinator/internal/workflowrunner"
)

// NewRegistry builds the full tool-RPC operation table (spec.md §6)
// wired to the already-constructed engines. Called once at process
// startup from cmd/coordinatord.
func NewRegistry(scorer *alignment.Scorer, neg *negotiation.Engine, em *emergence.Engine, orch *orchestrator.Orchestrator, runner *workflowrunner.Runner) *Registry {
	r := newRegistry()
	registerAgentOps(r, orch, scorer)
	registerNegotiationOps(r, orch, neg)
	registerEmergenceOps(r, em)
	registerOrchestrationOps(r, orch)
	registerWorkflowOps(r, runner)
	return r
}
