package rpc

import (
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// resolveAgentPair looks up agent_a_id/agent_b_id from the registry, the
// shape every alignment operation in spec.md §6's "Agent registry" group
// shares.
func resolveAgentPair(orch *orchestrator.Orchestrator, args map[string]interface{}) (model.AgentDescriptor, model.AgentDescriptor, error) {
	aID, err := reqString(args, "agent_a_id")
	if err != nil {
		return model.AgentDescriptor{}, model.AgentDescriptor{}, err
	}
	bID, err := reqString(args, "agent_b_id")
	if err != nil {
		return model.AgentDescriptor{}, model.AgentDescriptor{}, err
	}
	agentA, err := orch.GetAgent(aID)
	if err != nil {
		return model.AgentDescriptor{}, model.AgentDescriptor{}, err
	}
	agentB, err := orch.GetAgent(bID)
	if err != nil {
		return model.AgentDescriptor{}, model.AgentDescriptor{}, err
	}
	return *agentA, *agentB, nil
}

// registerAgentOps wires spec.md §6's "Agent registry" group:
// register_agent plus the five alignment strategies and
// full_alignment_check, resolved against the Orchestrator's registry
// (spec.md §4.B's Scorer itself takes descriptors directly; the tool-RPC
// boundary is what narrows that to agent IDs, consistent with every
// other operation in this group).
func registerAgentOps(r *Registry, orch *orchestrator.Orchestrator, scorer *alignment.Scorer) {
	r.register("register_agent", func(args map[string]interface{}) (interface{}, error) {
		descriptor, err := optAgentDescriptor(args, "agent")
		if err != nil {
			return nil, err
		}
		return orch.RegisterAgent(descriptor)
	})

	r.register("verify_knowledge_alignment", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.VerifyKnowledge(a, b, optStringSlice(args, "required_domains")), nil
	})

	r.register("verify_goal_alignment", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.VerifyGoals(a, b), nil
	})

	r.register("align_terminology", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.AlignTerminology(a, b), nil
	})

	r.register("verify_assumptions", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.VerifyAssumptions(a, b), nil
	})

	r.register("sync_context", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.SyncContext(a, b, optStringSlice(args, "required_params")), nil
	})

	r.register("full_alignment_check", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		return scorer.FullAlignmentCheck(a, b, optStringSlice(args, "required_domains"), optStringSlice(args, "required_params")), nil
	})
}
