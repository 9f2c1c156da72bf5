package rpc

import (
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// registerNegotiationOps wires spec.md §6's "Negotiation" group directly
// onto negotiation.Engine; the Orchestrator-mediated variant
// (complete_negotiation) lives under the orchestration group instead,
// since it must keep a CollaborationSession in sync.
func registerNegotiationOps(r *Registry, orch *orchestrator.Orchestrator, neg *negotiation.Engine) {
	r.register("initiate_negotiation", func(args map[string]interface{}) (interface{}, error) {
		initiatorID, err := reqString(args, "initiator_id")
		if err != nil {
			return nil, err
		}
		responderID, err := reqString(args, "responder_id")
		if err != nil {
			return nil, err
		}
		proposed, err := optNegotiableParams(args, "proposed_params")
		if err != nil {
			return nil, err
		}
		params := model.DefaultParams()
		if proposed != nil {
			params = *proposed
		}
		policy := model.TimeoutPolicy(optString(args, "timeout_policy"))
		if policy == "" {
			policy = model.TimeoutPolicyFail
		}
		return neg.InitiateSession(initiatorID, responderID, params, policy)
	})

	r.register("respond_to_negotiation", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		responderID, err := reqString(args, "responder_id")
		if err != nil {
			return nil, err
		}
		if _, err := neg.ReceiveProposal(sessionID, responderID); err != nil {
			return nil, err
		}
		switch optString(args, "response") {
		case "accept":
			return neg.RespondAccept(sessionID, responderID)
		case "counter":
			counter, err := optNegotiableParams(args, "counter_params")
			if err != nil {
				return nil, err
			}
			if counter == nil {
				return nil, counterRequiredErr()
			}
			return neg.RespondCounter(sessionID, responderID, *counter)
		case "reject":
			return neg.RespondReject(sessionID, responderID, optString(args, "reason"))
		default:
			return nil, unknownResponseErr(optString(args, "response"))
		}
	})

	r.register("accept_counter_proposal", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		initiatorID, err := reqString(args, "initiator_id")
		if err != nil {
			return nil, err
		}
		return neg.AcceptCounter(sessionID, initiatorID)
	})

	r.register("finalize_negotiation", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		initiatorID, err := reqString(args, "initiator_id")
		if err != nil {
			return nil, err
		}
		return neg.FinalizeSession(sessionID, initiatorID)
	})

	r.register("get_negotiation_status", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		return neg.GetStatus(sessionID)
	})

	r.register("list_negotiations", func(args map[string]interface{}) (interface{}, error) {
		return neg.ListSessions(optString(args, "agent_id")), nil
	})

	r.register("get_negotiation_analytics", func(args map[string]interface{}) (interface{}, error) {
		return neg.GetAnalytics(optString(args, "agent_id")), nil
	})

	r.register("auto_resolve_negotiation_conflicts", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		return neg.AutoResolve(sessionID)
	})

	r.register("suggest_optimal_negotiation_params", func(args map[string]interface{}) (interface{}, error) {
		a, b, err := resolveAgentPair(orch, args)
		if err != nil {
			return nil, err
		}
		priority := negotiation.Priority(optString(args, "priority"))
		if priority == "" {
			priority = negotiation.PriorityCompatibility
		}
		base, err := optNegotiableParams(args, "base_params")
		if err != nil {
			return nil, err
		}
		baseParams := model.DefaultParams()
		if base != nil {
			baseParams = *base
		}
		return negotiation.SuggestOptimalParams(a.Capabilities, b.Capabilities, priority, baseParams), nil
	})

	r.register("check_negotiation_timeout", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		return neg.CheckTimeout(sessionID)
	})

	r.register("get_negotiation_history", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		rounds, err := neg.GetHistory(sessionID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"rounds": rounds}, nil
	})
}
