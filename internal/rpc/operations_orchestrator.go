package rpc

import (
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// registerOrchestrationOps wires spec.md §6's "Orchestration/workflows"
// group's session-management operations onto orchestrator.Orchestrator.
// The four start_*_workflow operations and the execute/list workflow
// operations are registered by registerWorkflowOps instead, since they
// belong to the Workflow Runner, not the Orchestrator.
func registerOrchestrationOps(r *Registry, orch *orchestrator.Orchestrator) {
	r.register("initiate_collaboration", func(args map[string]interface{}) (interface{}, error) {
		agentAID, err := reqString(args, "agent_a_id")
		if err != nil {
			return nil, err
		}
		agentBID, err := reqString(args, "agent_b_id")
		if err != nil {
			return nil, err
		}
		proposed, err := optNegotiableParams(args, "proposed_params")
		if err != nil {
			return nil, err
		}
		return orch.InitiateCollaboration(agentAID, agentBID, optStringSlice(args, "required_domains"), proposed, optMap(args, "metadata"))
	})

	r.register("get_collaboration_status", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		return orch.GetSession(sessionID)
	})

	r.register("list_active_collaborations", func(args map[string]interface{}) (interface{}, error) {
		sessions := orch.ListSessions(optString(args, "agent_id"))
		active := make([]*model.CollaborationSession, 0, len(sessions))
		for _, s := range sessions {
			if s.State != model.SessionCompleted && s.State != model.SessionFailed {
				active = append(active, s)
			}
		}
		return map[string]interface{}{"sessions": active}, nil
	})

	r.register("end_collaboration", func(args map[string]interface{}) (interface{}, error) {
		sessionID, err := reqString(args, "session_id")
		if err != nil {
			return nil, err
		}
		return orch.CloseSession(sessionID)
	})
}
