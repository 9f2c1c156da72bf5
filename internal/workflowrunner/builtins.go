package workflowrunner

import (
	"fmt"

	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// Workflow names, fixed per spec.md §4.F "Shape".
const (
	WorkflowOnboarding         = "onboarding"
	WorkflowProtocolEvolution  = "protocol_evolution"
	WorkflowErrorRecovery      = "error_recovery"
	WorkflowConflictResolution = "conflict_resolution"
)

func ctxString(ctx map[string]interface{}, key string) string {
	if v, ok := ctx[key].(string); ok {
		return v
	}
	return ""
}

// RegisterBuiltins wires the four built-in workflows' step handlers to
// the Orchestrator and engines (spec.md §4.F "Shape" + "Step semantics
// (examples)"). Called once at process wiring time, since handlers
// close over these components.
func RegisterBuiltins(r *Runner, orch *orchestrator.Orchestrator, neg *negotiation.Engine, em *emergence.Engine) {
	r.RegisterWorkflow(WorkflowOnboarding, []string{
		"register", "alignment", "negotiate", "establish", "verify",
	}, onboardingHandlers(orch))

	r.RegisterWorkflow(WorkflowProtocolEvolution, []string{
		"propose", "test", "canary", "monitor", "decide",
	}, evolutionHandlers(r, orch, em))

	r.RegisterWorkflow(WorkflowErrorRecovery, []string{
		"detect", "isolate", "recover", "notify", "resume",
	}, recoveryHandlers(orch, neg, em))

	r.RegisterWorkflow(WorkflowConflictResolution, []string{
		"identify", "analyze", "propose", "negotiate", "document",
	}, conflictHandlers(orch, neg))
}

// onboardingHandlers: register → alignment → negotiate → establish →
// verify, driving initiate_collaboration's own internal steps via the
// Orchestrator's pipeline (the Orchestrator already does the
// register/align/negotiate/activate sequence internally; this workflow
// exposes it as five observable steps for a caller scripting it).
func onboardingHandlers(orch *orchestrator.Orchestrator) map[string]StepHandler {
	return map[string]StepHandler{
		"register": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			agentA := ctxString(ctx, "agent_a_id")
			agentB := ctxString(ctx, "agent_b_id")
			if _, err := orch.GetAgent(agentA); err != nil {
				return nil, err
			}
			if _, err := orch.GetAgent(agentB); err != nil {
				return nil, err
			}
			return map[string]interface{}{"agent_a_id": agentA, "agent_b_id": agentB}, nil
		},
		"alignment": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			report, err := orch.CheckCollaborationReadiness(ctxString(ctx, "agent_a_id"), ctxString(ctx, "agent_b_id"), nil)
			if err != nil {
				return nil, err
			}
			ctx["_readiness"] = report
			return map[string]interface{}{"ready": report.Ready, "score": report.Score}, nil
		},
		"negotiate": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			session, err := orch.InitiateCollaboration(ctxString(ctx, "agent_a_id"), ctxString(ctx, "agent_b_id"), nil, nil, nil)
			if err != nil {
				return nil, err
			}
			ctx["session_id"] = session.SessionID
			return map[string]interface{}{"session_id": session.SessionID, "state": string(session.State)}, nil
		},
		"establish": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			session, err := orch.GetSession(ctxString(ctx, "session_id"))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"state": string(session.State)}, nil
		},
		"verify": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			session, err := orch.GetSession(ctxString(ctx, "session_id"))
			if err != nil {
				return nil, err
			}
			if session.State != model.SessionActive {
				return nil, fmt.Errorf("onboarding incomplete: session in state %q", session.State)
			}
			return map[string]interface{}{"verified": true}, nil
		},
	}
}

// evolutionHandlers: propose → test → canary → monitor → decide.
func evolutionHandlers(r *Runner, orch *orchestrator.Orchestrator, em *emergence.Engine) map[string]StepHandler {
	return map[string]StepHandler{
		"propose": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			desc := ctxString(ctx, "description")
			changes, _ := ctx["changes"].(map[string]interface{})
			v := em.ProposeVariant(desc, changes)
			ctx["variant_id"] = v.VariantID
			return map[string]interface{}{"variant_id": v.VariantID}, nil
		},
		"test": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			v, err := em.StartTesting(ctxString(ctx, "variant_id"))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"status": string(v.Status)}, nil
		},
		"canary": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			v, err := em.StartCanary(ctxString(ctx, "variant_id"), nil)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"status": string(v.Status), "canary_percentage": v.CanaryPercentage}, nil
		},
		"monitor": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			status, err := em.GetVariantStatus(ctxString(ctx, "variant_id"))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"should_rollback": status.ShouldRollback,
				"can_proceed":     status.CanProceed,
			}, nil
		},
		"decide": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			variantID := ctxString(ctx, "variant_id")
			should, reason, err := em.ShouldRollback(variantID)
			if err != nil {
				return nil, err
			}
			if should {
				if _, err := em.Rollback(variantID, emergence.RollbackReason(reason)); err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"outcome":            "rolled_back",
					"reason":             string(reason),
					rollbackVariantIDKey: variantID,
				}, nil
			}
			for {
				v, err := em.RampCanary(variantID, true)
				if err != nil {
					return nil, err
				}
				if v.Status == model.VariantActive || v.Status == model.VariantPaused {
					return map[string]interface{}{"outcome": string(v.Status)}, nil
				}
			}
		},
	}
}

// recoveryHandlers: detect → isolate → recover → notify → resume.
// Recovery.recover dispatches by error_type (spec.md §4.F "Step
// semantics (examples)").
func recoveryHandlers(orch *orchestrator.Orchestrator, neg *negotiation.Engine, em *emergence.Engine) map[string]StepHandler {
	return map[string]StepHandler{
		"detect": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			errType := ctxString(ctx, "error_type")
			if errType == "" {
				return nil, fmt.Errorf("recovery workflow requires error_type in context")
			}
			return map[string]interface{}{"error_type": errType}, nil
		},
		"isolate": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"isolated": true}, nil
		},
		"recover": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			switch ctxString(ctx, "error_type") {
			case "timeout":
				touched := neg.CheckAllTimeouts()
				return map[string]interface{}{"sessions_timed_out": len(touched)}, nil
			case "alignment_failure":
				agentA := ctxString(ctx, "agent_a_id")
				agentB := ctxString(ctx, "agent_b_id")
				if agentA == "" || agentB == "" {
					return nil, fmt.Errorf("alignment_failure recovery requires agent_a_id and agent_b_id")
				}
				report, err := orch.CheckCollaborationReadiness(agentA, agentB, nil)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ready": report.Ready, "score": report.Score}, nil
			case "protocol_mismatch":
				status := em.GetCanaryStatus()
				n := 0
				for _, v := range status.ActiveCanaries {
					if _, err := em.Rollback(v.VariantID, emergence.ReasonManual); err == nil {
						n++
					}
				}
				return map[string]interface{}{"canaries_rolled_back": n}, nil
			default:
				return nil, fmt.Errorf("unknown error_type: %q", ctxString(ctx, "error_type"))
			}
		},
		"notify": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"notified": true}, nil
		},
		"resume": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			sessionID := ctxString(ctx, "session_id")
			if sessionID == "" {
				return map[string]interface{}{"resumed": false}, nil
			}
			session, err := orch.ResumeSession(sessionID)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"state": string(session.State)}, nil
		},
	}
}

// conflictHandlers: identify → analyze → propose → negotiate →
// document. Conflict.negotiate runs AutoResolve on the existing session
// named by session_id in the context; it does not open a new
// negotiation session.
func conflictHandlers(orch *orchestrator.Orchestrator, neg *negotiation.Engine) map[string]StepHandler {
	return map[string]StepHandler{
		"identify": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			sessionID := ctxString(ctx, "session_id")
			if sessionID == "" {
				return nil, fmt.Errorf("conflict resolution requires session_id in context")
			}
			return map[string]interface{}{"session_id": sessionID}, nil
		},
		"analyze": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			analytics := neg.GetAnalytics("")
			return map[string]interface{}{"top_contested_params": analytics.TopContestedParams}, nil
		},
		"propose": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"proposed": true}, nil
		},
		"negotiate": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			sessionID := ctxString(ctx, "session_id")
			merged, err := neg.AutoResolve(sessionID)
			if err != nil {
				return nil, err
			}
			ctx["resolved_params"] = merged
			return map[string]interface{}{"data_format": merged.DataFormat, "compression": merged.Compression}, nil
		},
		"document": func(ctx map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"documented": true}, nil
		},
	}
}
