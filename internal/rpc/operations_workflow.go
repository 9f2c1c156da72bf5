package rpc

import (
	"github.com/xenocomm/coordinator/internal/workflowrunner"
)

// registerWorkflowOps wires spec.md §6's remaining "Orchestration/
// workflows" operations onto workflowrunner.Runner.
func registerWorkflowOps(r *Registry, runner *workflowrunner.Runner) {
	r.register("list_workflow_types", func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"workflow_types": []string{
			workflowrunner.WorkflowOnboarding,
			workflowrunner.WorkflowProtocolEvolution,
			workflowrunner.WorkflowErrorRecovery,
			workflowrunner.WorkflowConflictResolution,
		}}, nil
	})

	startWorkflow := func(name string) Handler {
		return func(args map[string]interface{}) (interface{}, error) {
			context := optMap(args, "context")
			if context == nil {
				context = map[string]interface{}{}
			}
			return runner.Start(name, context)
		}
	}
	r.register("start_onboarding_workflow", startWorkflow(workflowrunner.WorkflowOnboarding))
	r.register("start_protocol_evolution_workflow", startWorkflow(workflowrunner.WorkflowProtocolEvolution))
	r.register("start_error_recovery_workflow", startWorkflow(workflowrunner.WorkflowErrorRecovery))
	r.register("start_conflict_resolution_workflow", startWorkflow(workflowrunner.WorkflowConflictResolution))

	r.register("execute_workflow_step", func(args map[string]interface{}) (interface{}, error) {
		executionID, err := reqString(args, "execution_id")
		if err != nil {
			return nil, err
		}
		return runner.ExecuteStep(executionID)
	})

	r.register("execute_workflow_all_steps", func(args map[string]interface{}) (interface{}, error) {
		executionID, err := reqString(args, "execution_id")
		if err != nil {
			return nil, err
		}
		return runner.ExecuteAll(executionID)
	})

	r.register("get_workflow_status", func(args map[string]interface{}) (interface{}, error) {
		executionID, err := reqString(args, "execution_id")
		if err != nil {
			return nil, err
		}
		return runner.GetExecution(executionID)
	})

	r.register("list_all_workflow_executions", func(args map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"executions": runner.ListExecutions()}, nil
	})
}
