// Package workflowrunner implements the four built-in, five-step
// workflows (onboarding, protocol evolution, error recovery, conflict
// resolution) described in spec.md §4.F. Sequential step execution
// with stop-on-required-failure is grounded on the teacher's
// pkg/orchestration/executor.go PlanExecutor.Execute loop, generalized
// to this package's fixed (not routed) step lists.
package workflowrunner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/xerrors"
)

// StepHandler executes one named step, given the running context
// accumulated by prior steps in the same execution. It returns the
// step's result map or an error, which terminates the execution.
type StepHandler func(ctx map[string]interface{}) (map[string]interface{}, error)

// rollbackVariantIDKey is how a StepHandler (evolution.decide, see
// builtins.go) signals ExecuteStep that this execution should finalize
// as a rollback instead of a plain completion. A handler runs with
// r.mu already held by ExecuteStep, so it cannot call back into
// MarkRolledBack itself (sync.Mutex is not reentrant); returning this
// key in its result map lets ExecuteStep finalize the rollback on the
// handler's behalf without re-locking.
const rollbackVariantIDKey = "_rollback_variant_id"

// WorkflowDef is a named, ordered list of step handlers.
type WorkflowDef struct {
	Name  string
	Steps []string
	// handlers is keyed by step name, populated by the caller building
	// a Runner via RegisterWorkflow.
	handlers map[string]StepHandler
}

// Runner owns every WorkflowExecution, one mutex guarding the map, per
// spec.md §5 "each engine owns its state behind a single mutex".
type Runner struct {
	mu         sync.Mutex
	defs       map[string]WorkflowDef
	executions map[string]*model.WorkflowExecution

	publish func(model.FlowEvent)
}

// New constructs an empty Runner. Built-in workflows are registered by
// RegisterWorkflow (see builtins.go) once their handlers are available
// (they close over the Orchestrator/engines, so registration happens
// at wiring time in cmd/coordinatord).
func New(publish func(model.FlowEvent)) *Runner {
	if publish == nil {
		publish = func(model.FlowEvent) {}
	}
	return &Runner{
		defs:       make(map[string]WorkflowDef),
		executions: make(map[string]*model.WorkflowExecution),
		publish:    publish,
	}
}

// RegisterWorkflow adds or replaces a workflow definition.
func (r *Runner) RegisterWorkflow(name string, steps []string, handlers map[string]StepHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[name] = WorkflowDef{Name: name, Steps: steps, handlers: handlers}
}

func (r *Runner) emit(name string, severity model.EventSeverity, execID, summary string) {
	r.publish(model.FlowEvent{
		FlowType:  "workflow",
		EventName: name,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Summary:   summary,
		Metrics:   map[string]interface{}{"execution_id": execID},
	})
}

// Start creates a new execution in running state with all steps
// pending (spec.md §4.F "Contract").
func (r *Runner) Start(workflowName string, context map[string]interface{}) (*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[workflowName]
	if !ok {
		return nil, xerrors.NotFound("workflowrunner.Start", "workflow", workflowName)
	}

	steps := make([]model.WorkflowStep, len(def.Steps))
	for i, name := range def.Steps {
		steps[i] = model.WorkflowStep{Name: name, Status: model.StepPending}
	}

	exec := &model.WorkflowExecution{
		ExecutionID:      uuid.NewString(),
		WorkflowName:     workflowName,
		Status:           model.WorkflowRunning,
		Steps:            steps,
		CurrentStepIndex: 0,
		StartedAt:        time.Now().UTC(),
		Context:          context,
	}
	r.executions[exec.ExecutionID] = exec

	r.emit("workflow_started", model.SeverityInfo, exec.ExecutionID, "workflow started: "+workflowName)
	return exec.Clone(), nil
}

func (r *Runner) getLocked(executionID string) (*model.WorkflowExecution, error) {
	exec, ok := r.executions[executionID]
	if !ok {
		return nil, xerrors.NotFound("workflowrunner.getExecution", "execution", executionID)
	}
	return exec, nil
}

// GetExecution returns a defensive copy.
func (r *Runner) GetExecution(executionID string) (*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, err := r.getLocked(executionID)
	if err != nil {
		return nil, err
	}
	return exec.Clone(), nil
}

// ListExecutions returns defensive copies of every execution.
func (r *Runner) ListExecutions() []*model.WorkflowExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.WorkflowExecution, 0, len(r.executions))
	for _, e := range r.executions {
		out = append(out, e.Clone())
	}
	return out
}

// ExecuteStep runs the step at current_step_index: mark running,
// dispatch to its handler, on success advance the index and complete
// the execution if past the end; on error mark the step and execution
// failed with no retry and no rollback of prior side effects (spec.md
// §4.F "Contract").
func (r *Runner) ExecuteStep(executionID string) (*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, err := r.getLocked(executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != model.WorkflowRunning {
		return exec.Clone(), nil
	}
	if exec.CurrentStepIndex >= len(exec.Steps) {
		r.completeLocked(exec)
		return exec.Clone(), nil
	}

	def := r.defs[exec.WorkflowName]
	step := &exec.Steps[exec.CurrentStepIndex]
	handler, ok := def.handlers[step.Name]
	if !ok {
		return nil, xerrors.Validation("workflowrunner.ExecuteStep", fmt.Sprintf("no handler registered for step %q", step.Name))
	}

	now := time.Now().UTC()
	step.Status = model.StepRunning
	step.StartedAt = &now

	result, handlerErr := handler(exec.Context)

	completed := time.Now().UTC()
	step.CompletedAt = &completed
	step.DurationMS = float64(completed.Sub(now).Microseconds()) / 1000.0

	if handlerErr != nil {
		step.Status = model.StepFailed
		step.Error = handlerErr.Error()
		exec.Status = model.WorkflowFailed
		exec.CompletedAt = &completed
		exec.TotalDurationMS = float64(completed.Sub(exec.StartedAt).Microseconds()) / 1000.0
		r.emit("workflow_failed", model.SeverityError, executionID, "step failed: "+step.Name+": "+handlerErr.Error())
		return exec.Clone(), nil
	}

	step.Status = model.StepCompleted
	step.Result = result
	exec.CurrentStepIndex++

	if variantID, ok := result[rollbackVariantIDKey].(string); ok {
		r.markRolledBackLocked(exec, variantID)
		return exec.Clone(), nil
	}

	if exec.CurrentStepIndex >= len(exec.Steps) {
		r.completeLocked(exec)
	}

	return exec.Clone(), nil
}

func (r *Runner) completeLocked(exec *model.WorkflowExecution) {
	now := time.Now().UTC()
	exec.Status = model.WorkflowCompleted
	exec.CompletedAt = &now
	exec.TotalDurationMS = float64(now.Sub(exec.StartedAt).Microseconds()) / 1000.0
	r.emit("workflow_completed", model.SeverityInfo, exec.ExecutionID, "workflow completed: "+exec.WorkflowName)
}

// ExecuteAll loops ExecuteStep until the execution leaves running.
func (r *Runner) ExecuteAll(executionID string) (*model.WorkflowExecution, error) {
	for {
		exec, err := r.ExecuteStep(executionID)
		if err != nil {
			return nil, err
		}
		if exec.Status != model.WorkflowRunning {
			return exec, nil
		}
	}
}

// markRolledBackLocked records the rolled-back variant in Context and
// completes the execution. WorkflowExecution has no separate
// rolled_back status in the data model, so a rollback is represented
// as a completed execution tagged with which variant rolled back.
// Callers must already hold r.mu.
func (r *Runner) markRolledBackLocked(exec *model.WorkflowExecution, variantID string) {
	if exec.Context == nil {
		exec.Context = make(map[string]interface{})
	}
	exec.Context["rolled_back_variant_id"] = variantID
	r.completeLocked(exec)
}

// MarkRolledBack terminates an execution in a rolled_back-equivalent
// state (spec.md §4.F step semantics examples: "Evolution.decide ...
// set execution to rolled_back"). ExecuteStep reaches the same outcome
// itself when a handler's result carries rollbackVariantIDKey; this
// exported entry point exists for callers driving a rollback outside
// of a running step (e.g. an operator-triggered abort).
func (r *Runner) MarkRolledBack(executionID, variantID string) (*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, err := r.getLocked(executionID)
	if err != nil {
		return nil, err
	}
	r.markRolledBackLocked(exec, variantID)
	return exec.Clone(), nil
}
