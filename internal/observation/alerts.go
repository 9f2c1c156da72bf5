package observation

import (
	"fmt"
	"strings"

	"github.com/xenocomm/coordinator/internal/model"
)

// registerBuiltinRules wires the three built-in alert rules from
// spec.md §4.A: critical events always alert, rollback-named events
// alert as warnings, and workflow errors alert as warnings.
func (b *Bus) registerBuiltinRules() {
	b.rules = []AlertRule{criticalRule, rollbackNameRule, workflowErrorRule}
}

func criticalRule(e model.FlowEvent) (model.FlowEvent, bool) {
	if e.Severity != model.SeverityCritical {
		return model.FlowEvent{}, false
	}
	return alertFrom(e, model.SeverityCritical, fmt.Sprintf("critical event: %s", e.EventName)), true
}

func rollbackNameRule(e model.FlowEvent) (model.FlowEvent, bool) {
	if !strings.Contains(strings.ToLower(e.EventName), "rollback") {
		return model.FlowEvent{}, false
	}
	return alertFrom(e, model.SeverityWarning, fmt.Sprintf("rollback event: %s", e.EventName)), true
}

func workflowErrorRule(e model.FlowEvent) (model.FlowEvent, bool) {
	if e.FlowType != "workflow" || e.Severity != model.SeverityError {
		return model.FlowEvent{}, false
	}
	return alertFrom(e, model.SeverityWarning, fmt.Sprintf("workflow error: %s", e.EventName)), true
}

func alertFrom(e model.FlowEvent, severity model.EventSeverity, summary string) model.FlowEvent {
	return model.FlowEvent{
		FlowType:      e.FlowType,
		EventName:     "alert." + e.EventName,
		Timestamp:     e.Timestamp,
		Severity:      severity,
		SourceAgent:   e.SourceAgent,
		TargetAgent:   e.TargetAgent,
		SessionID:     e.SessionID,
		Summary:       summary,
		ParentEventID: e.EventID,
		Tags:          e.Tags,
	}
}
