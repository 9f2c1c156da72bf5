package cliapp

import (
	"context"
	"fmt"
	"time"

	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// RunDemo drives a scripted sequence of registrations, a collaboration,
// and a protocol-variant rollout against live engines, printing each
// step as it happens. spec.md §6: "demo run a simulated-activity
// generator". Grounded on the teacher's seed-data bootstrap pattern,
// narrowed to coordinator's own domain.
func RunDemo(ctx context.Context, orch *orchestrator.Orchestrator, em *emergence.Engine) error {
	PrintHeader("Coordinator Demo")

	alice := model.AgentDescriptor{
		AgentID:          "demo-alice",
		KnowledgeDomains: []string{"billing", "payments"},
		ExpertiseLevel:   map[string]float64{"billing": 0.9, "payments": 0.8},
		Goals:            []model.Goal{{Type: "maximize_throughput", Priority: 1}},
		Terminology:      map[string]string{"invoice": "bill"},
		ContextParams:    map[string]interface{}{"region": "us-east"},
	}
	bob := model.AgentDescriptor{
		AgentID:          "demo-bob",
		KnowledgeDomains: []string{"payments", "fraud"},
		ExpertiseLevel:   map[string]float64{"payments": 0.6, "fraud": 0.7},
		Goals:            []model.Goal{{Type: "maximize_throughput", Priority: 1}},
		Terminology:      map[string]string{"invoice": "invoice"},
		ContextParams:    map[string]interface{}{"region": "us-east"},
	}

	PrintInfo("registering demo agents alice and bob")
	if _, err := orch.RegisterAgent(alice); err != nil {
		return fmt.Errorf("register alice: %w", err)
	}
	if _, err := orch.RegisterAgent(bob); err != nil {
		return fmt.Errorf("register bob: %w", err)
	}

	PrintInfo("initiating collaboration")
	proposed := model.DefaultParams()
	session, err := orch.InitiateCollaboration(alice.AgentID, bob.AgentID, []string{"payments"}, &proposed, nil)
	if err != nil {
		PrintWarning(fmt.Sprintf("collaboration blocked: %v", err))
	} else {
		PrintSuccess(fmt.Sprintf("session %s reached state %s", session.SessionID, session.State))
	}

	PrintInfo("proposing a protocol variant")
	variant := em.ProposeVariant("lower timeout for fast network", map[string]interface{}{"timeout_ms": 5000})
	if _, err := em.StartTesting(variant.VariantID); err != nil {
		return fmt.Errorf("start testing: %w", err)
	}
	if _, err := em.StartCanary(variant.VariantID, nil); err != nil {
		return fmt.Errorf("start canary: %w", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(500 * time.Millisecond):
		}
		metrics := model.PerformanceMetrics{
			SuccessRate:   0.97,
			LatencyMS:     120,
			TotalRequests: 100,
			ErrorCount:    3,
			Timestamp:     time.Now(),
		}
		if _, err := em.TrackPerformance(variant.VariantID, metrics); err != nil {
			PrintWarning(fmt.Sprintf("track performance: %v", err))
			continue
		}
		if _, err := em.RampCanary(variant.VariantID, true); err != nil {
			PrintWarning(fmt.Sprintf("ramp canary: %v", err))
			continue
		}
		v, _ := em.GetVariant(variant.VariantID)
		PrintSuccess(fmt.Sprintf("variant %s now %s (canary %.0f%%)", v.VariantID, v.Status, v.CanaryPercentage*100))
	}

	PrintInfo("demo complete")
	return nil
}
