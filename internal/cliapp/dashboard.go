package cliapp

import (
	"context"
	"fmt"
	"time"

	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/observation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
)

// RunDashboard drives the "dashboard"/"dash"/"observe" interactive
// monitor: a refresh loop that redraws bus statistics, active
// collaborations, and emergence canaries every refresh interval, until
// ctx is cancelled. Grounded on KooshaPari-KaskMan's watchStatus
// ticker-and-clear-screen loop (cmd/cli/commands/status.go).
func RunDashboard(ctx context.Context, bus *observation.Bus, orch *orchestrator.Orchestrator, em *emergence.Engine, mode string, refresh time.Duration) error {
	PrintHeader("Coordinator Dashboard")
	fmt.Printf("mode=%s refresh=%s (Ctrl+C to stop)\n\n", mode, refresh)

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	render := func() {
		fmt.Print("\033[H\033[2J")
		PrintStats(bus)

		PrintSubHeader("Active collaborations")
		sessions := orch.ListSessions("")
		if len(sessions) == 0 {
			fmt.Println("(none)")
		}
		for _, s := range sessions {
			fmt.Printf("%s  agents=%s/%s  state=%s\n", s.SessionID, s.AgentAID, s.AgentBID, s.State)
		}

		PrintSubHeader("Protocol variants")
		canary := em.GetCanaryStatus()
		if len(canary.ActiveCanaries) == 0 {
			fmt.Println("(no active canaries)")
		}
		for _, v := range canary.ActiveCanaries {
			fmt.Printf("%s  status=%s  canary=%.1f%%\n", v.VariantID, v.Status, v.CanaryPercentage*100)
		}
	}

	render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			render()
		}
	}
}
