package cliapp

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/observation"
)

// PrintAnalytics aggregates the Observation Bus's event history over the
// trailing window plus the negotiation engine's contested-param analytics.
// spec.md §6: "analytics [--window N_MIN] print aggregate metrics".
func PrintAnalytics(bus *observation.Bus, neg *negotiation.Engine, windowMinutes int) {
	since := time.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	events := bus.Since(since, "")

	PrintHeader(fmt.Sprintf("Aggregate metrics — trailing %d min", windowMinutes))

	bySeverity := map[model.EventSeverity]int{}
	byType := map[string]int{}
	for _, e := range events {
		bySeverity[e.Severity]++
		byType[e.FlowType]++
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Flow type", "Events in window"})
	for t, n := range byType {
		table.Append([]string{t, fmt.Sprintf("%d", n)})
	}
	table.Render()

	PrintSubHeader("Severity distribution")
	sevTable := tablewriter.NewWriter(os.Stdout)
	sevTable.SetHeader([]string{"Severity", "Count"})
	for sev, n := range bySeverity {
		sevTable.Append([]string{string(sev), fmt.Sprintf("%d", n)})
	}
	sevTable.Render()

	analytics := neg.GetAnalytics("")
	PrintSubHeader("Negotiation analytics")
	naTable := tablewriter.NewWriter(os.Stdout)
	naTable.SetHeader([]string{"Metric", "Value"})
	naTable.Append([]string{"Total sessions", fmt.Sprintf("%d", analytics.Total)})
	naTable.Append([]string{"Successful", fmt.Sprintf("%d", analytics.Successful)})
	naTable.Append([]string{"Failed", fmt.Sprintf("%d", analytics.Failed)})
	naTable.Append([]string{"Timed out", fmt.Sprintf("%d", analytics.TimedOut)})
	naTable.Append([]string{"Success rate", fmt.Sprintf("%.1f%%", analytics.SuccessRate*100)})
	naTable.Append([]string{"Avg rounds", fmt.Sprintf("%.2f", analytics.AverageRounds)})
	naTable.Append([]string{"Avg duration (ms)", fmt.Sprintf("%.0f", analytics.AverageDurationMS)})
	naTable.Render()

	if len(analytics.TopContestedParams) > 0 {
		PrintSubHeader("Most contested parameters")
		cpTable := tablewriter.NewWriter(os.Stdout)
		cpTable.SetHeader([]string{"Parameter", "Contest count"})
		for _, cp := range analytics.TopContestedParams {
			cpTable.Append([]string{cp.Name, fmt.Sprintf("%d", cp.Count)})
		}
		cpTable.Render()
	}
}
