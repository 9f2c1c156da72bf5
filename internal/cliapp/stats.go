package cliapp

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/xenocomm/coordinator/internal/observation"
)

// PrintStats renders one Bus.Stats() snapshot, grounded on
// KooshaPari-KaskMan's utils.FormatTable tabular-output convention.
// spec.md §6: "stats print bus statistics once and exit".
func PrintStats(bus *observation.Bus) {
	s := bus.Stats()

	PrintHeader("Coordinator Observation Bus")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{tablewriter.Bold},
	)
	table.Append([]string{"Total published", strconv.FormatUint(s.TotalPublished, 10)})
	table.Append([]string{"Ring size / capacity", fmt.Sprintf("%d / %d", s.RingSize, s.RingCapacity)})
	table.Append([]string{"Subscribers", strconv.Itoa(s.SubscriberCount)})
	table.Append([]string{"Alerts (total / active)", fmt.Sprintf("%d / %d", s.AlertCount, s.ActiveAlerts)})
	table.Render()

	if len(s.ByFlowType) > 0 {
		PrintSubHeader("By flow type")
		ft := tablewriter.NewWriter(os.Stdout)
		ft.SetHeader([]string{"Flow type", "Count"})
		for name, count := range s.ByFlowType {
			ft.Append([]string{name, strconv.FormatUint(count, 10)})
		}
		ft.Render()
	}

	if len(s.BySeverity) > 0 {
		PrintSubHeader("By severity")
		sv := tablewriter.NewWriter(os.Stdout)
		sv.SetHeader([]string{"Severity", "Count"})
		for sev, count := range s.BySeverity {
			sv.Append([]string{string(sev), strconv.FormatUint(count, 10)})
		}
		sv.Render()
	}
}
