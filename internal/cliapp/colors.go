// Package cliapp implements the coordinatord CLI's operator-facing
// commands (dashboard, demo, stats, analytics) on top of the
// Observation Bus and the engine set, following spec.md §6's CLI
// contract. Grounded on KooshaPari-KaskMan's cmd/cli/utils package for
// color and tabular-output conventions.
package cliapp

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	ColorRed     = color.New(color.FgRed)
	ColorGreen   = color.New(color.FgGreen)
	ColorYellow  = color.New(color.FgYellow)
	ColorBlue    = color.New(color.FgBlue)
	ColorMagenta = color.New(color.FgMagenta)
	ColorCyan    = color.New(color.FgCyan)
	ColorBold    = color.New(color.Bold)
)

func PrintSuccess(message string) {
	ColorGreen.Printf("✓ %s\n", message)
}

func PrintError(message string) {
	ColorRed.Printf("✗ %s\n", message)
}

func PrintWarning(message string) {
	ColorYellow.Printf("⚠ %s\n", message)
}

func PrintInfo(message string) {
	ColorBlue.Printf("ℹ %s\n", message)
}

func PrintHeader(message string) {
	ColorBold.Printf("\n%s\n", message)
	fmt.Println(strings.Repeat("=", len(message)))
}

func PrintSubHeader(message string) {
	ColorBold.Printf("\n%s\n", message)
	fmt.Println(strings.Repeat("-", len(message)))
}

// severityColor picks the Print* tone matching a flow event's severity.
func severityColor(sev string) *color.Color {
	switch sev {
	case "critical", "error":
		return ColorRed
	case "warning":
		return ColorYellow
	case "info":
		return ColorBlue
	default:
		return ColorCyan
	}
}
