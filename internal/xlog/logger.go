// Package xlog provides the structured Logger used across every
// subsystem, modeled on core.Logger / telemetry.TelemetryLogger from the
// teacher: plain text for local development, JSON when running under
// Kubernetes, and a rate-limited Error path so a failing dependency
// cannot flood stdout.
package xlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logger is the structured logging interface the Observation Bus accepts.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// NoOpLogger discards everything. It is the default for components that
// are not given an explicit Logger.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}

// ProductionLogger is the default non-test Logger implementation.
type ProductionLogger struct {
	component string
	level     string
	format    string
	output    io.Writer
	mu        sync.Mutex

	errorLimiter *rate.Limiter
}

// NewProductionLogger creates a logger for the given component name.
// Format auto-detects Kubernetes (JSON) vs local (text); GOMIND-style
// env vars are intentionally not reused here since this is a different
// service, but the same auto-detection idea is kept under this
// project's own env var.
func NewProductionLogger(component string) *ProductionLogger {
	level := strings.ToUpper(os.Getenv("COORDINATOR_LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if f := os.Getenv("COORDINATOR_LOG_FORMAT"); f != "" {
		format = f
	}
	return &ProductionLogger{
		component:    component,
		level:        level,
		format:       format,
		output:       os.Stdout,
		errorLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// WithComponent returns a copy of the logger tagged with a different
// component name, mirroring core.ComponentAwareLogger's WithComponent.
func (l *ProductionLogger) WithComponent(component string) *ProductionLogger {
	return &ProductionLogger{
		component:    component,
		level:        l.level,
		format:       l.format,
		output:       l.output,
		errorLimiter: l.errorLimiter,
	}
}

// SetOutput redirects logger output; used by tests.
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if !l.errorLimiter.Allow() {
		return
	}
	l.log("ERROR", msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if l.level != "DEBUG" {
		return
	}
	l.log("DEBUG", msg, fields)
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func (l *ProductionLogger) shouldLog(level string) bool {
	cur, ok1 := levelRank[l.level]
	msg, ok2 := levelRank[level]
	if !ok1 || !ok2 {
		return true
	}
	return msg >= cur
}

func (l *ProductionLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shouldLog(level) {
		return
	}

	ts := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": ts,
			"level":     level,
			"component": l.component,
			"message":   msg,
		}
		for k, v := range fields {
			if _, reserved := entry[k]; !reserved {
				entry[k] = v
			}
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	var b strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintf(l.output, "%s [%s] [%s] %s%s\n", ts, level, l.component, msg, b.String())
}
