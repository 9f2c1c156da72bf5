// Command coordinatord runs the multi-agent coordination service:
// by default a tool-RPC server over stdio or HTTP, plus operator
// commands (dashboard, demo, stats, analytics) against the same
// in-process engine set. Grounded on KooshaPari-KaskMan's cmd/cli
// root-command tree (cmd/cli/main.go), narrowed from a remote API
// client to direct in-process engine wiring since coordinatord is the
// server, not a client of one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net/http"

	"github.com/spf13/cobra"
	"github.com/xenocomm/coordinator/internal/alignment"
	"github.com/xenocomm/coordinator/internal/cliapp"
	"github.com/xenocomm/coordinator/internal/config"
	"github.com/xenocomm/coordinator/internal/emergence"
	"github.com/xenocomm/coordinator/internal/model"
	"github.com/xenocomm/coordinator/internal/negotiation"
	"github.com/xenocomm/coordinator/internal/observation"
	"github.com/xenocomm/coordinator/internal/orchestrator"
	"github.com/xenocomm/coordinator/internal/rpc"
	"github.com/xenocomm/coordinator/internal/workflowrunner"
	"github.com/xenocomm/coordinator/internal/xlog"
)

var (
	useHTTP       bool
	port          int
	dashboardMode string
	refreshSec    int
	windowMin     int
	cfgPath       string
)

// services bundles the engines and the Observation Bus shared by every
// command — the tool-RPC server and the operator commands observe and
// drive the same in-process state.
type services struct {
	cfg    *config.Config
	bus    *observation.Bus
	scorer *alignment.Scorer
	neg    *negotiation.Engine
	em     *emergence.Engine
	orch   *orchestrator.Orchestrator
	runner *workflowrunner.Runner
	logger xlog.Logger
}

func buildServices() (*services, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if useHTTP {
		cfg.Transport.HTTP = true
	}
	if port != 0 {
		cfg.Transport.Port = port
	}

	logger := xlog.NewProductionLogger("coordinatord")
	bus := observation.New(cfg.Bus, logger)

	if cfg.Bus.PersistenceEnabled {
		sink, err := observation.NewFileSink(cfg.Bus.PersistenceDir, cfg.Bus.PersistenceGzip, cfg.Bus.PersistenceMaxBytes, cfg.Bus.PersistenceBufferSize)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		bus.SetSink(sink)
	} else if cfg.Bus.RedisSinkEnabled {
		sink, err := observation.NewRedisSink(cfg.Bus.RedisURL, cfg.Bus.RedisStream, 1024)
		if err != nil {
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		bus.SetSink(sink)
	}

	publish := func(e model.FlowEvent) {
		bus.Publish(context.Background(), e)
	}

	scorer, err := alignment.New(alignment.Weights{
		Knowledge:   cfg.Alignment.KnowledgeWeight,
		Goals:       cfg.Alignment.GoalsWeight,
		Terminology: cfg.Alignment.TerminologyWeight,
		Assumptions: cfg.Alignment.AssumptionsWeight,
		Context:     cfg.Alignment.ContextWeight,
	})
	if err != nil {
		return nil, fmt.Errorf("alignment scorer: %w", err)
	}

	neg := negotiation.New(cfg.Negotiation, publish)
	em := emergence.New(cfg.Emergence, publish)
	orch := orchestrator.New(cfg.Gate, scorer, neg, em, publish)
	runner := workflowrunner.New(publish)
	workflowrunner.RegisterBuiltins(runner, orch, neg, em)

	return &services{
		cfg: cfg, bus: bus, scorer: scorer, neg: neg, em: em,
		orch: orch, runner: runner, logger: logger,
	}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coordinatord",
		Short: "Multi-agent coordination service",
		Long:  "coordinatord runs the alignment, negotiation, and protocol-emergence engines behind a tool-RPC surface, with operator commands for observing live state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&useHTTP, "http", false, "serve tool-RPC over HTTP instead of stdio")
	root.PersistentFlags().IntVar(&port, "port", 0, "HTTP port (with --http)")
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "optional YAML config file")

	root.AddCommand(newDashboardCmd("dashboard"))
	root.AddCommand(newDashboardCmd("dash"))
	root.AddCommand(newDashboardCmd("observe"))
	root.AddCommand(newDemoCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newAnalyticsCmd())

	return root
}

func runServer(ctx context.Context) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}

	busCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.bus.Run(busCtx)

	reg := rpc.NewRegistry(svc.scorer, svc.neg, svc.em, svc.orch, svc.runner)

	if svc.cfg.Transport.HTTP {
		addr := fmt.Sprintf(":%d", svc.cfg.Transport.Port)
		cliapp.PrintInfo(fmt.Sprintf("serving tool-RPC over HTTP on %s", addr))
		srv := &http.Server{Addr: addr, Handler: rpc.NewHTTPHandler(reg)}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
		case <-sigCh:
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
			_ = svc.bus.Stop(5 * time.Second)
		}
		return nil
	}

	cliapp.PrintInfo("serving tool-RPC over stdio")
	err = rpc.ServeStdio(os.Stdin, os.Stdout, reg)
	_ = svc.bus.Stop(5 * time.Second)
	return err
}

func newDashboardCmd(use string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Run the interactive coordination monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			busCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go svc.bus.Run(busCtx)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cliapp.RunDashboard(ctx, svc.bus, svc.orch, svc.em, dashboardMode, time.Duration(refreshSec)*time.Second)
		},
	}
	cmd.Flags().StringVarP(&dashboardMode, "mode", "m", "text", "dashboard backend")
	cmd.Flags().IntVarP(&refreshSec, "refresh", "r", 2, "refresh interval in seconds")
	return cmd
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated-activity generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			busCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go svc.bus.Run(busCtx)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cliapp.RunDemo(ctx, svc.orch, svc.em)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print bus statistics once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			cliapp.PrintStats(svc.bus)
			return nil
		},
	}
}

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print aggregate metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}
			cliapp.PrintAnalytics(svc.bus, svc.neg, windowMin)
			return nil
		},
	}
	cmd.Flags().IntVar(&windowMin, "window", 15, "trailing window in minutes")
	return cmd
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		cliapp.PrintError(err.Error())
		os.Exit(1)
	}
}
