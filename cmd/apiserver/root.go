package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleka07/onchain-agent/internal/logger"
	"github.com/aleka07/onchain-agent/pkg/config"
	"github.com/aleka07/onchain-agent/pkg/lifecycle"
	"github.com/aleka07/onchain-agent/pkg/metrics"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// execute runs the CLI with args and returns the process exit code.
func execute(args []string) int {
	exitCode := lifecycle.ExitOK
	root := newRootCmd(&exitCode)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		return lifecycle.ExitFailure
	}
	return exitCode
}

func newRootCmd(exitCode *int) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "apiserver",
		Short: "On-chain Security AI Agent API server",
		Long: `Runs the On-chain Security AI Agent API.

The server reads its configuration from the environment (and an optional
.env file), connects to storage, then serves HTTP until SIGINT or SIGTERM.

Environment:
  MONGODB_URI               storage connection string (required)
  PORT                      listener port (default 5000)
  SHUTDOWN_TIMEOUT          drain bound (default 10s)
  STORAGE_CONNECT_TIMEOUT   connect bound (default 10s)
  LOG_LEVEL                 DEBUG, INFO, WARN, ERROR (default INFO)
  LOG_FORMAT                text or json (default text)
  METRICS_ENABLED           expose /metrics (default true)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = runServer(cmd, envFile)
			return nil
		},
	}

	cmd.Flags().Int("port", config.DefaultPort, "listener port (overrides PORT)")
	cmd.Flags().Duration("shutdown-timeout", config.DefaultShutdownTimeout, "maximum drain duration (overrides SHUTDOWN_TIMEOUT)")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apiserver %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// runServer loads configuration, wires the controller and blocks until it exits.
func runServer(cmd *cobra.Command, envFile string) int {
	loader := config.NewLoader(envFile)
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		logger.Error("Failed to bind flags", "error", err)
		return lifecycle.ExitFailure
	}

	cfg, err := loader.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return lifecycle.ExitFailure
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		return lifecycle.ExitFailure
	}
	logger.Info("Starting On-chain Security AI Agent API", "version", Version, "commit", Commit)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	controller := lifecycle.New(cfg, lifecycle.Deps{Metrics: m})
	code := controller.Run(cmd.Context(), signals)
	logger.Info("Application shutdown finished", "exit_code", code)
	return code
}
