package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/bandstand/pkg/api"
	"github.com/cuemby/bandstand/pkg/config"
	"github.com/cuemby/bandstand/pkg/events"
	"github.com/cuemby/bandstand/pkg/log"
	"github.com/cuemby/bandstand/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// shutdownTimeout bounds graceful shutdown of the API server
const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bandstand",
	Short: "Bandstand - real-time relay between a music bot and its dashboards",
	Long: `Bandstand sits between a music bot (the producer) and any number of
web dashboards (subscribers). It keeps the bot's latest reported state and
recent logs, fans every update out to connected dashboards, and forwards
dashboard commands to the bot.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Bandstand version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay: the dashboard REST API, the /ws subscriber channel,
the /ws/producer channel and the health and metrics endpoints, all on one
listener.

Configuration comes from --config (YAML) with flags taking precedence.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().String("addr", "", "Listen address (default :5000)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("log-json", true, "Log as JSON instead of console output")
	serveCmd.Flags().Int("log-capacity", 0, "Number of producer log entries kept in memory (default 1000)")
}

// loadServeConfig reads the config file and applies flag overrides
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("log-capacity") {
		cfg.Hub.LogCapacity, _ = flags.GetInt("log-capacity")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(cfg.LogConfig())
	metrics.SetVersion(Version)
	logger := log.WithComponent("serve")

	hub := events.NewHub(cfg.EventsConfig())
	hub.Start()

	collector := events.NewMetricsCollector(hub, 15*time.Second)
	collector.Start()

	apiServer := api.NewServer(hub, cfg)
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.Server.Addr); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("version", Version).
		Int("log_capacity", cfg.Hub.LogCapacity).
		Msg("Relay started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		log.Errorf("Shutting down", runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Errorf("API server did not shut down cleanly", err)
	}
	collector.Stop()
	// Stopping the hub closes every open WebSocket channel
	hub.Stop()

	log.Info("Shutdown complete")
	return runErr
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Bandstand version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
