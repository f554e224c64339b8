package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noesislabs/noesis-bridge/pkg/bridge"
	"github.com/noesislabs/noesis-bridge/pkg/config"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/render"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "noesis-bridge",
	Short: "Noesis bridge - MUX telemetry ingestion",
	Long: `Noesis bridge ingests live telemetry from a TinyMUX server over telnet,
extracts NOESIS marker events, and appends them durably to a
date-partitioned JSONL journal. It stays connected indefinitely,
reconnecting with backoff across network interruptions.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"noesis-bridge version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	runCmd.Flags().StringP("config", "c", "config.yaml", "bridge config file")
	renderCmd.Flags().StringP("config", "c", "renderer.yaml", "renderer config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the telemetry ingestion bridge",
	Long: `Connect to the MUX server, log in, and ingest NOESIS telemetry into
the journal until interrupted. The process never exits on connection
failures; it reconnects with exponential backoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		initLogging(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := bridge.NewRunner(cfg, Version)
		return runner.Run(ctx)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Follow the journal and render events for humans",
	Long: `Tail the current UTC day's journal file and print one formatted line
per event, resolving dbrefs through the identity map and applying the
configured templates. Resumes from the stored cursor on restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := render.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false, Output: os.Stderr})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		follower, err := render.NewFollower(cfg, os.Stdout)
		if err != nil {
			return err
		}
		defer follower.Close()

		return follower.Follow(ctx)
	},
}

// initLogging wires the global logger to the console and the daily
// rotating technical log under the configured output directory.
func initLogging(cfg *config.Config) {
	logsDir := filepath.Join(cfg.Output.OutDir, cfg.Output.LogsSubdir)
	daily := log.NewDailyFileWriter(logsDir, "bridge")

	var out io.Writer = io.MultiWriter(os.Stdout, daily)
	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: !cfg.Logging.Console,
		Output:     out,
	})
}
