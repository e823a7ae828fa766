package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/snapshot-agent/internal/capture"
	"github.com/breeze-rmm/snapshot-agent/internal/config"
	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
	"github.com/breeze-rmm/snapshot-agent/internal/queue"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "snapshot-agent",
	Short: "Screen capture agent",
	Long:  `snapshot-agent captures screenshots across display backends and keeps them in two bounded queues for analysis`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snapshot-agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/snapshot-agent/snapshot-agent.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(monitorsCmd)
	rootCmd.AddCommand(selectMonitorCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// agent is everything a command needs to capture.
type agent struct {
	store    *config.Store
	platform desktop.Platform
	strategy *capture.Strategy
	logs     io.Closer
}

// openStore loads config and initializes logging from it.
func openStore() (*config.Store, io.Closer, error) {
	store, err := config.Open(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg := store.Config()
	if result := cfg.ValidateTiered(); result.HasFatals() {
		return nil, nil, fmt.Errorf("invalid config: %v", result.Fatals)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	closer, err := logging.Setup(cfg.LogFormat, level, cfg.LogFileOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.LogFile, err)
	}
	return store, closer, nil
}

func newAgent(ctx context.Context) (*agent, error) {
	store, closer, err := openStore()
	if err != nil {
		return nil, err
	}
	platform := desktop.DetectPlatform(ctx)
	cfg := store.Config()
	return &agent{
		store:    store,
		platform: platform,
		strategy: capture.NewPlatformStrategy(platform, cfg.ToolTimeout()),
		logs:     closer,
	}, nil
}

func (a *agent) close() { _ = a.logs.Close() }

// manager builds the queue manager. A nil sel reads the configured
// selector on every capture.
func (a *agent) manager(sel queue.SelectorSource, notify queue.Notifier) (*queue.Manager, error) {
	cfg := a.store.Config()
	if sel == nil {
		sel = a.store
	}
	// A configured 0 means no settle delay, not the default.
	settle := cfg.SettleDelay()
	if settle == 0 {
		settle = -1
	}
	return queue.New(queue.Options{
		DataDir:     cfg.DataDir,
		Capturer:    a.strategy,
		Selector:    sel,
		Platform:    a.platform,
		SettleDelay: settle,
		Notify:      notify,
	})
}

func (a *agent) hooks(ctx context.Context) queue.Hooks {
	cfg := a.store.Config()
	return queue.CommandHooks(ctx, desktop.NewExecRunner(cfg.ToolTimeout()), cfg.UI.SuspendCommand, cfg.UI.ResumeCommand)
}
