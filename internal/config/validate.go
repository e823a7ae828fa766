package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop startup from values
// that were corrected or can be ignored.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// ValidateTiered checks the config. Out-of-range numbers are clamped and
// reported as warnings; values that cannot be corrected are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult
	warn := func(format string, args ...any) { r.Warnings = append(r.Warnings, fmt.Errorf(format, args...)) }
	fatal := func(format string, args ...any) { r.Fatals = append(r.Fatals, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.DataDir) == "" {
		fatal("data_dir must not be empty")
	}

	if c.Server.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
			fatal("server.listen_addr %q is not host:port: %w", c.Server.ListenAddr, err)
		}
	}

	if _, err := desktop.SelectorFromValue(c.Screenshot.SelectedMonitor); err != nil {
		warn("screenshot.selected_monitor: %w, capturing all monitors", err)
		c.Screenshot.SelectedMonitor = nil
	}

	if c.Screenshot.SettleDelayMs < 0 {
		warn("screenshot.settle_delay_ms %d is below minimum 0, clamping", c.Screenshot.SettleDelayMs)
		c.Screenshot.SettleDelayMs = 0
	} else if c.Screenshot.SettleDelayMs > 5000 {
		warn("screenshot.settle_delay_ms %d exceeds maximum 5000, clamping", c.Screenshot.SettleDelayMs)
		c.Screenshot.SettleDelayMs = 5000
	}

	if c.Screenshot.ToolTimeoutSeconds < 1 {
		warn("screenshot.tool_timeout_seconds %d is below minimum 1, clamping", c.Screenshot.ToolTimeoutSeconds)
		c.Screenshot.ToolTimeoutSeconds = 1
	} else if c.Screenshot.ToolTimeoutSeconds > 120 {
		warn("screenshot.tool_timeout_seconds %d exceeds maximum 120, clamping", c.Screenshot.ToolTimeoutSeconds)
		c.Screenshot.ToolTimeoutSeconds = 120
	}

	for key, argv := range map[string][]string{
		"ui.suspend_command": c.UI.SuspendCommand,
		"ui.resume_command":  c.UI.ResumeCommand,
	} {
		if len(argv) > 0 && strings.TrimSpace(argv[0]) == "" {
			fatal("%s has an empty program name", key)
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warn("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}

	if c.LogMaxSizeMB < 1 {
		warn("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1
	} else if c.LogMaxSizeMB > 1024 {
		warn("log_max_size_mb %d exceeds maximum 1024, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1024
	}

	if c.LogMaxBackups < 0 {
		warn("log_max_backups %d is below minimum 0, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 0
	} else if c.LogMaxBackups > 20 {
		warn("log_max_backups %d exceeds maximum 20, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 20
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		warn("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	return r
}

// Validate runs ValidateTiered, logs every problem as a warning and returns
// them all.
func (c *Config) Validate() []error {
	errs := c.ValidateTiered().AllErrors()
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}
	return errs
}
