package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

const (
	fileName  = "snapshot-agent"
	envPrefix = "SNAPSHOT"
)

type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Rotation limits for LogFile.
	LogMaxSizeMB  int `mapstructure:"log_max_size_mb"`
	LogMaxBackups int `mapstructure:"log_max_backups"`

	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	UI         UIConfig         `mapstructure:"ui"`
	Server     ServerConfig     `mapstructure:"server"`
}

type ScreenshotConfig struct {
	// SelectedMonitor is an int, a string or unset. The stored type is
	// preserved across saves.
	SelectedMonitor    any `mapstructure:"selected_monitor"`
	SettleDelayMs      int `mapstructure:"settle_delay_ms"`
	ToolTimeoutSeconds int `mapstructure:"tool_timeout_seconds"`
}

// UIConfig holds optional argv commands run around each capture to hide
// and restore the user's overlay window.
type UIConfig struct {
	SuspendCommand []string `mapstructure:"suspend_command"`
	ResumeCommand  []string `mapstructure:"resume_command"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

func Default() *Config {
	return &Config{
		DataDir:       configDir(),
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  logging.DefaultMaxSizeMB,
		LogMaxBackups: logging.DefaultMaxBackups,
		Screenshot: ScreenshotConfig{
			SettleDelayMs:      200,
			ToolTimeoutSeconds: 10,
		},
		Server: ServerConfig{ListenAddr: "127.0.0.1:7420"},
	}
}

// Selector returns the configured monitor selector. Invalid values are
// reported by Validate and read as None.
func (c *Config) Selector() desktop.Selector {
	sel, err := desktop.SelectorFromValue(c.Screenshot.SelectedMonitor)
	if err != nil {
		return desktop.None()
	}
	return sel
}

// SetSelector stores sel in its persisted form.
func (c *Config) SetSelector(sel desktop.Selector) {
	c.Screenshot.SelectedMonitor = sel.Value()
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Screenshot.SettleDelayMs) * time.Millisecond
}

// LogFileOptions returns the file output settings for logging.Setup.
func (c *Config) LogFileOptions() logging.FileOptions {
	return logging.FileOptions{Path: c.LogFile, MaxSizeMB: c.LogMaxSizeMB, MaxBackups: c.LogMaxBackups}
}

func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Screenshot.ToolTimeoutSeconds) * time.Second
}

func Load(cfgFile string) (*Config, error) {
	cfg, _, err := load(cfgFile)
	return cfg, err
}

// load reads cfgFile (or the default search path) into a fresh viper
// instance and returns both so callers can keep watching the file.
func load(cfgFile string) (*Config, *viper.Viper, error) {
	v := newViper(cfgFile)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func newViper(cfgFile string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_max_size_mb", d.LogMaxSizeMB)
	v.SetDefault("log_max_backups", d.LogMaxBackups)
	v.SetDefault("screenshot.settle_delay_ms", d.Screenshot.SettleDelayMs)
	v.SetDefault("screenshot.tool_timeout_seconds", d.Screenshot.ToolTimeoutSeconds)
	v.SetDefault("ui.suspend_command", []string{})
	v.SetDefault("ui.resume_command", []string{})
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("screenshot.selected_monitor")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// path returns the file a viper instance was loaded from, or the default
// location when no file exists yet.
func path(v *viper.Viper, cfgFile string) string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDir(), fileName+".yaml")
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("data_dir", cfg.DataDir)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)
	v.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	v.Set("log_max_backups", cfg.LogMaxBackups)
	if cfg.Screenshot.SelectedMonitor != nil {
		v.Set("screenshot.selected_monitor", cfg.Screenshot.SelectedMonitor)
	}
	v.Set("screenshot.settle_delay_ms", cfg.Screenshot.SettleDelayMs)
	v.Set("screenshot.tool_timeout_seconds", cfg.Screenshot.ToolTimeoutSeconds)
	v.Set("ui.suspend_command", cfg.UI.SuspendCommand)
	v.Set("ui.resume_command", cfg.UI.ResumeCommand)
	v.Set("server.listen_addr", cfg.Server.ListenAddr)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), fileName+".yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}
	return os.Chmod(cfgPath, 0600)
}

// configDir is the per-user application directory. It doubles as the
// default data dir, matching where desktop apps keep user data.
func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "."
	}
	return filepath.Join(dir, "snapshot-agent")
}
