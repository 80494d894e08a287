// Package config loads DevPanel settings from an optional file, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/types"
)

const (
	AppName   = "DevPanel"
	EnvPrefix = "DEVPANEL"
)

// Config holds all configuration for the application.
type Config struct {
	Platform   string           `mapstructure:"platform"`
	DataDir    string           `mapstructure:"data_dir"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Poll       PollConfig       `mapstructure:"poll"`
	Operations OperationsConfig `mapstructure:"operations"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Journal    JournalConfig    `mapstructure:"journal"`
}

// ToolsConfig controls where device tools are looked up
type ToolsConfig struct {
	// Dirs are searched before PATH
	Dirs   []string `mapstructure:"dirs"`
	ADB    string   `mapstructure:"adb"`
	Scrcpy string   `mapstructure:"scrcpy"`
}

type PollConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ListTimeout     time.Duration `mapstructure:"list_timeout"`
	NameTimeout     time.Duration `mapstructure:"name_timeout"`
	NameConcurrency int           `mapstructure:"name_concurrency"`
	RefreshBurst    int           `mapstructure:"refresh_burst"`
}

type OperationsConfig struct {
	OneShotTimeout     time.Duration `mapstructure:"oneshot_timeout"`
	TerminateGrace     time.Duration `mapstructure:"terminate_grace"`
	TailLines          int           `mapstructure:"tail_lines"`
	RebootRefreshDelay time.Duration `mapstructure:"reboot_refresh_delay"`
}

// MirrorConfig holds the default scrcpy options
type MirrorConfig struct {
	MaxSize     int     `mapstructure:"max_size"`
	BitRateMbps float64 `mapstructure:"bit_rate_mbps"`
	AlwaysOnTop bool    `mapstructure:"always_on_top"`
	Fullscreen  bool    `mapstructure:"fullscreen"`
	NoControl   bool    `mapstructure:"no_control"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type JournalConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// DefaultDir is the per-user settings directory
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "."+strings.ToLower(AppName))
	}
	return filepath.Join(dir, AppName)
}

// Loader keeps the viper instance so the file can be watched after the
// first load.
type Loader struct {
	v *viper.Viper
}

// NewLoader reads configPath, or config.{yaml,json,toml} from DefaultDir
// and the working directory when configPath is empty. A missing file is
// not an error.
func NewLoader(configPath string) (*Loader, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return &Loader{v: v}, nil
}

// Load is NewLoader followed by Config
func Load(configPath string) (*Config, error) {
	l, err := NewLoader(configPath)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// ConfigFile returns the file that was read, or "" when running on
// defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Config decodes, post-processes and validates the current settings
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	postProcess(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls onChange with the reloaded config whenever the file
// changes. Invalid edits are logged and ignored. It reports false when
// there is no file to watch.
func (l *Loader) Watch(onChange func(*Config)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.Config()
		if err != nil {
			logger.LogWarn("config").Str("file", e.Name).Err(err).Msg("Ignoring invalid config change")
			return
		}
		logger.LogInfo("config").Str("file", e.Name).Str("op", e.Op.String()).Msg("Config reloaded")
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform", string(types.PlatformAndroid))
	v.SetDefault("data_dir", "")

	v.SetDefault("tools.dirs", []string{})
	v.SetDefault("tools.adb", "adb")
	v.SetDefault("tools.scrcpy", "scrcpy")

	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("poll.list_timeout", 5*time.Second)
	v.SetDefault("poll.name_timeout", 3*time.Second)
	v.SetDefault("poll.name_concurrency", 4)
	v.SetDefault("poll.refresh_burst", 3)

	v.SetDefault("operations.oneshot_timeout", 60*time.Second)
	v.SetDefault("operations.terminate_grace", 3*time.Second)
	v.SetDefault("operations.tail_lines", 200)
	v.SetDefault("operations.reboot_refresh_delay", 5*time.Second)

	v.SetDefault("mirror.max_size", 0)
	v.SetDefault("mirror.bit_rate_mbps", 0.0)
	v.SetDefault("mirror.always_on_top", false)
	v.SetDefault("mirror.fullscreen", false)
	v.SetDefault("mirror.no_control", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.compress", true)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.retention_days", 30)
}

func postProcess(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDir()
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
}

// Validate checks value ranges and enumerations
func Validate(cfg *Config) error {
	if _, err := types.ParsePlatform(cfg.Platform); err != nil {
		return err
	}
	if cfg.Poll.Interval < time.Second {
		return fmt.Errorf("poll.interval must be at least 1s, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.ListTimeout <= 0 || cfg.Poll.NameTimeout <= 0 {
		return fmt.Errorf("poll timeouts must be positive")
	}
	if cfg.Poll.NameConcurrency < 1 {
		return fmt.Errorf("poll.name_concurrency must be at least 1")
	}
	if cfg.Operations.OneShotTimeout <= 0 {
		return fmt.Errorf("operations.oneshot_timeout must be positive")
	}
	if cfg.Operations.TerminateGrace < 0 {
		return fmt.Errorf("operations.terminate_grace must not be negative")
	}
	if cfg.Operations.TailLines < 1 {
		return fmt.Errorf("operations.tail_lines must be at least 1")
	}
	if cfg.Mirror.MaxSize < 0 || cfg.Mirror.BitRateMbps < 0 {
		return fmt.Errorf("mirror.max_size and mirror.bit_rate_mbps must not be negative")
	}
	return nil
}

// PlatformValue returns the validated platform
func (c *Config) PlatformValue() types.Platform {
	p, _ := types.ParsePlatform(c.Platform)
	return p
}

// MirrorParams returns the configured scrcpy defaults as operation params
func (c *Config) MirrorParams() types.OperationParams {
	return types.OperationParams{
		MaxSize:     c.Mirror.MaxSize,
		BitRateMbps: c.Mirror.BitRateMbps,
		AlwaysOnTop: c.Mirror.AlwaysOnTop,
		Fullscreen:  c.Mirror.Fullscreen,
		NoControl:   c.Mirror.NoControl,
	}
}

// LogConfig translates the logging section for logger.InitLogger
func (c *Config) LogConfig() logger.LogConfig {
	lc := logger.DefaultLogConfig()
	lc.Level = logger.ParseLogLevel(c.Logging.Level)
	if c.Logging.File {
		lc = logger.PersistentLogConfig(c.DataDir)
		lc.Level = logger.ParseLogLevel(c.Logging.Level)
	}
	if c.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = c.Logging.MaxSizeMB
	}
	if c.Logging.MaxAgeDays > 0 {
		lc.MaxAgeDays = c.Logging.MaxAgeDays
	}
	if c.Logging.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.MaxBackups
	}
	lc.Compress = c.Logging.Compress
	return lc
}
