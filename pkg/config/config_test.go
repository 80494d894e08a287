package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"DevPanel/pkg/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("explicit missing file should fail, got %+v", cfg)
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlatformValue() != types.PlatformAndroid {
		t.Errorf("default platform = %q", cfg.Platform)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("default poll.interval = %s, want 5s", cfg.Poll.Interval)
	}
	if cfg.Operations.TailLines != 200 {
		t.Errorf("default tail_lines = %d", cfg.Operations.TailLines)
	}
	if cfg.DataDir == "" {
		t.Error("data_dir should default to the settings directory")
	}
	if !cfg.Journal.Enabled {
		t.Error("journal should be enabled by default")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
platform: iOS
data_dir: "` + dir + `"
tools:
  dirs: ["/opt/platform-tools"]
poll:
  interval: 10s
  name_timeout: 1500ms
mirror:
  max_size: 1024
  bit_rate_mbps: 8
  no_control: true
logging:
  level: debug
  file: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlatformValue() != types.PlatformIOS {
		t.Errorf("platform = %q", cfg.Platform)
	}
	if cfg.Poll.Interval != 10*time.Second || cfg.Poll.NameTimeout != 1500*time.Millisecond {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if len(cfg.Tools.Dirs) != 1 || cfg.Tools.Dirs[0] != "/opt/platform-tools" {
		t.Errorf("tools.dirs = %v", cfg.Tools.Dirs)
	}
	p := cfg.MirrorParams()
	if p.MaxSize != 1024 || p.BitRateMbps != 8 || !p.NoControl {
		t.Errorf("MirrorParams = %+v", p)
	}
	if lc := cfg.LogConfig(); lc.File || lc.Level != 0 {
		t.Errorf("LogConfig = %+v", lc)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("poll:\n  interval: 10s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVPANEL_POLL_INTERVAL", "30s")
	t.Setenv("DEVPANEL_PLATFORM", "ios")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != 30*time.Second {
		t.Errorf("poll.interval = %s, want env override 30s", cfg.Poll.Interval)
	}
	if cfg.PlatformValue() != types.PlatformIOS {
		t.Errorf("platform = %q", cfg.Platform)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Platform:   "android",
			Poll:       PollConfig{Interval: 5 * time.Second, ListTimeout: time.Second, NameTimeout: time.Second, NameConcurrency: 1},
			Operations: OperationsConfig{OneShotTimeout: time.Minute, TailLines: 10},
		}
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown platform", func(c *Config) { c.Platform = "symbian" }},
		{"fast poll", func(c *Config) { c.Poll.Interval = 100 * time.Millisecond }},
		{"zero concurrency", func(c *Config) { c.Poll.NameConcurrency = 0 }},
		{"zero tail", func(c *Config) { c.Operations.TailLines = 0 }},
		{"negative size", func(c *Config) { c.Mirror.MaxSize = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := Validate(c); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("poll:\n  interval: 5s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got *Config
	if !l.Watch(func(c *Config) {
		mu.Lock()
		got = c
		mu.Unlock()
	}) {
		t.Fatal("Watch refused an existing file")
	}

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("poll:\n  interval: 12s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		c := got
		mu.Unlock()
		if c != nil && c.Poll.Interval == 12*time.Second {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("config change not observed")
}

func TestWatchWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	l, err := NewLoader("")
	if err != nil {
		t.Fatal(err)
	}
	if l.Watch(func(*Config) {}) {
		t.Error("Watch should report false with no config file")
	}
}
