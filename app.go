package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"DevPanel/pkg/config"
	"DevPanel/pkg/dispatch"
	"DevPanel/pkg/executor"
	"DevPanel/pkg/journal"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/notify"
	"DevPanel/pkg/poller"
	"DevPanel/pkg/registry"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/session"
	"DevPanel/pkg/toolchain"
	"DevPanel/pkg/types"
)

// App is bound to the frontend and shared with the MCP server and CLI
type App struct {
	ctx      context.Context
	version  string
	headless bool

	cfgMu  sync.RWMutex
	cfg    *config.Config
	loader *config.Loader

	loop    *dispatch.Loop
	hub     *notify.Hub
	runner  *runner.Runner
	tc      toolchain.Toolchain
	ctrl    *session.Controller
	poller  *poller.Poller
	journal *journal.Journal

	// Device monitor
	deviceMonitorCancel context.CancelFunc
	deviceMonitorMu     sync.Mutex

	unsubscribe []func()
}

// NewApp creates an App; nothing runs until startup
func NewApp(version string, cfg *config.Config, loader *config.Loader) *App {
	return &App{
		version: version,
		cfg:     cfg,
		loader:  loader,
		ctx:     context.Background(),
	}
}

func pollOptions(cfg *config.Config) poller.Options {
	return poller.Options{
		Interval:        cfg.Poll.Interval,
		ListTimeout:     cfg.Poll.ListTimeout,
		NameTimeout:     cfg.Poll.NameTimeout,
		NameConcurrency: cfg.Poll.NameConcurrency,
		RefreshBurst:    cfg.Poll.RefreshBurst,
	}
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		OneShotTimeout:     cfg.Operations.OneShotTimeout,
		RebootRefreshDelay: cfg.Operations.RebootRefreshDelay,
	}
}

func newToolchain(cfg *config.Config) (toolchain.Toolchain, error) {
	tc, err := toolchain.For(cfg.PlatformValue())
	if err != nil {
		return nil, err
	}
	if a, ok := tc.(*toolchain.Android); ok {
		if cfg.Tools.ADB != "" {
			a.ADB = cfg.Tools.ADB
		}
		if cfg.Tools.Scrcpy != "" {
			a.Scrcpy = cfg.Tools.Scrcpy
		}
	}
	return tc, nil
}

// initPanel builds the loop, controller and poller. The poller is not
// started here; see StartDeviceMonitor.
func (a *App) initPanel() error {
	cfg := a.config()

	tc, err := newToolchain(cfg)
	if err != nil {
		return err
	}
	a.tc = tc

	dirs := append(append([]string{}, cfg.Tools.Dirs...), runner.DefaultDirs()...)
	a.runner = runner.New(runner.NewResolver(dirs...),
		runner.WithGrace(cfg.Operations.TerminateGrace),
		runner.WithTailLines(cfg.Operations.TailLines),
	)

	a.loop = dispatch.New()
	a.loop.Start()
	a.hub = notify.NewHub()

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.DataDir)
		if err != nil {
			logger.LogWarn("app").Err(err).Msg("Operation journal disabled")
		} else {
			a.journal = j
			a.unsubscribe = append(a.unsubscribe, a.hub.Subscribe(j))
		}
	}

	a.ctrl = session.New(session.Deps{
		Loop:      a.loop,
		Registry:  registry.New(),
		Toolchain: tc,
		Executor:  executor.New(a.loop, a.runner),
		Runner:    a.runner,
		Notifier:  a.hub,
	}, sessionOptions(cfg))

	a.poller = poller.New(tc, a.runner, a.ctrl.HandlePoll, pollOptions(cfg))
	a.ctrl.SetRefresher(a.poller)

	logger.LogInfo("app").
		Str("platform", string(tc.Platform())).
		Str("dataDir", cfg.DataDir).
		Bool("journal", a.journal != nil).
		Msg("Panel initialized")
	return nil
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.initPanel(); err != nil {
		logger.LogError("app").Err(err).Msg("Failed to initialize panel")
		return
	}
	if !a.headless {
		a.initEventBridge()
	}
	if a.loader != nil && a.loader.Watch(a.applyConfig) {
		logger.LogInfo("app").Str("file", a.loader.ConfigFile()).Msg("Watching config file")
	}
	go a.CheckDependencies()
	a.StartDeviceMonitor()
}

// Shutdown is called when the application is closing
func (a *App) Shutdown(ctx context.Context) {
	a.StopDeviceMonitor()
	if a.ctrl != nil {
		sctx, cancel := context.WithTimeout(ctx, a.config().Operations.TerminateGrace+2*time.Second)
		a.ctrl.Shutdown(sctx)
		cancel()
	}
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	if a.loop != nil {
		a.loop.Stop()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.LogWarn("app").Err(err).Msg("Error closing journal")
		}
	}
}

func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

// GetPlatform returns the platform this panel drives
func (a *App) GetPlatform() string {
	return string(a.config().PlatformValue())
}

// ========================================
// Devices
// ========================================

// GetDevices returns the registry contents in listing order
func (a *App) GetDevices() []types.Device {
	return a.ctrl.Devices()
}

// GetSelectedDevice returns the selected device id, or ""
func (a *App) GetSelectedDevice() string {
	d, ok := a.ctrl.Selection()
	if !ok {
		return ""
	}
	return d.ID
}

// SelectDevice selects deviceID; unknown ids clear the selection
func (a *App) SelectDevice(deviceID string) (string, error) {
	return a.ctrl.Select(deviceID)
}

// RefreshDevices asks for an immediate poll
func (a *App) RefreshDevices() bool {
	return a.poller.RefreshNow()
}

func (a *App) GetDeviceInfo(deviceID string) (types.DeviceInfo, error) {
	return a.ctrl.DeviceInfo(deviceID)
}

func (a *App) RebootDevice(deviceID string) error {
	return a.ctrl.Reboot(deviceID)
}

// ========================================
// Slot operations
// ========================================

// withMirrorDefaults fills unset scrcpy options from the configured
// defaults. Flags are additive.
func withMirrorDefaults(p, def types.OperationParams) types.OperationParams {
	if p.MaxSize == 0 {
		p.MaxSize = def.MaxSize
	}
	if p.BitRateMbps == 0 {
		p.BitRateMbps = def.BitRateMbps
	}
	p.AlwaysOnTop = p.AlwaysOnTop || def.AlwaysOnTop
	p.Fullscreen = p.Fullscreen || def.Fullscreen
	p.NoControl = p.NoControl || def.NoControl
	return p
}

// ToggleOperation starts slot, or stops it when it is already running
func (a *App) ToggleOperation(slot, deviceID string, params types.OperationParams) (types.SlotStatus, error) {
	s := types.Slot(slot)
	if s == types.SlotMirror || s == types.SlotRecording {
		params = withMirrorDefaults(params, a.config().MirrorParams())
	}
	return a.ctrl.Start(s, deviceID, params)
}

// StopOperation stops slot; an idle slot is left alone
func (a *App) StopOperation(slot string) error {
	return a.ctrl.Stop(types.Slot(slot))
}

func (a *App) GetOperationStatus() []types.SlotStatus {
	return a.ctrl.Status()
}

// ========================================
// One-shots
// ========================================

func (a *App) InstallPackage(deviceID, path string) error {
	return a.ctrl.Install(deviceID, path)
}

func (a *App) UninstallPackage(deviceID, packageID string) error {
	return a.ctrl.Uninstall(deviceID, packageID)
}

func (a *App) ListPackages(deviceID string) ([]types.AppPackage, error) {
	return a.ctrl.ListPackages(deviceID)
}

// TakeScreenshot saves a screenshot and returns its path. An empty dest
// saves into <data dir>/screenshots.
func (a *App) TakeScreenshot(deviceID, dest string) (string, error) {
	if dest == "" {
		dir := filepath.Join(a.config().DataDir, "screenshots")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create screenshot dir: %w", err)
		}
		dest = filepath.Join(dir, fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405")))
	}
	if err := a.ctrl.Screenshot(deviceID, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ========================================
// Remote files
// ========================================

func (a *App) ListFiles(deviceID, dir string) ([]types.FileEntry, error) {
	return a.ctrl.ListFiles(deviceID, dir)
}

func (a *App) PushFile(deviceID, localPath, remotePath string) error {
	return a.ctrl.PushFile(deviceID, localPath, remotePath)
}

// PullFile downloads remotePath and returns where it was saved. An empty
// localPath saves into <data dir>/downloads under the remote file name.
func (a *App) PullFile(deviceID, remotePath, localPath string) (string, error) {
	if localPath == "" {
		dir := filepath.Join(a.config().DataDir, "downloads")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create download dir: %w", err)
		}
		localPath = filepath.Join(dir, path.Base(remotePath))
	}
	if err := a.ctrl.PullFile(deviceID, remotePath, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

func (a *App) DeleteFile(deviceID, remotePath string) error {
	return a.ctrl.DeleteFile(deviceID, remotePath)
}

// ========================================
// Journal and diagnostics
// ========================================

func (a *App) RecentOperations(limit int) ([]journal.Operation, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("operation journal is disabled")
	}
	return a.journal.RecentOperations(limit)
}

func (a *App) DeviceHistory(deviceID string, limit int) ([]journal.DeviceEvent, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("operation journal is disabled")
	}
	return a.journal.DeviceHistory(deviceID, limit)
}

// CheckDependencies probes every tool the platform needs
func (a *App) CheckDependencies() []toolchain.ToolStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return toolchain.CheckTools(ctx, a.runner, a.tc)
}

// GetLogFilePath returns the active log file, or "" when file logging is off
func (a *App) GetLogFilePath() string {
	return logger.LogFilePath()
}
