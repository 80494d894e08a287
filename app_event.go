package main

import (
	"DevPanel/pkg/config"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/notify"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// eventPrefix namespaces panel notifications on the Wails event bus
const eventPrefix = "devpanel:"

// wailsEventName maps a notification kind to the frontend event name
func wailsEventName(k notify.Kind) string {
	return eventPrefix + string(k)
}

// initEventBridge forwards every notification to the frontend. Output
// lines arrive at process speed, so the frontend is expected to batch
// its renders.
func (a *App) initEventBridge() {
	ctx := a.ctx
	a.unsubscribe = append(a.unsubscribe, a.hub.Subscribe(notify.ObserverFunc(func(n notify.Notification) {
		wailsRuntime.EventsEmit(ctx, wailsEventName(n.Kind), n)
	})))
}

// applyConfig takes a reloaded config. Poll cadence and mirror defaults
// apply live; everything else needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	if a.poller != nil && cfg.Poll.Interval != old.Poll.Interval {
		a.poller.SetInterval(cfg.Poll.Interval)
	}
	if cfg.Platform != old.Platform || cfg.DataDir != old.DataDir {
		logger.LogWarn("app").
			Str("platform", cfg.Platform).
			Str("dataDir", cfg.DataDir).
			Msg("Platform and data directory changes take effect after restart")
	}
	if !a.headless && a.ctx != nil && a.hub != nil {
		wailsRuntime.EventsEmit(a.ctx, eventPrefix+"config-changed", cfg)
	}
}
