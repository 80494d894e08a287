package main

import (
	"context"
	"time"

	"DevPanel/pkg/logger"
)

// journalPruneInterval is how often old journal rows are dropped
const journalPruneInterval = time.Hour

// StartDeviceMonitor starts periodic device polling and journal
// housekeeping. Calling it twice is a no-op.
func (a *App) StartDeviceMonitor() {
	a.deviceMonitorMu.Lock()
	defer a.deviceMonitorMu.Unlock()
	if a.deviceMonitorCancel != nil || a.poller == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.deviceMonitorCancel = cancel
	a.poller.Start(ctx)

	if a.journal != nil {
		if days := a.config().Journal.RetentionDays; days > 0 {
			go a.pruneJournal(ctx, time.Duration(days)*24*time.Hour)
		}
	}
	logger.DeviceLog().Msg("Device monitor started")
}

// StopDeviceMonitor stops polling and waits for in-flight polls
func (a *App) StopDeviceMonitor() {
	a.deviceMonitorMu.Lock()
	cancel := a.deviceMonitorCancel
	a.deviceMonitorCancel = nil
	a.deviceMonitorMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	a.poller.Stop()
	logger.DeviceLog().Msg("Device monitor stopped")
}

func (a *App) pruneJournal(ctx context.Context, maxAge time.Duration) {
	prune := func() {
		n, err := a.journal.Prune(maxAge)
		if err != nil {
			logger.LogWarn("journal").Err(err).Msg("Prune failed")
			return
		}
		if n > 0 {
			logger.LogInfo("journal").Int64("rows", n).Msg("Pruned old journal rows")
		}
	}
	prune()

	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
