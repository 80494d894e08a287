// Package session coordinates device selection and the long-running
// operations started against devices.
//
// All slot state lives on the dispatch loop. Public methods hop onto the
// loop with Call, so they must not be invoked from an observer callback.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DevPanel/pkg/dispatch"
	"DevPanel/pkg/executor"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/notify"
	"DevPanel/pkg/poller"
	"DevPanel/pkg/registry"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/toolchain"
	"DevPanel/pkg/types"
)

// Refresher triggers an out-of-cadence device poll
type Refresher interface {
	RefreshNow() bool
}

type Options struct {
	OneShotTimeout     time.Duration
	RebootRefreshDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		OneShotTimeout:     60 * time.Second,
		RebootRefreshDelay: 5 * time.Second,
	}
}

type Deps struct {
	Loop      *dispatch.Loop
	Registry  *registry.Registry
	Toolchain toolchain.Toolchain
	Executor  *executor.Executor
	Runner    poller.CommandRunner
	Notifier  notify.Observer
	Refresher Refresher
}

type slotEntry struct {
	state     types.SlotState
	run       *executor.Run
	deviceID  string
	startedAt time.Time
}

type Controller struct {
	loop     *dispatch.Loop
	reg      *registry.Registry
	tc       toolchain.Toolchain
	exec     *executor.Executor
	runner   poller.CommandRunner
	notifier notify.Observer
	opts     Options

	refresher Refresher

	ctx    context.Context
	cancel context.CancelFunc

	// owned by the loop
	slots       map[types.Slot]*slotEntry
	pollFailing bool
	// highest poll seq seen, failed or not
	lastPollSeq uint64
}

func New(d Deps, opts Options) *Controller {
	def := DefaultOptions()
	if opts.OneShotTimeout <= 0 {
		opts.OneShotTimeout = def.OneShotTimeout
	}
	if opts.RebootRefreshDelay <= 0 {
		opts.RebootRefreshDelay = def.RebootRefreshDelay
	}
	if d.Notifier == nil {
		d.Notifier = notify.ObserverFunc(func(notify.Notification) {})
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		loop:      d.Loop,
		reg:       d.Registry,
		tc:        d.Toolchain,
		exec:      d.Executor,
		runner:    d.Runner,
		notifier:  d.Notifier,
		refresher: d.Refresher,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[types.Slot]*slotEntry),
	}
	for _, s := range types.AllSlots {
		c.slots[s] = &slotEntry{state: types.StateIdle}
	}
	return c
}

// SetRefresher wires the poller after construction; the poller's sink is
// the controller itself.
func (c *Controller) SetRefresher(r Refresher) {
	c.loop.Call(func() { c.refresher = r })
}

// Platform reports which toolchain this controller drives
func (c *Controller) Platform() types.Platform { return c.tc.Platform() }

func (c *Controller) emit(n notify.Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	n.Platform = string(c.tc.Platform())
	c.notifier.Notify(n)
}

// reject emits the single error notification for a refused request
func (c *Controller) reject(kind types.FailureKind, slot types.Slot, op, deviceID, detail string, err error) *Error {
	e := newError(kind, detail, err)
	logger.LogWarn("session").
		Str("slot", string(slot)).
		Str("op", op).
		Str("deviceId", deviceID).
		Str("kind", string(kind)).
		Msg(e.Error())
	c.emit(notify.Notification{
		Kind:      notify.Error,
		Slot:      slot,
		Operation: op,
		DeviceID:  deviceID,
		Failure:   kind,
		Detail:    e.Error(),
	})
	return e
}

func (c *Controller) call(fn func()) error {
	if err := c.loop.Call(fn); err != nil {
		return newError(types.FailureInternal, "dispatch loop unavailable", err)
	}
	return nil
}

// gate resolves deviceID (empty means the selection) and checks that the
// device can take commands. Runs on the loop.
func (c *Controller) gate(deviceID string) (types.Device, types.FailureKind, string) {
	if deviceID == "" {
		deviceID = c.reg.SelectedID()
		if deviceID == "" {
			return types.Device{}, types.FailureNoDeviceSelected, "no device selected"
		}
	}
	dev, ok := c.reg.Lookup(deviceID)
	if !ok {
		return types.Device{ID: deviceID}, types.FailureDeviceGone, fmt.Sprintf("device %s is no longer connected", deviceID)
	}
	if !dev.Usable() {
		return dev, types.FailureDeviceNotReady, fmt.Sprintf("device %s is %s", deviceID, dev.Status)
	}
	return dev, types.FailureNone, ""
}

// ========================================
// Devices and selection
// ========================================

// Devices returns the current device set
func (c *Controller) Devices() []types.Device { return c.reg.Snapshot() }

// Selection returns the selected device, if any
func (c *Controller) Selection() (types.Device, bool) { return c.reg.CurrentSelection() }

// Select changes the selection. An unknown id clears it.
func (c *Controller) Select(deviceID string) (string, error) {
	var sel string
	err := c.call(func() { sel = c.selectLocked(deviceID) })
	return sel, err
}

func (c *Controller) selectLocked(deviceID string) string {
	sel, changed := c.reg.Select(deviceID)
	if changed {
		logger.DeviceLog().Str("selection", sel).Msg("Selection changed")
		c.emit(notify.Notification{Kind: notify.SelectionChanged, Selection: sel})
	}
	return sel
}

// HandlePoll applies a poll result on the loop. It is the poller's sink.
func (c *Controller) HandlePoll(res poller.Result) {
	c.loop.Post(func() { c.applyPoll(res) })
}

func (c *Controller) applyPoll(res poller.Result) {
	if c.lastPollSeq != 0 && res.Seq <= c.lastPollSeq {
		logger.LogDebug("session").Uint64("seq", res.Seq).Uint64("latest", c.lastPollSeq).Msg("Dropping stale poll result")
		return
	}
	c.lastPollSeq = res.Seq
	if res.Err != nil {
		if !c.pollFailing {
			c.pollFailing = true
			c.emit(notify.Notification{
				Kind:    notify.Error,
				Failure: KindOf(res.Err),
				Detail:  "device listing failed: " + res.Err.Error(),
			})
		}
		return
	}
	if c.pollFailing {
		c.pollFailing = false
		logger.LogInfo("session").Msg("Device listing recovered")
	}

	diff, ok := c.reg.Apply(res.Seq, res.Devices)
	if !ok || diff.Empty() {
		return
	}
	c.emit(notify.Notification{
		Kind:    notify.DeviceListChanged,
		Devices: c.reg.Snapshot(),
		Added:   diff.Added,
		Removed: diff.Removed,
	})
	if diff.SelectionCleared {
		c.emit(notify.Notification{Kind: notify.SelectionChanged, Selection: ""})
	}

	if len(diff.Removed) == 0 {
		return
	}
	gone := make(map[string]bool, len(diff.Removed))
	for _, d := range diff.Removed {
		gone[d.ID] = true
	}
	for _, slot := range types.AllSlots {
		e := c.slots[slot]
		if e.state == types.StateRunning && gone[e.deviceID] {
			logger.SessionLog().Str("slot", string(slot)).Str("deviceId", e.deviceID).Msg("Device disconnected, stopping operation")
			e.run.Cancel()
			e.state = types.StateStopping
		}
	}
}

// ========================================
// Slot operations
// ========================================

// Start launches the operation for slot against deviceID, or against the
// selection when deviceID is empty. Starting a running slot stops it
// instead.
func (c *Controller) Start(slot types.Slot, deviceID string, params types.OperationParams) (types.SlotStatus, error) {
	var (
		status types.SlotStatus
		err    error
	)
	if callErr := c.call(func() { status, err = c.start(slot, deviceID, params) }); callErr != nil {
		return status, callErr
	}
	return status, err
}

func (c *Controller) start(slot types.Slot, deviceID string, params types.OperationParams) (types.SlotStatus, error) {
	e, ok := c.slots[slot]
	if !ok {
		return types.SlotStatus{Slot: slot}, c.reject(types.FailureInvalidParams, slot, "", deviceID, fmt.Sprintf("unknown slot %q", slot), nil)
	}

	dev, kind, detail := c.gate(deviceID)
	if kind != types.FailureNone {
		return c.status(slot), c.reject(kind, slot, "", dev.ID, detail, nil)
	}

	switch e.state {
	case types.StateRunning:
		logger.SessionLog().Str("slot", string(slot)).Str("runId", e.run.ID).Msg("Toggle: stopping running operation")
		e.run.Cancel()
		e.state = types.StateStopping
		return c.status(slot), nil
	case types.StateStopping, types.StateStarting, types.StateCompleted:
		return c.status(slot), c.reject(types.FailureBusy, slot, "", dev.ID, fmt.Sprintf("%s is still stopping", slot), nil)
	}

	cmd, err := c.tc.SlotCommand(slot, dev.ID, params)
	if err != nil {
		return c.status(slot), c.reject(KindOf(err), slot, "", dev.ID, "", err)
	}

	e.state = types.StateStarting
	run, err := c.exec.Start(c.ctx, cmd, executor.Handlers{
		OnLine:     func(runID, line string) { c.onLine(slot, runID, line) },
		OnComplete: func(runID string, res runner.Result) { c.onComplete(slot, runID, res) },
	})
	if err != nil {
		e.state = types.StateIdle
		return c.status(slot), c.reject(KindOf(err), slot, "", dev.ID, "", err)
	}

	e.state = types.StateRunning
	e.run = run
	e.deviceID = dev.ID
	e.startedAt = run.StartedAt

	logger.SessionLog().
		Str("slot", string(slot)).
		Str("runId", run.ID).
		Str("deviceId", dev.ID).
		Str("cmd", cmd.String()).
		Msg("Operation started")
	c.emit(notify.Notification{
		Kind:     notify.OperationStarted,
		Slot:     slot,
		RunID:    run.ID,
		DeviceID: dev.ID,
		Detail:   cmd.String(),
	})
	return c.status(slot), nil
}

// Stop terminates the operation in slot. Stopping an idle slot does
// nothing and notifies nobody.
func (c *Controller) Stop(slot types.Slot) error {
	return c.call(func() {
		e, ok := c.slots[slot]
		if !ok || e.state != types.StateRunning {
			return
		}
		logger.SessionLog().Str("slot", string(slot)).Str("runId", e.run.ID).Msg("Stopping operation")
		e.run.Cancel()
		e.state = types.StateStopping
	})
}

func (c *Controller) onLine(slot types.Slot, runID, line string) {
	e := c.slots[slot]
	if e.run == nil || e.run.ID != runID {
		return
	}
	c.emit(notify.Notification{
		Kind:     notify.OperationLine,
		Slot:     slot,
		RunID:    runID,
		DeviceID: e.deviceID,
		Line:     line,
	})
}

// onComplete is the only place a slot returns to idle
func (c *Controller) onComplete(slot types.Slot, runID string, res runner.Result) {
	e := c.slots[slot]
	if e.run == nil || e.run.ID != runID {
		logger.LogWarn("session").Str("slot", string(slot)).Str("runId", runID).Msg("Completion for unknown run")
		return
	}
	e.state = types.StateCompleted

	n := notify.Notification{
		Kind:      notify.OperationCompleted,
		Slot:      slot,
		RunID:     runID,
		DeviceID:  e.deviceID,
		ExitCode:  res.ExitCode,
		Cancelled: res.Cancelled,
	}
	switch {
	case res.Cancelled:
		n.Failure = types.FailureCancelled
	case res.Err != nil:
		n.Failure = types.FailureInternal
		n.Detail = res.Err.Error()
	case res.ExitCode != 0:
		n.Failure = types.FailureNonZeroExit
		n.Detail = lastLine(res.Tail)
	}

	logger.SessionLog().
		Str("slot", string(slot)).
		Str("runId", runID).
		Int("exitCode", res.ExitCode).
		Bool("cancelled", res.Cancelled).
		Dur("duration", time.Since(e.startedAt)).
		Msg("Operation completed")
	c.emit(n)

	*e = slotEntry{state: types.StateIdle}
}

// Status returns a snapshot of every slot
func (c *Controller) Status() []types.SlotStatus {
	var out []types.SlotStatus
	c.call(func() {
		for _, s := range types.AllSlots {
			out = append(out, c.status(s))
		}
	})
	return out
}

// SlotStatus returns a snapshot of one slot
func (c *Controller) SlotStatus(slot types.Slot) types.SlotStatus {
	var st types.SlotStatus
	c.call(func() { st = c.status(slot) })
	return st
}

func (c *Controller) status(slot types.Slot) types.SlotStatus {
	e, ok := c.slots[slot]
	if !ok {
		return types.SlotStatus{Slot: slot, State: types.StateIdle}
	}
	st := types.SlotStatus{Slot: slot, State: e.state, DeviceID: e.deviceID, StartedAt: e.startedAt}
	if e.run != nil {
		st.RunID = e.run.ID
		st.Tail = e.run.Tail()
	}
	return st
}

// Shutdown stops every running operation and waits for the processes to
// exit or ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) {
	var runs []*executor.Run
	c.call(func() {
		for _, s := range types.AllSlots {
			e := c.slots[s]
			if e.run == nil {
				continue
			}
			if e.state == types.StateRunning {
				e.run.Cancel()
				e.state = types.StateStopping
			}
			runs = append(runs, e.run)
		}
	})
	c.cancel()

	for _, r := range runs {
		select {
		case <-r.Done():
		case <-ctx.Done():
			logger.LogWarn("session").Int("pending", len(runs)).Msg("Shutdown timed out waiting for processes")
			return
		}
	}
	logger.SessionLog().Int("stopped", len(runs)).Msg("All operations stopped")
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
