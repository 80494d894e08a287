// Package poller discovers attached devices by running a listing tool on a
// fixed cadence.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/types"
)

// Source describes how one toolchain lists devices and names them
type Source interface {
	ListCommand() runner.Command
	ParseListing(output string) []Entry
	NameCommand(deviceID string) runner.Command
}

// CommandRunner is the bounded-call half of runner.Runner
type CommandRunner interface {
	Run(ctx context.Context, c runner.Command, timeout time.Duration) (runner.Output, error)
}

// Result is one completed poll. Seq increases with every poll started, so
// a consumer can drop results that finish out of order.
type Result struct {
	Seq     uint64
	Devices []types.Device
	Err     error
	At      time.Time
}

type Options struct {
	Interval        time.Duration
	ListTimeout     time.Duration
	NameTimeout     time.Duration
	NameConcurrency int
	// RefreshNow calls beyond this burst within a second are dropped
	RefreshBurst int
}

func DefaultOptions() Options {
	return Options{
		Interval:        5 * time.Second,
		ListTimeout:     5 * time.Second,
		NameTimeout:     3 * time.Second,
		NameConcurrency: 4,
		RefreshBurst:    3,
	}
}

type Poller struct {
	src  Source
	run  CommandRunner
	sink func(Result)
	opts Options

	seq      atomic.Uint64
	limiter  *rate.Limiter
	trigger  chan struct{}
	interval chan time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New creates a poller that hands every result to sink from a background
// goroutine.
func New(src Source, run CommandRunner, sink func(Result), opts Options) *Poller {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = def.ListTimeout
	}
	if opts.NameTimeout <= 0 {
		opts.NameTimeout = def.NameTimeout
	}
	if opts.NameConcurrency <= 0 {
		opts.NameConcurrency = def.NameConcurrency
	}
	if opts.RefreshBurst <= 0 {
		opts.RefreshBurst = def.RefreshBurst
	}
	return &Poller{
		src:      src,
		run:      run,
		sink:     sink,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(time.Second), opts.RefreshBurst),
		trigger:  make(chan struct{}, 1),
		interval: make(chan time.Duration, 1),
	}
}

// Start polls immediately and then every interval until ctx is done or
// Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.stopped = make(chan struct{})

	go p.loop(ctx)
}

// Stop ends the cadence and waits for in-flight polls to finish
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.stopped)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	logger.LogInfo("poller").Dur("interval", p.opts.Interval).Msg("Device polling started")
	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.LogInfo("poller").Msg("Device polling stopped")
			return
		case <-ticker.C:
			p.spawn(ctx)
		case <-p.trigger:
			p.spawn(ctx)
		case d := <-p.interval:
			ticker.Reset(d)
			logger.LogInfo("poller").Dur("interval", d).Msg("Poll interval changed")
		}
	}
}

// spawn runs one poll on its own goroutine so a slow tool never delays the
// cadence.
func (p *Poller) spawn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		res := p.PollOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		p.sink(res)
	}()
}

// RefreshNow requests an immediate poll. It reports false when the request
// was rate limited or one is already pending.
func (p *Poller) RefreshNow() bool {
	if !p.limiter.Allow() {
		logger.PollLog().Msg("Refresh request rate limited")
		return false
	}
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetInterval changes the cadence of a running poller
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-p.interval:
	default:
	}
	p.interval <- d
}

// PollOnce lists devices and resolves their names. It never fails because
// of a name query; only the listing itself can produce Err.
func (p *Poller) PollOnce(ctx context.Context) Result {
	seq := p.seq.Add(1)
	res := Result{Seq: seq, At: time.Now()}

	out, err := p.run.Run(ctx, p.src.ListCommand(), p.opts.ListTimeout)
	if err != nil {
		logger.PollLog().Uint64("seq", seq).Err(err).Msg("Device listing failed")
		res.Err = err
		return res
	}

	entries := p.src.ParseListing(out.Stdout)
	devices := make([]types.Device, len(entries))

	var g errgroup.Group
	g.SetLimit(p.opts.NameConcurrency)
	for i, e := range entries {
		devices[i] = e.Device
		if !e.QueryName {
			continue
		}
		i, id := i, e.Device.ID
		g.Go(func() error {
			if name, ok := p.queryName(ctx, id); ok {
				devices[i].Name = name
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Devices = devices
	logger.PollLog().Uint64("seq", seq).Int("devices", len(devices)).Msg("Poll finished")
	return res
}

func (p *Poller) queryName(ctx context.Context, id string) (string, bool) {
	out, err := p.run.Run(ctx, p.src.NameCommand(id), p.opts.NameTimeout)
	if err != nil {
		logger.PollLog().Str("deviceId", id).Err(err).Msg("Name query failed, using placeholder")
		return "", false
	}
	return ParseName(out.Stdout)
}
