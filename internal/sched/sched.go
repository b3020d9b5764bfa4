// Package sched owns the oracle's three scheduling handles: the scan
// timer, the import timer, and the zlookup reconnect event
// (spec.md §4.8), built on a clockwork.Clock so tests run on a fake
// clock instead of wall time, following the dependency-injected-clock
// idiom of telemetry/global-monitor/internal/gm/runner.go.
package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
)

// Config bundles one Timers instance's intervals and the callbacks it
// drives. There is a single scan interval and a single RunScan callback;
// a caller running one Scanner per AFI runs them all from RunScan, and
// "bgp scan-time" rearms that one shared interval.
type Config struct {
	Clock clockwork.Clock

	ScanInterval      time.Duration
	ImportInterval    time.Duration
	ReconnectInterval time.Duration

	// ReconnectMaxTries bounds the exponential-backoff retries run
	// inside a single reconnect tick. Defaults to 3 when left zero.
	ReconnectMaxTries uint

	RunScan      func(ctx context.Context)
	RunImport    func(ctx context.Context)
	TryReconnect func(ctx context.Context) error

	Log *slog.Logger
}

// Timers dispatches RunScan, RunImport, and TryReconnect on their own
// tickers from a single Run(ctx) goroutine, matching spec.md §5's
// "one dispatcher, synchronous handlers" model.
type Timers struct {
	cfg Config

	// rearm carries a new scan interval to the running dispatch loop;
	// buffered so "bgp scan-time" never blocks on the loop being busy.
	rearm chan time.Duration
}

// New builds a Timers from cfg. cfg.Clock defaults to
// clockwork.NewRealClock() when left nil.
func New(cfg Config) *Timers {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.ReconnectMaxTries == 0 {
		cfg.ReconnectMaxTries = 3
	}
	return &Timers{cfg: cfg, rearm: make(chan time.Duration, 1)}
}

// Rearm cancels and re-arms the scan timer with a new interval, the
// effect of "bgp scan-time <n>" / "no bgp scan-time" (spec.md §6).
func (t *Timers) Rearm(interval time.Duration) {
	select {
	case t.rearm <- interval:
	default:
		// Drain the stale pending value and replace it; a later Rearm
		// call always wins over an earlier one still waiting to be seen.
		select {
		case <-t.rearm:
		default:
		}
		t.rearm <- interval
	}
}

// Run drives the scan, import, and reconnect tickers until ctx is
// canceled.
func (t *Timers) Run(ctx context.Context) {
	scanInterval := t.cfg.ScanInterval
	scanTicker := t.cfg.Clock.NewTicker(scanInterval)
	defer scanTicker.Stop()

	importTicker := t.cfg.Clock.NewTicker(t.cfg.ImportInterval)
	defer importTicker.Stop()

	reconnectTicker := t.cfg.Clock.NewTicker(t.cfg.ReconnectInterval)
	defer reconnectTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.cfg.Log.Info("sched: context done, stopping", "reason", ctx.Err())
			return
		case newInterval := <-t.rearm:
			scanTicker.Stop()
			scanInterval = newInterval
			scanTicker = t.cfg.Clock.NewTicker(scanInterval)
			t.cfg.Log.Info("sched: scan-time rearmed", "interval", scanInterval)
		case <-scanTicker.Chan():
			if t.cfg.RunScan != nil {
				t.cfg.RunScan(ctx)
			}
		case <-importTicker.Chan():
			if t.cfg.RunImport != nil {
				t.cfg.RunImport(ctx)
			}
		case <-reconnectTicker.Chan():
			if t.cfg.TryReconnect == nil {
				continue
			}
			t.runReconnect(ctx)
		}
	}
}

// runReconnect retries TryReconnect with exponential backoff within one
// reconnect tick, the same bounded-retry idiom
// telemetry/internal/telemetry/pinger.go uses for getCurrentEpoch: the
// scheduler does not block waiting for the daemon to come back, it just
// tries a few times and leaves the rest to the next tick.
func (t *Timers) runReconnect(ctx context.Context) {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if attempt > 0 {
			t.cfg.Log.Debug("sched: reconnect retrying", "attempt", attempt)
		}
		attempt++
		return struct{}{}, t.cfg.TryReconnect(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(t.cfg.ReconnectMaxTries))
	if err != nil {
		t.cfg.Log.Debug("sched: reconnect attempt failed", "error", err, "tries", attempt)
	}
}
