package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
	apperrors "backtest_engine/pkg/errors"
	"backtest_engine/pkg/telemetry"
)

// SourceFactory opens the data source backing one subscription
type SourceFactory func(sub core.Subscription) (core.IDataSource, error)

// Feed lifecycle states
const (
	stateCreated int32 = iota
	stateInitialized
	stateRunning
	stateStopped
)

// entry is one subscription's production state. peeked holds the next
// point waiting to be merged into a slice.
type entry struct {
	sub       core.Subscription
	security  *securities.Security
	source    core.IDataSource
	peeked    *core.DataPoint
	exhausted bool
}

// DataFeed merges per-subscription data sources into time-synchronized
// slices and pushes them through the bridge. One producer goroutine runs
// the loop; subscriptions may be added and removed concurrently.
type DataFeed struct {
	logger  core.ILogger
	factory SourceFactory
	bridge  *Bridge
	limiter *rate.Limiter

	mu      sync.RWMutex
	job     core.BacktestJob
	entries map[string]*entry

	state    atomic.Int32
	exiting  atomic.Bool
	exitOnce sync.Once
}

// NewDataFeed creates a feed producing into a bridge of the given
// capacity. slicesPerSecond throttles production when positive; zero
// means unpaced.
func NewDataFeed(logger core.ILogger, factory SourceFactory, bridgeCapacity int, slicesPerSecond float64) *DataFeed {
	f := &DataFeed{
		logger:  logger,
		factory: factory,
		bridge:  NewBridge(bridgeCapacity),
		entries: make(map[string]*entry),
	}
	if slicesPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(slicesPerSecond), 1)
	}
	return f
}

// Initialize binds the feed to a job. Must be called exactly once,
// before Run.
func (f *DataFeed) Initialize(job core.BacktestJob) error {
	if !f.state.CompareAndSwap(stateCreated, stateInitialized) {
		return apperrors.ErrFeedAlreadyInitialized
	}
	f.mu.Lock()
	f.job = job
	f.mu.Unlock()

	f.logger.Info("data feed initialized",
		"run_id", job.RunID,
		"start", job.UTCStart,
		"end", job.UTCEnd)
	return nil
}

// Bridge returns the handoff queue consumers drain
func (f *DataFeed) Bridge() *Bridge {
	return f.bridge
}

// IsActive reports whether the production loop is running
func (f *DataFeed) IsActive() bool {
	return f.state.Load() == stateRunning
}

// AddSubscription opens a data source for the security and joins it into
// slice production. Zero start/end times default to the job window.
// Adding a symbol that is already subscribed is a no-op.
func (f *DataFeed) AddSubscription(security *securities.Security, utcStart, utcEnd time.Time) error {
	if f.state.Load() == stateCreated {
		return apperrors.ErrFeedNotInitialized
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[security.Symbol()]; ok {
		return nil
	}

	if utcStart.IsZero() {
		utcStart = f.job.UTCStart
	}
	if utcEnd.IsZero() {
		utcEnd = f.job.UTCEnd
	}

	sub := security.SubscriptionTemplate()
	sub.UTCStart = utcStart
	sub.UTCEnd = utcEnd

	source, err := f.factory(sub)
	if err != nil {
		return fmt.Errorf("opening source for %s: %w", sub.Symbol, err)
	}

	f.entries[sub.Symbol] = &entry{sub: sub, security: security, source: source}
	telemetry.GetGlobalMetrics().SetSubscriptionsActive(int64(len(f.entries)))

	f.logger.Info("subscription added",
		"symbol", sub.Symbol,
		"resolution", string(sub.Resolution),
		"market", sub.Market)
	return nil
}

// RemoveSubscription closes a subscription's source and drops it from
// slice production
func (f *DataFeed) RemoveSubscription(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSubscriptionNotFound, symbol)
	}
	delete(f.entries, symbol)
	telemetry.GetGlobalMetrics().SetSubscriptionsActive(int64(len(f.entries)))

	if err := e.source.Close(); err != nil {
		f.logger.Warn("closing source", "symbol", symbol, "error", err)
	}
	f.logger.Info("subscription removed", "symbol", symbol)
	return nil
}

// HasSubscription reports whether a symbol is subscribed
func (f *DataFeed) HasSubscription(symbol string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[symbol]
	return ok
}

// Subscriptions returns the active subscriptions in ascending symbol order
func (f *DataFeed) Subscriptions() []core.Subscription {
	f.mu.RLock()
	subs := make([]core.Subscription, 0, len(f.entries))
	for _, e := range f.entries {
		subs = append(subs, e.sub)
	}
	f.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].Symbol < subs[j].Symbol })
	return subs
}

// Run drives slice production until all sources are exhausted, Exit is
// called, or the context ends. Always completes the bridge on return so
// consumers unblock.
func (f *DataFeed) Run(ctx context.Context) error {
	if !f.state.CompareAndSwap(stateInitialized, stateRunning) {
		return apperrors.ErrFeedNotInitialized
	}
	defer func() {
		f.state.Store(stateStopped)
		f.bridge.Complete()
		f.closeAll()
		f.logger.Info("data feed stopped")
	}()

	metrics := telemetry.GetGlobalMetrics()

	for {
		if f.exiting.Load() || ctx.Err() != nil {
			return ctx.Err()
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		slice, ok := f.nextSlice()
		if !ok {
			return nil
		}

		waitStart := time.Now()
		if err := f.bridge.Put(slice); err != nil {
			// Completed under us via Exit, not a failure.
			return nil
		}
		if metrics.BridgeWait != nil {
			metrics.BridgeWait.Record(ctx, time.Since(waitStart).Seconds())
			metrics.SlicesProducedTotal.Add(ctx, 1)
			metrics.PointsProducedTotal.Add(ctx, int64(len(slice.Points)))
		}
		metrics.SetBridgeDepth(int64(f.bridge.Count()))
	}
}

// Exit stops the production loop and completes the bridge, unblocking a
// producer stuck on a full queue. Idempotent.
func (f *DataFeed) Exit() {
	f.exitOnce.Do(func() {
		f.exiting.Store(true)
		f.bridge.Complete()
		f.logger.Info("data feed exit requested")
	})
}

// nextSlice advances every subscription to its next point, then bundles
// all points sharing the earliest timestamp into one slice. ok is false
// when every subscription is exhausted.
func (f *DataFeed) nextSlice() (*core.TimeSlice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var sliceTime time.Time
	for _, e := range f.entries {
		f.refill(e)
		if e.peeked == nil {
			continue
		}
		if sliceTime.IsZero() || e.peeked.Time.Before(sliceTime) {
			sliceTime = e.peeked.Time
		}
	}
	if sliceTime.IsZero() {
		return nil, false
	}

	slice := &core.TimeSlice{Time: sliceTime}
	symbols := make([]string, 0, len(f.entries))
	for sym, e := range f.entries {
		if e.peeked != nil && e.peeked.Time.Equal(sliceTime) {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		e := f.entries[sym]
		slice.Points = append(slice.Points, core.SlicePoint{Subscription: e.sub, Point: *e.peeked})
		e.peeked = nil
	}
	return slice, true
}

// refill pulls the subscription's next in-window point into peeked. A
// failing source is logged and retired rather than poisoning the loop.
func (f *DataFeed) refill(e *entry) {
	for e.peeked == nil && !e.exhausted {
		point, err := e.source.Next()
		if err != nil {
			if err != apperrors.ErrSourceExhausted {
				f.logger.Error("data source failed, retiring subscription",
					"symbol", e.sub.Symbol, "error", err)
			}
			e.exhausted = true
			_ = e.source.Close()
			return
		}

		if point.Symbol == "" {
			point.Symbol = e.sub.Symbol
		}
		if point.Time.Before(e.sub.UTCStart) {
			continue
		}
		if !e.sub.UTCEnd.IsZero() && point.Time.After(e.sub.UTCEnd) {
			e.exhausted = true
			_ = e.source.Close()
			return
		}
		e.peeked = &point
	}
}

// closeAll closes every remaining source after the loop ends
func (f *DataFeed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if !e.exhausted {
			_ = e.source.Close()
			e.exhausted = true
		}
	}
}
