// Package engine runs a backtest: it drains synchronized slices from the
// data feed, updates prices and conversion rates, hands the slice to the
// algorithm, gates and executes the resulting orders, and samples equity.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"backtest_engine/internal/core"
	"backtest_engine/internal/feed"
	"backtest_engine/internal/portfolio"
	"backtest_engine/internal/securities"
	"backtest_engine/pkg/telemetry"
)

// Runner wires the feed, portfolio, and algorithm into one run
type Runner struct {
	logger    core.ILogger
	job       core.BacktestJob
	feed      *feed.DataFeed
	manager   *securities.Manager
	cashBook  *securities.CashBook
	portfolio *portfolio.Portfolio
	txn       *portfolio.TransactionManager
	algorithm core.IAlgorithm
	results   core.IResultHandler
	fillModel FillModel
}

// NewRunner assembles a runner. A nil fill model defaults to immediate
// fills.
func NewRunner(
	logger core.ILogger,
	job core.BacktestJob,
	dataFeed *feed.DataFeed,
	manager *securities.Manager,
	cashBook *securities.CashBook,
	p *portfolio.Portfolio,
	txn *portfolio.TransactionManager,
	algorithm core.IAlgorithm,
	results core.IResultHandler,
	fillModel FillModel,
) *Runner {
	if fillModel == nil {
		fillModel = ImmediateFillModel{}
	}
	return &Runner{
		logger:    logger,
		job:       job,
		feed:      dataFeed,
		manager:   manager,
		cashBook:  cashBook,
		portfolio: p,
		txn:       txn,
		algorithm: algorithm,
		results:   results,
		fillModel: fillModel,
	}
}

// Run executes the backtest to completion. The producer and consumer run
// on separate goroutines joined by the bridge; the first failure stops
// both sides.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("backtest starting",
		"run_id", r.job.RunID,
		"name", r.job.Name,
		"securities", r.manager.Len())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.feed.Run(ctx)
	})

	g.Go(func() error {
		defer r.feed.Exit()
		return r.consume(ctx)
	})

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("backtest run %s: %w", r.job.RunID, err)
	}

	r.logger.Info("backtest finished",
		"run_id", r.job.RunID,
		"final_equity", r.portfolio.TotalPortfolioValue())
	return nil
}

// consume is the single algorithm thread: it owns all portfolio mutation
func (r *Runner) consume(ctx context.Context) error {
	bridge := r.feed.Bridge()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slice, ok := bridge.Take()
		if !ok {
			return nil
		}

		r.applyMarketData(slice)
		r.handleOrders(slice, r.algorithm.OnData(slice))
		r.handleMarginCalls(slice)
		r.results.OnEquity(slice.Time, r.portfolio.TotalPortfolioValue())

		bridge.Done()
	}
}

// applyMarketData pushes every point into the owning security and the
// cash book's conversion rates before the algorithm sees the slice
func (r *Runner) applyMarketData(slice *core.TimeSlice) {
	for _, sp := range slice.Points {
		if sec, ok := r.manager.Get(sp.Point.Symbol); ok {
			sec.SetMarketPrice(sp.Point)
		}
		r.cashBook.Update(sp.Point)
	}
}

// handleOrders gates each algorithm order on exchange hours and buying
// power, then executes and books it
func (r *Runner) handleOrders(slice *core.TimeSlice, orders []core.Order) {
	for _, order := range orders {
		if order.Quantity.IsZero() {
			continue
		}
		order.Time = slice.Time

		security, ok := r.manager.Get(order.Symbol)
		if !ok {
			r.logger.Warn("order for unknown security dropped", "symbol", order.Symbol)
			r.rejectOrder()
			continue
		}
		if !security.Hours().IsOpen(slice.Time) {
			r.logger.Debug("market closed, order dropped",
				"symbol", order.Symbol, "time", slice.Time)
			r.rejectOrder()
			continue
		}

		sufficient, err := r.txn.GetSufficientCapitalForOrder(order)
		if err != nil {
			r.logger.Error("capital check failed", "symbol", order.Symbol, "error", err)
			r.rejectOrder()
			continue
		}
		if !sufficient {
			r.logger.Warn("insufficient buying power, order rejected",
				"symbol", order.Symbol,
				"quantity", order.Quantity)
			r.rejectOrder()
			continue
		}

		r.execute(security, order)
	}
}

// handleMarginCalls liquidates forced orders from the margin scan. These
// bypass the sufficiency gate: they only ever reduce exposure.
func (r *Runner) handleMarginCalls(slice *core.TimeSlice) {
	calls, warning := r.portfolio.ScanForMarginCall()
	if warning {
		r.logger.Warn("margin warning", "time", slice.Time)
	}
	for _, order := range calls {
		security, ok := r.manager.Get(order.Symbol)
		if !ok {
			continue
		}
		order.Time = slice.Time
		r.logger.Warn("forced liquidation",
			"symbol", order.Symbol,
			"quantity", order.Quantity)
		r.execute(security, order)
	}
}

func (r *Runner) execute(security *securities.Security, order core.Order) {
	event, filled := r.fillModel.Fill(security, order, r.txn.NextOrderID())
	if !filled {
		return
	}
	if err := r.portfolio.ProcessFill(event); err != nil {
		r.logger.Error("fill rejected by portfolio",
			"symbol", event.Symbol, "error", err)
		return
	}
	r.results.OnFill(event)
}

func (r *Runner) rejectOrder() {
	metrics := telemetry.GetGlobalMetrics()
	if metrics.OrdersRejectedTotal != nil {
		metrics.OrdersRejectedTotal.Add(context.Background(), 1)
	}
}
