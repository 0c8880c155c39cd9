package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricSlicesProducedTotal = "backtest_engine_slices_produced_total"
	MetricPointsProducedTotal = "backtest_engine_points_produced_total"
	MetricFillsProcessedTotal = "backtest_engine_fills_processed_total"
	MetricOrdersRejectedTotal = "backtest_engine_orders_rejected_total"
	MetricBridgeWait          = "backtest_engine_bridge_wait_seconds"
	MetricBridgeDepth         = "backtest_engine_bridge_depth"
	MetricPortfolioEquity     = "backtest_engine_portfolio_equity"
	MetricMarginUsed          = "backtest_engine_margin_used"
	MetricSubscriptionsActive = "backtest_engine_subscriptions_active"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	SlicesProducedTotal metric.Int64Counter
	PointsProducedTotal metric.Int64Counter
	FillsProcessedTotal metric.Int64Counter
	OrdersRejectedTotal metric.Int64Counter
	BridgeWait          metric.Float64Histogram
	BridgeDepth         metric.Int64ObservableGauge
	PortfolioEquity     metric.Float64ObservableGauge
	MarginUsed          metric.Float64ObservableGauge
	SubscriptionsActive metric.Int64ObservableGauge

	// State for observable gauges
	mu            sync.RWMutex
	bridgeDepth   int64
	equityMap     map[string]float64
	marginUsedMap map[string]float64
	subsActive    int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			equityMap:     make(map[string]float64),
			marginUsedMap: make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.SlicesProducedTotal, err = meter.Int64Counter(MetricSlicesProducedTotal, metric.WithDescription("Total time slices pushed into the bridge"))
	if err != nil {
		return err
	}

	m.PointsProducedTotal, err = meter.Int64Counter(MetricPointsProducedTotal, metric.WithDescription("Total data points collected into slices"))
	if err != nil {
		return err
	}

	m.FillsProcessedTotal, err = meter.Int64Counter(MetricFillsProcessedTotal, metric.WithDescription("Total order fills applied to the portfolio"))
	if err != nil {
		return err
	}

	m.OrdersRejectedTotal, err = meter.Int64Counter(MetricOrdersRejectedTotal, metric.WithDescription("Orders rejected by the capital sufficiency gate"))
	if err != nil {
		return err
	}

	m.BridgeWait, err = meter.Float64Histogram(MetricBridgeWait, metric.WithDescription("Time the producer spent blocked on the bridge"), metric.WithUnit("s"))
	if err != nil {
		return err
	}

	m.BridgeDepth, err = meter.Int64ObservableGauge(MetricBridgeDepth, metric.WithDescription("Slices currently queued in the bridge"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.bridgeDepth)
			return nil
		}))
	if err != nil {
		return err
	}

	m.PortfolioEquity, err = meter.Float64ObservableGauge(MetricPortfolioEquity, metric.WithDescription("Total portfolio value in the account currency"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for run, val := range m.equityMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("run", run)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.MarginUsed, err = meter.Float64ObservableGauge(MetricMarginUsed, metric.WithDescription("Total maintenance margin reserved"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for run, val := range m.marginUsedMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("run", run)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.SubscriptionsActive, err = meter.Int64ObservableGauge(MetricSubscriptionsActive, metric.WithDescription("Number of active data subscriptions"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.subsActive)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetBridgeDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bridgeDepth = depth
}

func (m *MetricsHolder) SetPortfolioEquity(run string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equityMap[run] = value
}

func (m *MetricsHolder) SetMarginUsed(run string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marginUsedMap[run] = value
}

func (m *MetricsHolder) SetSubscriptionsActive(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subsActive = count
}
