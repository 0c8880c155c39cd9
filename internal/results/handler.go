// Package results persists run output: fills and the equity curve.
package results

import (
	"time"

	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
)

// NopHandler discards all results. Useful for tests and dry runs.
type NopHandler struct{}

func (NopHandler) OnFill(core.OrderEvent) {}

func (NopHandler) OnEquity(time.Time, decimal.Decimal) {}

func (NopHandler) Close() error { return nil }

var _ core.IResultHandler = NopHandler{}
