package engine

import (
	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
)

// HoldAlgorithm never trades. Useful to replay data and validate a feed.
type HoldAlgorithm struct{}

// OnData implements core.IAlgorithm
func (HoldAlgorithm) OnData(*core.TimeSlice) []core.Order { return nil }

// BuyAndHold buys a fixed quantity of one symbol on its first priced
// slice and then holds to the end of the run
type BuyAndHold struct {
	Symbol   string
	Quantity decimal.Decimal

	bought bool
}

// OnData implements core.IAlgorithm
func (a *BuyAndHold) OnData(slice *core.TimeSlice) []core.Order {
	if a.bought {
		return nil
	}
	if _, ok := slice.Get(a.Symbol); !ok {
		return nil
	}
	a.bought = true
	return []core.Order{{
		Symbol:   a.Symbol,
		Type:     core.OrderTypeMarket,
		Quantity: a.Quantity,
	}}
}
