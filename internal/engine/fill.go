package engine

import (
	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
)

// FillModel decides whether and at what price an order executes against
// the current market. filled is false when the order cannot execute on
// this slice (e.g. a limit order away from the market).
type FillModel interface {
	Fill(security *securities.Security, order core.Order, orderID int64) (event core.OrderEvent, filled bool)
}

// ImmediateFillModel executes market orders at the last observed price
// and limit orders at their limit when the market is at or through it.
// No partial fills and no slippage.
type ImmediateFillModel struct{}

// Fill implements FillModel
func (ImmediateFillModel) Fill(security *securities.Security, order core.Order, orderID int64) (core.OrderEvent, bool) {
	market := security.Price()
	if market.IsZero() {
		market = order.Price
	}
	if market.IsZero() {
		return core.OrderEvent{}, false
	}

	switch order.Type {
	case core.OrderTypeLimit:
		if order.Price.IsZero() {
			return core.OrderEvent{}, false
		}
		buy := order.Quantity.Sign() > 0
		if buy && market.GreaterThan(order.Price) {
			return core.OrderEvent{}, false
		}
		if !buy && market.LessThan(order.Price) {
			return core.OrderEvent{}, false
		}
		return core.NewOrderEvent(orderID, order.Symbol, core.OrderStatusFilled, order.Price, order.Quantity), true
	default:
		return core.NewOrderEvent(orderID, order.Symbol, core.OrderStatusFilled, market, order.Quantity), true
	}
}
