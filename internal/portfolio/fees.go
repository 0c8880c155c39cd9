package portfolio

import (
	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
)

// FeeModel prices the fee of executing an order, denominated in the
// security's settlement currency
type FeeModel interface {
	OrderFee(security *securities.Security, order core.Order) decimal.Decimal
}

// ZeroFeeModel charges nothing
type ZeroFeeModel struct{}

func (ZeroFeeModel) OrderFee(*securities.Security, core.Order) decimal.Decimal {
	return decimal.Zero
}

// ConstantFeeModel charges a flat fee per order
type ConstantFeeModel struct {
	Fee decimal.Decimal
}

func (m ConstantFeeModel) OrderFee(*securities.Security, core.Order) decimal.Decimal {
	return m.Fee
}
