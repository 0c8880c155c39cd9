package portfolio

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
	apperrors "backtest_engine/pkg/errors"
)

// TransactionManager gates orders on buying power and issues order IDs.
// The sufficiency check is a pure simulation: it mutates nothing and can
// be called repeatedly with identical results.
type TransactionManager struct {
	logger    core.ILogger
	manager   *securities.Manager
	portfolio *Portfolio
	feeModel  FeeModel

	orderID atomic.Int64
}

// NewTransactionManager creates a transaction manager over the portfolio
func NewTransactionManager(logger core.ILogger, manager *securities.Manager, p *Portfolio, feeModel FeeModel) *TransactionManager {
	if feeModel == nil {
		feeModel = ZeroFeeModel{}
	}
	return &TransactionManager{
		logger:    logger,
		manager:   manager,
		portfolio: p,
		feeModel:  feeModel,
	}
}

// NextOrderID returns a fresh monotonically increasing order id
func (t *TransactionManager) NextOrderID() int64 {
	return t.orderID.Add(1)
}

// GetSufficientCapitalForOrder simulates filling the order in full against
// copies of the account state and reports whether margin would remain
// non-negative afterwards
func (t *TransactionManager) GetSufficientCapitalForOrder(order core.Order) (bool, error) {
	if order.Quantity.IsZero() {
		return true, nil
	}

	security, ok := t.manager.Get(order.Symbol)
	if !ok {
		return false, fmt.Errorf("%w: %s", apperrors.ErrUnknownSecurity, order.Symbol)
	}

	price := order.Price
	if price.IsZero() {
		price = security.Price()
	}
	if price.IsZero() {
		// No price observed yet, nothing to value the order against
		return false, nil
	}

	rate := t.settlementRate(security)
	holdings := security.Holdings()

	// Hypothetical position after the fill
	hypothetical := securities.NewHoldings()
	hypothetical.SetHoldings(holdings.AveragePrice(), holdings.Quantity())
	hypothetical.SetMarketPrice(holdings.Price())
	hypothetical.AddFill(price, order.Quantity)
	hypothetical.SetMarketPrice(price)

	fee := t.feeModel.OrderFee(security, core.Order{
		Symbol:   order.Symbol,
		Quantity: order.Quantity,
		Price:    price,
	})

	// Project portfolio value: settlement cash moves by the fill notional
	// and fee, the position revalues at the fill price.
	notional := order.Quantity.Mul(price)
	cashDelta := notional.Neg().Sub(fee).Mul(rate)
	holdingsDelta := hypothetical.HoldingsValue().Sub(holdings.HoldingsValue()).Mul(rate)
	projectedValue := t.portfolio.TotalPortfolioValue().Add(cashDelta).Add(holdingsDelta)

	// Project margin used: this security's reservation is replaced.
	currentMargin := security.MarginModel().MaintenanceMargin(security).Mul(rate)
	projectedMargin := hypothetical.AbsoluteHoldingsCost().Div(security.Leverage()).Mul(rate)
	totalMargin := t.portfolio.TotalMarginUsed().Sub(currentMargin).Add(projectedMargin)

	sufficient := projectedValue.Sub(totalMargin).Sign() >= 0
	if !sufficient {
		t.logger.Debug("insufficient capital for order",
			"symbol", order.Symbol,
			"quantity", order.Quantity,
			"projected_value", projectedValue,
			"projected_margin", totalMargin)
	}
	return sufficient, nil
}

func (t *TransactionManager) settlementRate(sec *securities.Security) decimal.Decimal {
	settlement := sec.QuoteCurrency()
	book := t.portfolio.CashBook()
	if settlement == "" || settlement == book.AccountCurrency() {
		return decimal.NewFromInt(1)
	}
	return book.ConversionRate(settlement)
}
