// Package portfolio implements the account state of a run: the
// multi-currency cash book, position bookkeeping, margin accounting, and
// the margin-call scan.
package portfolio

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
	apperrors "backtest_engine/pkg/errors"
	"backtest_engine/pkg/telemetry"
)

// Portfolio owns the cash book and derives account-level valuations from
// the security manager's positions. Fill application is atomic: a reader
// never observes cash moved but holdings not yet updated.
type Portfolio struct {
	logger   core.ILogger
	manager  *securities.Manager
	cashBook *securities.CashBook
	feeModel FeeModel
	runID    string

	// warningBuffer is the fraction of total portfolio value under which
	// remaining margin triggers a soft warning before an actual call.
	warningBuffer decimal.Decimal

	mu sync.Mutex
}

// NewPortfolio creates a portfolio over the given manager and cash book
func NewPortfolio(logger core.ILogger, manager *securities.Manager, cashBook *securities.CashBook, feeModel FeeModel, runID string) *Portfolio {
	if feeModel == nil {
		feeModel = ZeroFeeModel{}
	}
	return &Portfolio{
		logger:        logger,
		manager:       manager,
		cashBook:      cashBook,
		feeModel:      feeModel,
		runID:         runID,
		warningBuffer: decimal.Zero,
	}
}

// SetMarginWarningBuffer sets the soft-warning fraction of portfolio value
func (p *Portfolio) SetMarginWarningBuffer(buffer decimal.Decimal) {
	p.mu.Lock()
	p.warningBuffer = buffer
	p.mu.Unlock()
}

// CashBook returns the underlying currency ledger
func (p *Portfolio) CashBook() *securities.CashBook {
	return p.cashBook
}

// SetCash replaces the account-currency balance
func (p *Portfolio) SetCash(amount decimal.Decimal) {
	p.cashBook.Account().SetQuantity(amount)
}

// SetCashCurrency sets the balance and conversion rate of any currency
func (p *Portfolio) SetCashCurrency(currency string, quantity, conversionRate decimal.Decimal) {
	p.cashBook.Add(currency, quantity, conversionRate)
}

// Cash returns the account-currency balance
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cashBook.Account().Quantity()
}

// Invested reports whether any security holds a nonzero position
func (p *Portfolio) Invested() bool {
	invested := false
	p.manager.Each(func(sec *securities.Security) {
		if !sec.Holdings().Quantity().IsZero() {
			invested = true
		}
	})
	return invested
}

// ProcessFill applies an order fill: settlement cash moves by the fill
// notional plus the fee, and the position is re-averaged. Unknown symbols
// are rejected with ErrUnknownSecurity.
func (p *Portfolio) ProcessFill(event core.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	security, ok := p.manager.Get(event.Symbol)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownSecurity, event.Symbol)
	}

	settlement := security.QuoteCurrency()
	if settlement == "" {
		settlement = p.cashBook.AccountCurrency()
	}

	notional := event.FillQuantity.Mul(event.FillPrice)
	cash, ok := p.cashBook.Get(settlement)
	if !ok {
		cash = p.cashBook.Add(settlement, decimal.Zero, decimal.Zero)
	}
	cash.AddQuantity(notional.Neg())

	fee := p.feeModel.OrderFee(security, core.Order{
		Symbol:   event.Symbol,
		Quantity: event.FillQuantity,
		Price:    event.FillPrice,
	})
	if fee.Sign() > 0 {
		cash.AddQuantity(fee.Neg())
	}

	security.Holdings().AddFill(event.FillPrice, event.FillQuantity)
	security.Holdings().SetMarketPrice(event.FillPrice)

	metrics := telemetry.GetGlobalMetrics()
	if metrics.FillsProcessedTotal != nil {
		metrics.FillsProcessedTotal.Add(context.Background(), 1)
	}

	p.logger.Debug("fill applied",
		"symbol", event.Symbol,
		"quantity", event.FillQuantity,
		"price", event.FillPrice,
		"settlement", settlement)
	return nil
}

// TotalHoldingsValue is the sum of all position values converted into the
// account currency
func (p *Portfolio) TotalHoldingsValue() decimal.Decimal {
	total := decimal.Zero
	p.manager.Each(func(sec *securities.Security) {
		total = total.Add(p.holdingsValueInAccount(sec))
	})
	return total
}

// TotalPortfolioValue is cash plus holdings, all in the account currency.
// Recomputed from the live books on every call.
func (p *Portfolio) TotalPortfolioValue() decimal.Decimal {
	tpv := p.cashBook.TotalValueInAccountCurrency().Add(p.TotalHoldingsValue())

	metrics := telemetry.GetGlobalMetrics()
	metrics.SetPortfolioEquity(p.runID, tpv.InexactFloat64())
	return tpv
}

// TotalMarginUsed is the maintenance margin reserved across all positions,
// in the account currency
func (p *Portfolio) TotalMarginUsed() decimal.Decimal {
	total := decimal.Zero
	p.manager.Each(func(sec *securities.Security) {
		margin := sec.MarginModel().MaintenanceMargin(sec)
		total = total.Add(p.toAccount(sec, margin))
	})

	metrics := telemetry.GetGlobalMetrics()
	metrics.SetMarginUsed(p.runID, total.InexactFloat64())
	return total
}

// MarginRemaining is the portfolio value not reserved as maintenance margin
func (p *Portfolio) MarginRemaining() decimal.Decimal {
	return p.TotalPortfolioValue().Sub(p.TotalMarginUsed())
}

// ScanForMarginCall inspects the account and produces forced liquidation
// orders when maintenance margin exceeds portfolio value. Candidates are
// leveraged nonzero positions, visited in ascending symbol order; each is
// liquidated in full until the projected freed margin covers the
// shortfall. warning is set when remaining margin is non-negative but
// inside the configured buffer of portfolio value, and when the account
// is under-margined with no liquidation candidate to propose.
func (p *Portfolio) ScanForMarginCall() (orders []core.Order, warning bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tpv := p.TotalPortfolioValue()
	remaining := tpv.Sub(p.TotalMarginUsed())

	if remaining.Sign() >= 0 {
		if p.warningBuffer.Sign() > 0 && remaining.LessThan(tpv.Mul(p.warningBuffer)) {
			p.logger.Warn("margin remaining inside warning buffer",
				"remaining", remaining,
				"portfolio_value", tpv)
			return nil, true
		}
		return nil, false
	}

	shortfall := remaining.Neg()
	p.logger.Warn("margin call triggered",
		"shortfall", shortfall,
		"portfolio_value", tpv)

	p.manager.Each(func(sec *securities.Security) {
		if shortfall.Sign() <= 0 {
			return
		}
		holdings := sec.Holdings()
		if holdings.Quantity().IsZero() {
			return
		}
		if sec.Leverage().LessThanOrEqual(decimal.NewFromInt(1)) {
			return
		}

		freed := p.toAccount(sec, sec.MarginModel().MaintenanceMargin(sec))
		orders = append(orders, core.Order{
			ID:       uuid.NewString(),
			Symbol:   sec.Symbol(),
			Type:     core.OrderTypeMarket,
			Quantity: holdings.Quantity().Neg(),
			Price:    sec.Price(),
		})
		shortfall = shortfall.Sub(freed)
	})

	if len(orders) == 0 {
		// Under-margined with no reducible position: nothing to
		// liquidate, but the caller still has to hear about it.
		return nil, true
	}
	return orders, false
}

// holdingsValueInAccount converts a position's market value into the
// account currency through the cash book
func (p *Portfolio) holdingsValueInAccount(sec *securities.Security) decimal.Decimal {
	return p.toAccount(sec, sec.Holdings().HoldingsValue())
}

// toAccount converts a settlement-currency amount into the account currency
func (p *Portfolio) toAccount(sec *securities.Security, amount decimal.Decimal) decimal.Decimal {
	settlement := sec.QuoteCurrency()
	if settlement == "" || settlement == p.cashBook.AccountCurrency() {
		return amount
	}
	return amount.Mul(p.cashBook.ConversionRate(settlement))
}
