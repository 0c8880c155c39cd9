// Package securities models tradable instruments, positions, and the
// multi-currency cash book of the engine.
package securities

import (
	"fmt"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// Security is one tradable instrument: identity, exchange hours, leverage,
// settlement currency, position, and margin model. Owned exclusively by the
// Manager. The settlement currency is held as a currency-code index into the
// cash book, never as a pointer into it.
type Security struct {
	symbol        string
	secType       core.SecurityType
	market        string
	timeZone      string
	resolution    core.Resolution
	hours         *ExchangeHours
	quoteCurrency string
	leverage      decimal.Decimal
	holdings      *Holdings
	marginModel   MarginModel
}

// SecuritySpec carries the construction parameters for a Security
type SecuritySpec struct {
	Symbol        string
	Type          core.SecurityType
	Market        string
	TimeZone      string
	Resolution    core.Resolution
	Hours         *ExchangeHours
	QuoteCurrency string
	Leverage      decimal.Decimal
}

// NewSecurity constructs a security. Leverage must be positive; a
// misconfigured leverage is rejected here, not deferred to valuation.
func NewSecurity(spec SecuritySpec) (*Security, error) {
	if spec.Leverage.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s for %s", apperrors.ErrInvalidLeverage, spec.Leverage, spec.Symbol)
	}
	if spec.Hours == nil {
		spec.Hours = AlwaysOpen()
	}
	if spec.Resolution == "" {
		spec.Resolution = core.ResolutionMinute
	}
	if spec.TimeZone == "" {
		spec.TimeZone = "UTC"
	}

	return &Security{
		symbol:        spec.Symbol,
		secType:       spec.Type,
		market:        spec.Market,
		timeZone:      spec.TimeZone,
		resolution:    spec.Resolution,
		hours:         spec.Hours,
		quoteCurrency: spec.QuoteCurrency,
		leverage:      spec.Leverage,
		holdings:      NewHoldings(),
		marginModel:   SecurityMarginModel{},
	}, nil
}

// Symbol returns the security's symbol
func (s *Security) Symbol() string {
	return s.symbol
}

// Type returns the asset class
func (s *Security) Type() core.SecurityType {
	return s.secType
}

// Market returns the venue name
func (s *Security) Market() string {
	return s.market
}

// Hours returns the exchange hours capability
func (s *Security) Hours() *ExchangeHours {
	return s.hours
}

// QuoteCurrency returns the settlement currency code
func (s *Security) QuoteCurrency() string {
	return s.quoteCurrency
}

// Leverage returns the current leverage
func (s *Security) Leverage() decimal.Decimal {
	return s.leverage
}

// SetLeverage replaces the leverage; non-positive values are rejected
func (s *Security) SetLeverage(leverage decimal.Decimal) error {
	if leverage.Sign() <= 0 {
		return fmt.Errorf("%w: %s for %s", apperrors.ErrInvalidLeverage, leverage, s.symbol)
	}
	s.leverage = leverage
	return nil
}

// Holdings returns the position
func (s *Security) Holdings() *Holdings {
	return s.holdings
}

// MarginModel returns the security's margin model
func (s *Security) MarginModel() MarginModel {
	return s.marginModel
}

// SetMarginModel replaces the margin model
func (s *Security) SetMarginModel(model MarginModel) {
	s.marginModel = model
}

// Price returns the last observed market price
func (s *Security) Price() decimal.Decimal {
	return s.holdings.Price()
}

// SetMarketPrice applies a market data point to the security
func (s *Security) SetMarketPrice(point core.DataPoint) {
	s.holdings.SetMarketPrice(point.Value)
}

// SubscriptionTemplate builds the subscription describing this security's
// data request; the data feed fills in the UTC window.
func (s *Security) SubscriptionTemplate() core.Subscription {
	return core.Subscription{
		Type:       s.secType,
		Symbol:     s.symbol,
		Resolution: s.resolution,
		Market:     s.market,
		TimeZone:   s.timeZone,
		DataType:   core.DataTypeTrade,
	}
}
