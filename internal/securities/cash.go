package securities

import (
	"fmt"

	"backtest_engine/internal/core"

	"github.com/shopspring/decimal"
)

// CashAmount is a per-currency balance plus its conversion rate into the
// account currency. Quantity is unconstrained in sign (debt is permitted);
// the conversion rate is never negative.
type CashAmount struct {
	currency         string
	quantity         decimal.Decimal
	conversionRate   decimal.Decimal
	conversionSymbol string
	invertRate       bool
}

// NewCashAmount creates a balance for the given currency code
func NewCashAmount(currency string, quantity, conversionRate decimal.Decimal) *CashAmount {
	if conversionRate.Sign() < 0 {
		conversionRate = decimal.Zero
	}
	return &CashAmount{
		currency:       currency,
		quantity:       quantity,
		conversionRate: conversionRate,
	}
}

// Currency returns the currency code
func (c *CashAmount) Currency() string {
	return c.currency
}

// Quantity returns the signed balance
func (c *CashAmount) Quantity() decimal.Decimal {
	return c.quantity
}

// SetQuantity replaces the balance
func (c *CashAmount) SetQuantity(quantity decimal.Decimal) {
	c.quantity = quantity
}

// AddQuantity adjusts the balance by a signed delta
func (c *CashAmount) AddQuantity(delta decimal.Decimal) {
	c.quantity = c.quantity.Add(delta)
}

// ConversionRate returns the rate into the account currency
func (c *CashAmount) ConversionRate() decimal.Decimal {
	return c.conversionRate
}

// SetConversionRate replaces the rate; negative rates are rejected
func (c *CashAmount) SetConversionRate(rate decimal.Decimal) error {
	if rate.Sign() < 0 {
		return fmt.Errorf("negative conversion rate %s for %s", rate, c.currency)
	}
	c.conversionRate = rate
	return nil
}

// ConversionSymbol returns the currency-pair symbol whose quotes drive
// this balance's conversion rate, empty if unresolved
func (c *CashAmount) ConversionSymbol() string {
	return c.conversionSymbol
}

// LinkConversion binds the balance to a quoting symbol. When invert is set
// the observed quote is reciprocal to the account-currency rate.
func (c *CashAmount) LinkConversion(symbol string, invert bool) {
	c.conversionSymbol = symbol
	c.invertRate = invert
}

// Update applies a market data tick. Quotes for symbols other than the
// linked conversion symbol are ignored.
func (c *CashAmount) Update(point core.DataPoint) {
	if c.conversionSymbol == "" || point.Symbol != c.conversionSymbol {
		return
	}
	if c.invertRate {
		if point.Value.IsZero() {
			return
		}
		c.conversionRate = decimal.NewFromInt(1).Div(point.Value)
		return
	}
	c.conversionRate = point.Value
}

// ValueInAccountCurrency is quantity times conversion rate
func (c *CashAmount) ValueInAccountCurrency() decimal.Decimal {
	return c.quantity.Mul(c.conversionRate)
}

func (c *CashAmount) String() string {
	return fmt.Sprintf("%s: %s @ %s", c.currency, c.quantity, c.conversionRate)
}
