package securities

import (
	"github.com/shopspring/decimal"
)

// Holdings tracks a single security's position: signed quantity, average
// cost, and the last observed market price. Mutated only through fills and
// market price updates on the consumer thread.
type Holdings struct {
	quantity     decimal.Decimal
	averagePrice decimal.Decimal
	lastPrice    decimal.Decimal
}

// NewHoldings returns an empty position
func NewHoldings() *Holdings {
	return &Holdings{}
}

// Quantity returns the signed position size
func (h *Holdings) Quantity() decimal.Decimal {
	return h.quantity
}

// AveragePrice returns the weighted average cost of the open position
func (h *Holdings) AveragePrice() decimal.Decimal {
	return h.averagePrice
}

// Price returns the last observed market price
func (h *Holdings) Price() decimal.Decimal {
	return h.lastPrice
}

// HoldingsValue is quantity times last market price, in the security's
// settlement currency
func (h *Holdings) HoldingsValue() decimal.Decimal {
	return h.quantity.Mul(h.lastPrice)
}

// AbsoluteHoldingsCost is |quantity| times average price
func (h *Holdings) AbsoluteHoldingsCost() decimal.Decimal {
	return h.quantity.Abs().Mul(h.averagePrice)
}

// IsLong reports a positive position
func (h *Holdings) IsLong() bool {
	return h.quantity.Sign() > 0
}

// IsShort reports a negative position
func (h *Holdings) IsShort() bool {
	return h.quantity.Sign() < 0
}

// SetHoldings replaces the position outright
func (h *Holdings) SetHoldings(averagePrice, quantity decimal.Decimal) {
	h.averagePrice = averagePrice
	h.quantity = quantity
}

// SetMarketPrice records the latest market price
func (h *Holdings) SetMarketPrice(price decimal.Decimal) {
	h.lastPrice = price
}

// AddFill applies a fill to the position following weighted-average-cost
// rules. Opening or adding keeps a volume-weighted average; a partial close
// leaves the average untouched; a flip restarts the average at the fill
// price; a full close zeroes it.
func (h *Holdings) AddFill(fillPrice, fillQuantity decimal.Decimal) {
	oldQuantity := h.quantity
	newQuantity := oldQuantity.Add(fillQuantity)

	switch {
	case oldQuantity.IsZero():
		h.averagePrice = fillPrice
	case oldQuantity.Sign() == fillQuantity.Sign():
		// adding to the position: volume-weighted average
		oldCost := h.averagePrice.Mul(oldQuantity.Abs())
		fillCost := fillPrice.Mul(fillQuantity.Abs())
		h.averagePrice = oldCost.Add(fillCost).Div(newQuantity.Abs())
	case newQuantity.IsZero():
		h.averagePrice = decimal.Zero
	case newQuantity.Sign() != oldQuantity.Sign():
		// position flipped through zero
		h.averagePrice = fillPrice
	}
	// partial close: average price unchanged

	h.quantity = newQuantity
}
