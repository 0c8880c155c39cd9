package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest_engine/internal/core"
	"backtest_engine/internal/securities"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func pricedSecurity(t *testing.T, price float64) *securities.Security {
	t.Helper()
	sec, err := securities.NewSecurity(securities.SecuritySpec{
		Symbol:   "AAPL",
		Type:     core.SecurityTypeEquity,
		Leverage: dec(2),
	})
	require.NoError(t, err)
	sec.Holdings().SetMarketPrice(dec(price))
	return sec
}

func TestImmediateFillMarketOrder(t *testing.T) {
	sec := pricedSecurity(t, 100)
	model := ImmediateFillModel{}

	event, filled := model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeMarket, Quantity: dec(5)}, 1)
	require.True(t, filled)
	assert.Equal(t, core.OrderStatusFilled, event.Status)
	assert.Equal(t, core.DirectionBuy, event.Direction)
	assert.True(t, event.FillPrice.Equal(dec(100)))
	assert.True(t, event.FillQuantity.Equal(dec(5)))
	assert.Equal(t, int64(1), event.OrderID)
}

func TestImmediateFillUnpricedMarket(t *testing.T) {
	sec := pricedSecurity(t, 0)
	model := ImmediateFillModel{}

	_, filled := model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeMarket, Quantity: dec(5)}, 1)
	assert.False(t, filled, "nothing to fill against before the first tick")
}

func TestImmediateFillLimitOrder(t *testing.T) {
	sec := pricedSecurity(t, 100)
	model := ImmediateFillModel{}

	// Buy limit above the market is marketable, fills at the limit.
	event, filled := model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeLimit, Quantity: dec(5), Price: dec(101)}, 1)
	require.True(t, filled)
	assert.True(t, event.FillPrice.Equal(dec(101)))

	// Buy limit below the market rests.
	_, filled = model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeLimit, Quantity: dec(5), Price: dec(99)}, 2)
	assert.False(t, filled)

	// Sell limit below the market is marketable.
	_, filled = model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeLimit, Quantity: dec(-5), Price: dec(99)}, 3)
	assert.True(t, filled)

	// Sell limit above the market rests.
	_, filled = model.Fill(sec, core.Order{Symbol: "AAPL", Type: core.OrderTypeLimit, Quantity: dec(-5), Price: dec(101)}, 4)
	assert.False(t, filled)
}
