package securities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestAddFillOpensPosition(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))

	assert.True(t, h.Quantity().Equal(dec(10)))
	assert.True(t, h.AveragePrice().Equal(dec(100)))
	assert.True(t, h.IsLong())
}

func TestAddFillVolumeWeightsAverage(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))
	h.AddFill(dec(200), dec(10))

	assert.True(t, h.Quantity().Equal(dec(20)))
	assert.True(t, h.AveragePrice().Equal(dec(150)))
	assert.True(t, h.AbsoluteHoldingsCost().Equal(dec(3000)))
}

func TestAddFillPartialCloseKeepsAverage(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))
	h.AddFill(dec(120), dec(-4))

	assert.True(t, h.Quantity().Equal(dec(6)))
	assert.True(t, h.AveragePrice().Equal(dec(100)), "selling part of the position leaves the average alone")
}

func TestAddFillFullCloseZeroesAverage(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))
	h.AddFill(dec(120), dec(-10))

	assert.True(t, h.Quantity().IsZero())
	assert.True(t, h.AveragePrice().IsZero())
}

func TestAddFillFlipRestartsAverage(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))
	h.AddFill(dec(120), dec(-15))

	assert.True(t, h.Quantity().Equal(dec(-5)))
	assert.True(t, h.AveragePrice().Equal(dec(120)), "flipping through zero restarts the average at the fill")
	assert.True(t, h.IsShort())
}

func TestShortAveraging(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(-10))
	h.AddFill(dec(200), dec(-10))

	assert.True(t, h.Quantity().Equal(dec(-20)))
	assert.True(t, h.AveragePrice().Equal(dec(150)))
	assert.True(t, h.AbsoluteHoldingsCost().Equal(dec(3000)))
}

func TestHoldingsValueUsesMarketPrice(t *testing.T) {
	h := NewHoldings()
	h.AddFill(dec(100), dec(10))
	h.SetMarketPrice(dec(110))

	assert.True(t, h.HoldingsValue().Equal(dec(1100)))
	assert.True(t, h.AbsoluteHoldingsCost().Equal(dec(1000)), "cost does not follow the market")
}
