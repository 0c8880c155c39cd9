package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
)

func TestNextOrderIDMonotone(t *testing.T) {
	f := newFixture(t, 1000)
	first := f.txn.NextOrderID()
	second := f.txn.NextOrderID()
	assert.Equal(t, first+1, second)
}

func TestSufficientCapitalUnknownSymbol(t *testing.T) {
	f := newFixture(t, 1000)
	_, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "GHOST", Quantity: dec(1), Price: dec(10)})
	assert.ErrorIs(t, err, apperrors.ErrUnknownSecurity)
}

func TestSufficientCapitalZeroQuantity(t *testing.T) {
	f := newFixture(t, 1000)
	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "GHOST"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSufficientCapitalAtMarginBoundary(t *testing.T) {
	f := newFixture(t, 1000)
	f.addEquity(t, "AAPL", 2, 100)

	// Leverage 2 on 1000 of equity buys exactly 2000 of notional.
	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(20), Price: dec(100)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(21), Price: dec(100)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSufficientCapitalAccountsForFee(t *testing.T) {
	f := newFixture(t, 1000)
	f.addEquity(t, "AAPL", 2, 100)
	txn := NewTransactionManager(&MockLogger{}, f.manager, f.portfolio, ConstantFeeModel{Fee: dec(1)})

	// 20 shares sit exactly at the margin boundary; the fee tips it over.
	ok, err := txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(20), Price: dec(100)})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(19), Price: dec(100)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSufficientCapitalShortBoundary(t *testing.T) {
	f := newFixture(t, 1000)
	f.addEquity(t, "AAPL", 2, 100)

	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(-20), Price: dec(100)})
	require.NoError(t, err)
	assert.True(t, ok, "short exposure consumes margin symmetrically")

	ok, err = f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(-21), Price: dec(100)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSufficientCapitalUsesLastPriceWhenUnpriced(t *testing.T) {
	f := newFixture(t, 1000)
	f.addEquity(t, "AAPL", 2, 100)

	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(20)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSufficientCapitalRejectsUnpricedSecurity(t *testing.T) {
	f := newFixture(t, 1000)
	f.addEquity(t, "AAPL", 2, 0)

	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(20)})
	require.NoError(t, err)
	assert.False(t, ok, "no observed price means the order cannot be valued")
}

func TestSufficientCapitalIsPure(t *testing.T) {
	f := newFixture(t, 1000)
	sec := f.addEquity(t, "AAPL", 2, 100)
	f.fill(t, "AAPL", 100, 5)

	cashBefore := f.portfolio.Cash()
	qtyBefore := sec.Holdings().Quantity()
	avgBefore := sec.Holdings().AveragePrice()

	order := core.Order{Symbol: "AAPL", Quantity: dec(10), Price: dec(100)}
	first, err := f.txn.GetSufficientCapitalForOrder(order)
	require.NoError(t, err)
	second, err := f.txn.GetSufficientCapitalForOrder(order)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated checks agree")
	assert.True(t, f.portfolio.Cash().Equal(cashBefore))
	assert.True(t, sec.Holdings().Quantity().Equal(qtyBefore))
	assert.True(t, sec.Holdings().AveragePrice().Equal(avgBefore))
}

func TestSufficientCapitalReducingPositionAlwaysPasses(t *testing.T) {
	f := newFixture(t, 1000)
	sec := f.addEquity(t, "AAPL", 2, 100)
	f.fill(t, "AAPL", 100, 20)

	// Fully margined, but closing frees margin rather than consuming it.
	sec.Holdings().SetMarketPrice(dec(100))
	ok, err := f.txn.GetSufficientCapitalForOrder(core.Order{Symbol: "AAPL", Quantity: dec(-20), Price: dec(100)})
	require.NoError(t, err)
	assert.True(t, ok)
}
