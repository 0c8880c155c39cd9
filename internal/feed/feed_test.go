package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest_engine/internal/core"
	"backtest_engine/internal/data"
	"backtest_engine/internal/securities"
	apperrors "backtest_engine/pkg/errors"
)

type MockLogger struct{}

func (m *MockLogger) Debug(msg string, fields ...interface{})               {}
func (m *MockLogger) Info(msg string, fields ...interface{})                {}
func (m *MockLogger) Warn(msg string, fields ...interface{})                {}
func (m *MockLogger) Error(msg string, fields ...interface{})               {}
func (m *MockLogger) Fatal(msg string, fields ...interface{})               {}
func (m *MockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *MockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

func testSecurity(t *testing.T, symbol string) *securities.Security {
	t.Helper()
	sec, err := securities.NewSecurity(securities.SecuritySpec{
		Symbol:   symbol,
		Type:     core.SecurityTypeEquity,
		Market:   "test",
		Leverage: decimal.NewFromInt(2),
	})
	require.NoError(t, err)
	return sec
}

func point(symbol string, sec int64, value float64) core.DataPoint {
	return core.DataPoint{
		Symbol: symbol,
		Time:   time.Unix(sec, 0).UTC(),
		Value:  decimal.NewFromFloat(value),
	}
}

func mapFactory(points map[string][]core.DataPoint) SourceFactory {
	return func(sub core.Subscription) (core.IDataSource, error) {
		return data.NewSliceSource(points[sub.Symbol]), nil
	}
}

func testJob() core.BacktestJob {
	return core.BacktestJob{
		RunID:           "test-run",
		AccountCurrency: "USD",
		UTCStart:        time.Unix(0, 0).UTC(),
		UTCEnd:          time.Unix(10_000, 0).UTC(),
	}
}

func drain(t *testing.T, b *Bridge) []*core.TimeSlice {
	t.Helper()
	var slices []*core.TimeSlice
	for {
		slice, ok := b.Take()
		if !ok {
			return slices
		}
		slices = append(slices, slice)
		b.Done()
	}
}

func TestFeedInitializeOnce(t *testing.T) {
	f := NewDataFeed(&MockLogger{}, mapFactory(nil), 8, 0)
	require.NoError(t, f.Initialize(testJob()))
	assert.ErrorIs(t, f.Initialize(testJob()), apperrors.ErrFeedAlreadyInitialized)
}

func TestFeedAddSubscriptionRequiresInitialize(t *testing.T) {
	f := NewDataFeed(&MockLogger{}, mapFactory(nil), 8, 0)
	err := f.AddSubscription(testSecurity(t, "AAPL"), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrFeedNotInitialized)
}

func TestFeedDuplicateSubscriptionIsNoOp(t *testing.T) {
	opened := 0
	factory := func(sub core.Subscription) (core.IDataSource, error) {
		opened++
		return data.NewSliceSource(nil), nil
	}
	f := NewDataFeed(&MockLogger{}, factory, 8, 0)
	require.NoError(t, f.Initialize(testJob()))

	sec := testSecurity(t, "AAPL")
	require.NoError(t, f.AddSubscription(sec, time.Time{}, time.Time{}))
	require.NoError(t, f.AddSubscription(sec, time.Time{}, time.Time{}))

	assert.Equal(t, 1, opened)
	assert.Len(t, f.Subscriptions(), 1)
}

func TestFeedRemoveUnknownSubscription(t *testing.T) {
	f := NewDataFeed(&MockLogger{}, mapFactory(nil), 8, 0)
	require.NoError(t, f.Initialize(testJob()))
	assert.ErrorIs(t, f.RemoveSubscription("MSFT"), apperrors.ErrSubscriptionNotFound)
}

func TestFeedProducesSynchronizedSlices(t *testing.T) {
	points := map[string][]core.DataPoint{
		"AAPL": {point("AAPL", 60, 100), point("AAPL", 120, 101), point("AAPL", 180, 102)},
		"MSFT": {point("MSFT", 60, 200), point("MSFT", 180, 202)},
	}
	f := NewDataFeed(&MockLogger{}, mapFactory(points), 8, 0)
	require.NoError(t, f.Initialize(testJob()))
	require.NoError(t, f.AddSubscription(testSecurity(t, "AAPL"), time.Time{}, time.Time{}))
	require.NoError(t, f.AddSubscription(testSecurity(t, "MSFT"), time.Time{}, time.Time{}))

	subs := f.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, "AAPL", subs[0].Symbol)
	assert.True(t, f.HasSubscription("MSFT"))

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	slices := drain(t, f.Bridge())
	require.NoError(t, <-errCh)

	require.Len(t, slices, 3)

	// t=60 carries both symbols, merged into one slice, symbol-ordered
	require.Len(t, slices[0].Points, 2)
	assert.Equal(t, "AAPL", slices[0].Points[0].Point.Symbol)
	assert.Equal(t, "MSFT", slices[0].Points[1].Point.Symbol)

	// t=120 only AAPL printed
	require.Len(t, slices[1].Points, 1)
	assert.Equal(t, "AAPL", slices[1].Points[0].Point.Symbol)

	require.Len(t, slices[2].Points, 2)

	for i := 1; i < len(slices); i++ {
		assert.True(t, slices[i-1].Time.Before(slices[i].Time), "slice times must be strictly ascending")
	}
	assert.False(t, f.IsActive())
}

func TestFeedHonorsSubscriptionWindow(t *testing.T) {
	points := map[string][]core.DataPoint{
		"AAPL": {point("AAPL", 10, 99), point("AAPL", 60, 100), point("AAPL", 120, 101), point("AAPL", 500, 105)},
	}
	f := NewDataFeed(&MockLogger{}, mapFactory(points), 8, 0)
	require.NoError(t, f.Initialize(testJob()))
	require.NoError(t, f.AddSubscription(testSecurity(t, "AAPL"),
		time.Unix(60, 0).UTC(), time.Unix(120, 0).UTC()))

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	slices := drain(t, f.Bridge())
	require.NoError(t, <-errCh)

	require.Len(t, slices, 2)
	assert.Equal(t, time.Unix(60, 0).UTC(), slices[0].Time)
	assert.Equal(t, time.Unix(120, 0).UTC(), slices[1].Time)
}

func TestFeedExitUnblocksFullBridge(t *testing.T) {
	points := map[string][]core.DataPoint{
		"AAPL": {point("AAPL", 60, 1), point("AAPL", 120, 2), point("AAPL", 180, 3), point("AAPL", 240, 4)},
	}
	// Capacity 1 and no consumer: the producer must block on the bridge.
	f := NewDataFeed(&MockLogger{}, mapFactory(points), 1, 0)
	require.NoError(t, f.Initialize(testJob()))
	require.NoError(t, f.AddSubscription(testSecurity(t, "AAPL"), time.Time{}, time.Time{}))

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	f.Exit()
	f.Exit() // idempotent

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Exit did not unblock the producer")
	}
	assert.True(t, f.Bridge().IsCompleted())
}

type failingSource struct {
	served bool
}

func (s *failingSource) Next() (core.DataPoint, error) {
	if s.served {
		return core.DataPoint{}, errors.New("disk gone")
	}
	s.served = true
	return point("BAD", 60, 1), nil
}

func (s *failingSource) Close() error { return nil }

func TestFeedIsolatesFailingSource(t *testing.T) {
	good := []core.DataPoint{point("AAPL", 60, 100), point("AAPL", 120, 101)}
	factory := func(sub core.Subscription) (core.IDataSource, error) {
		if sub.Symbol == "BAD" {
			return &failingSource{}, nil
		}
		return data.NewSliceSource(good), nil
	}

	f := NewDataFeed(&MockLogger{}, factory, 8, 0)
	require.NoError(t, f.Initialize(testJob()))
	require.NoError(t, f.AddSubscription(testSecurity(t, "AAPL"), time.Time{}, time.Time{}))
	require.NoError(t, f.AddSubscription(testSecurity(t, "BAD"), time.Time{}, time.Time{}))

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	slices := drain(t, f.Bridge())
	require.NoError(t, <-errCh)

	// BAD contributes its first point, then its failure retires only BAD.
	require.Len(t, slices, 2)
	require.Len(t, slices[0].Points, 2)
	require.Len(t, slices[1].Points, 1)
	assert.Equal(t, "AAPL", slices[1].Points[0].Point.Symbol)
}
