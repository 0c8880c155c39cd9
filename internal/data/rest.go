package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
	pkghttp "backtest_engine/pkg/http"
)

// restBar is one bar as served by the history endpoint
type restBar struct {
	Time  int64           `json:"time"` // unix milliseconds
	Price decimal.Decimal `json:"price"`
}

// RESTSource pulls a symbol's history from an HTTP service and replays
// it. The fetch happens lazily on the first Next and goes through the
// resilient client, so transient service errors retry before the
// subscription is given up on.
type RESTSource struct {
	client *pkghttp.Client
	symbol string
	window [2]time.Time

	points []core.DataPoint
	next   int
	loaded bool
}

// NewRESTSource creates a source for symbol against the given client.
// The window bounds the requested history; zero times are omitted.
func NewRESTSource(client *pkghttp.Client, symbol string, utcStart, utcEnd time.Time) *RESTSource {
	return &RESTSource{
		client: client,
		symbol: symbol,
		window: [2]time.Time{utcStart, utcEnd},
	}
}

// Next returns the next point, fetching the history on first use
func (s *RESTSource) Next() (core.DataPoint, error) {
	if !s.loaded {
		if err := s.load(); err != nil {
			return core.DataPoint{}, err
		}
	}
	if s.next >= len(s.points) {
		return core.DataPoint{}, apperrors.ErrSourceExhausted
	}
	point := s.points[s.next]
	s.next++
	return point, nil
}

// Close drops the buffered history
func (s *RESTSource) Close() error {
	s.points = nil
	s.next = 0
	return nil
}

func (s *RESTSource) load() error {
	params := map[string]string{"symbol": s.symbol}
	if !s.window[0].IsZero() {
		params["from"] = fmt.Sprintf("%d", s.window[0].UnixMilli())
	}
	if !s.window[1].IsZero() {
		params["to"] = fmt.Sprintf("%d", s.window[1].UnixMilli())
	}

	body, err := s.client.Get(context.Background(), "/history", params)
	if err != nil {
		return fmt.Errorf("fetching history for %s: %w", s.symbol, err)
	}

	var bars []restBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidDataPoint, err)
	}

	s.points = make([]core.DataPoint, 0, len(bars))
	for _, bar := range bars {
		s.points = append(s.points, core.DataPoint{
			Symbol: s.symbol,
			Time:   time.UnixMilli(bar.Time).UTC(),
			Value:  bar.Price,
		})
	}
	sort.SliceStable(s.points, func(i, j int) bool {
		return s.points[i].Time.Before(s.points[j].Time)
	})

	s.loaded = true
	return nil
}

// RESTFactory builds history-service sources sharing one client
func RESTFactory(client *pkghttp.Client) func(sub core.Subscription) (core.IDataSource, error) {
	return func(sub core.Subscription) (core.IDataSource, error) {
		return NewRESTSource(client, sub.Symbol, sub.UTCStart, sub.UTCEnd), nil
	}
}
