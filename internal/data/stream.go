package data

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
	"backtest_engine/pkg/websocket"
)

// tickMessage is the wire shape of one live tick
type tickMessage struct {
	Symbol string          `json:"symbol"`
	Time   int64           `json:"time"` // unix milliseconds
	Price  decimal.Decimal `json:"price"`
}

// StreamSource adapts a live WebSocket tick stream into the pull-based
// source interface. Ticks buffer in a channel; Next blocks until a tick
// arrives or the source is closed.
type StreamSource struct {
	client *websocket.Client
	symbol string
	logger core.ILogger

	ticks     chan core.DataPoint
	closeOnce sync.Once
	closed    chan struct{}

	lastTime time.Time
}

// NewStreamSource connects to url and begins buffering ticks for symbol.
// bufferSize bounds the tick backlog; beyond it the oldest tick is dropped
// so a slow consumer sees recent prices rather than stale ones.
func NewStreamSource(url, symbol string, bufferSize int, logger core.ILogger) *StreamSource {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	s := &StreamSource{
		symbol: symbol,
		logger: logger,
		ticks:  make(chan core.DataPoint, bufferSize),
		closed: make(chan struct{}),
	}
	s.client = websocket.NewClient(url, s.onMessage, logger)
	s.client.Start()
	return s
}

func (s *StreamSource) onMessage(message []byte) {
	var tick tickMessage
	if err := json.Unmarshal(message, &tick); err != nil {
		s.logger.Warn("dropping malformed tick", "symbol", s.symbol, "error", err)
		return
	}
	if tick.Symbol != "" && tick.Symbol != s.symbol {
		return
	}

	point := core.DataPoint{
		Symbol: s.symbol,
		Time:   time.UnixMilli(tick.Time).UTC(),
		Value:  tick.Price,
	}

	select {
	case s.ticks <- point:
	default:
		// Backlog full, drop the oldest tick
		select {
		case <-s.ticks:
		default:
		}
		select {
		case s.ticks <- point:
		default:
		}
	}
}

// Next blocks for the next tick at or after the last delivered timestamp
func (s *StreamSource) Next() (core.DataPoint, error) {
	for {
		select {
		case <-s.closed:
			return core.DataPoint{}, apperrors.ErrSourceExhausted
		case point := <-s.ticks:
			if point.Time.Before(s.lastTime) {
				continue
			}
			s.lastTime = point.Time
			return point, nil
		}
	}
}

// Close stops the stream; a blocked Next returns ErrSourceExhausted
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.client.Stop()
	})
	return nil
}
