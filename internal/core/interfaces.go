// Package core defines the shared types and interfaces of the backtest engine
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IDataSource is a lazy, time-ordered sequence of data points backing one
// subscription. Next returns apperrors.ErrSourceExhausted once the sequence
// ends; timestamps are monotonically non-decreasing.
type IDataSource interface {
	Next() (DataPoint, error)
	Close() error
}

// IAlgorithm consumes synchronized time slices and decides orders.
// OnData runs on the single consumer thread.
type IAlgorithm interface {
	OnData(slice *TimeSlice) []Order
}

// IResultHandler receives fills and equity samples produced by the engine
type IResultHandler interface {
	OnFill(event OrderEvent)
	OnEquity(t time.Time, equity decimal.Decimal)
	Close() error
}
