package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType identifies the asset class of a security
type SecurityType string

const (
	SecurityTypeBase   SecurityType = "BASE"
	SecurityTypeEquity SecurityType = "EQUITY"
	SecurityTypeForex  SecurityType = "FOREX"
)

// Resolution is the bar period of a data subscription
type Resolution string

const (
	ResolutionTick   Resolution = "TICK"
	ResolutionSecond Resolution = "SECOND"
	ResolutionMinute Resolution = "MINUTE"
	ResolutionHour   Resolution = "HOUR"
	ResolutionDaily  Resolution = "DAILY"
)

// DataType identifies the payload kind of a subscription
type DataType string

const (
	DataTypeTrade DataType = "TRADE"
	DataTypeQuote DataType = "QUOTE"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusInvalid         OrderStatus = "INVALID"
)

// OrderDirection is the signed direction of a fill
type OrderDirection int

const (
	DirectionSell OrderDirection = -1
	DirectionHold OrderDirection = 0
	DirectionBuy  OrderDirection = 1
)

// DirectionOf derives the order direction from a signed quantity
func DirectionOf(quantity decimal.Decimal) OrderDirection {
	switch quantity.Sign() {
	case -1:
		return DirectionSell
	case 1:
		return DirectionBuy
	default:
		return DirectionHold
	}
}

// OrderType identifies how an order is priced
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// DataPoint is a single timestamped value for one symbol.
// Time is always UTC.
type DataPoint struct {
	Symbol string
	Time   time.Time
	Value  decimal.Decimal
}

// TradeBar is an OHLCV bar for one symbol. Time is the bar end, UTC.
type TradeBar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// ToDataPoint collapses the bar to its closing value
func (b TradeBar) ToDataPoint() DataPoint {
	return DataPoint{Symbol: b.Symbol, Time: b.Time, Value: b.Close}
}

// Subscription describes one security's data request over a UTC interval.
// Immutable once created except for end-time extension, which is handled
// by the owning data feed.
type Subscription struct {
	Type       SecurityType
	Symbol     string
	Resolution Resolution
	Market     string
	TimeZone   string
	UTCStart   time.Time
	UTCEnd     time.Time
	DataType   DataType
}

// Equivalent reports whether two subscriptions request the same stream
func (s Subscription) Equivalent(other Subscription) bool {
	return s.Symbol == other.Symbol &&
		s.Resolution == other.Resolution &&
		s.DataType == other.DataType
}

// SlicePoint pairs a data point with the subscription that produced it
type SlicePoint struct {
	Subscription Subscription
	Point        DataPoint
}

// TimeSlice bundles all data points that became available at a single
// synchronized UTC timestamp across active subscriptions. Immutable;
// consumed exactly once by the algorithm thread.
type TimeSlice struct {
	Time   time.Time
	Points []SlicePoint
}

// Get returns the data point for symbol, if the slice carries one
func (ts *TimeSlice) Get(symbol string) (DataPoint, bool) {
	for _, p := range ts.Points {
		if p.Point.Symbol == symbol {
			return p.Point, true
		}
	}
	return DataPoint{}, false
}

// OrderEvent is an immutable fill notification from the execution layer
type OrderEvent struct {
	OrderID      int64
	Symbol       string
	Status       OrderStatus
	Direction    OrderDirection
	FillPrice    decimal.Decimal
	FillQuantity decimal.Decimal
}

// NewOrderEvent builds a fill event, deriving direction from the fill
// quantity sign
func NewOrderEvent(orderID int64, symbol string, status OrderStatus, fillPrice, fillQuantity decimal.Decimal) OrderEvent {
	return OrderEvent{
		OrderID:      orderID,
		Symbol:       symbol,
		Status:       status,
		Direction:    DirectionOf(fillQuantity),
		FillPrice:    fillPrice,
		FillQuantity: fillQuantity,
	}
}

// Order is a proposed or submitted order. Quantity is signed.
type Order struct {
	ID       string
	Symbol   string
	Type     OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Time     time.Time
}

// Value is the gross notional of the order in its settlement currency
func (o Order) Value() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}

// BacktestJob carries the run parameters handed to the data feed
type BacktestJob struct {
	RunID           string
	Name            string
	AccountCurrency string
	StartingCash    decimal.Decimal
	UTCStart        time.Time
	UTCEnd          time.Time
}
