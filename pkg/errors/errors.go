package apperrors

import "errors"

// Standardized Engine Errors
var (
	ErrUnknownSecurity          = errors.New("unknown security")
	ErrUnresolvableCurrencyPath = errors.New("unresolvable currency conversion path")
	ErrInvalidLeverage          = errors.New("invalid leverage")
	ErrBridgeCompleted          = errors.New("bridge completed")
	ErrFeedAlreadyInitialized   = errors.New("data feed already initialized")
	ErrFeedNotInitialized       = errors.New("data feed not initialized")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrSourceExhausted          = errors.New("data source exhausted")
	ErrInvalidDataPoint         = errors.New("invalid data point")
)
