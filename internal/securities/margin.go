package securities

import (
	"backtest_engine/internal/core"

	"github.com/shopspring/decimal"
)

// MarginModel computes capital reserved against a security's position.
// Models are pluggable per security.
type MarginModel interface {
	// InitialMargin is the capital required to open the given order
	InitialMargin(security *Security, order core.Order) decimal.Decimal
	// MaintenanceMargin is the capital reserved against the current position
	MaintenanceMargin(security *Security) decimal.Decimal
}

// SecurityMarginModel is the standard margin model: margin scales with
// holdings cost divided by leverage. Maintenance margin is computed from
// the position's cost basis, so it moves with fills and leverage changes
// but not with market price; equity absorbs price moves instead.
type SecurityMarginModel struct{}

// InitialMargin implements MarginModel
func (SecurityMarginModel) InitialMargin(security *Security, order core.Order) decimal.Decimal {
	return order.Value().Abs().Div(security.Leverage())
}

// MaintenanceMargin implements MarginModel
func (SecurityMarginModel) MaintenanceMargin(security *Security) decimal.Decimal {
	return security.Holdings().AbsoluteHoldingsCost().Div(security.Leverage())
}
