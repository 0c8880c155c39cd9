package securities

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// SubscriptionRegistry is the slice of the data feed the cash book needs to
// synthesize conversion-rate subscriptions. Zero start/end times mean "use
// the feed's own job window".
type SubscriptionRegistry interface {
	AddSubscription(security *Security, utcStart, utcEnd time.Time) error
	HasSubscription(symbol string) bool
}

// knownPairs are the currency pairs quoted by convention on forex venues.
// Symbol direction matters: a pair listed here is quoted base/quote, and a
// conversion against the reversed pair uses the reciprocal of the quote.
var knownPairs = map[string]struct{}{
	"EURUSD": {}, "GBPUSD": {}, "AUDUSD": {}, "NZDUSD": {},
	"USDJPY": {}, "USDCAD": {}, "USDCHF": {}, "USDSEK": {},
	"USDNOK": {}, "USDSGD": {}, "USDHKD": {}, "USDMXN": {},
	"EURGBP": {}, "EURJPY": {}, "EURCHF": {}, "EURCAD": {},
	"EURAUD": {}, "GBPJPY": {}, "AUDJPY": {}, "CHFJPY": {},
	"NZDJPY": {}, "CADJPY": {}, "GBPCHF": {}, "AUDNZD": {},
}

// CashBook is the per-currency balance ledger. It always contains the
// account currency at rate 1 and holds exactly one entry per currency code.
type CashBook struct {
	accountCurrency string

	mu   sync.RWMutex
	cash map[string]*CashAmount
}

// NewCashBook creates a ledger denominated in the given account currency
func NewCashBook(accountCurrency string) *CashBook {
	accountCurrency = strings.ToUpper(accountCurrency)
	book := &CashBook{
		accountCurrency: accountCurrency,
		cash:            make(map[string]*CashAmount),
	}
	book.cash[accountCurrency] = NewCashAmount(accountCurrency, decimal.Zero, decimal.NewFromInt(1))
	return book
}

// AccountCurrency returns the ledger's denomination currency code
func (b *CashBook) AccountCurrency() string {
	return b.accountCurrency
}

// Add inserts or updates a currency entry
func (b *CashBook) Add(currency string, quantity, conversionRate decimal.Decimal) *CashAmount {
	currency = strings.ToUpper(currency)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.cash[currency]; ok {
		existing.SetQuantity(quantity)
		if currency != b.accountCurrency {
			_ = existing.SetConversionRate(conversionRate)
		}
		return existing
	}

	amount := NewCashAmount(currency, quantity, conversionRate)
	b.cash[currency] = amount
	return amount
}

// Get looks up a currency entry
func (b *CashBook) Get(currency string) (*CashAmount, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	amount, ok := b.cash[strings.ToUpper(currency)]
	return amount, ok
}

// Account returns the account-currency entry
func (b *CashBook) Account() *CashAmount {
	amount, _ := b.Get(b.accountCurrency)
	return amount
}

// Currencies returns all currency codes in ascending order
func (b *CashBook) Currencies() []string {
	b.mu.RLock()
	codes := make([]string, 0, len(b.cash))
	for code := range b.cash {
		codes = append(codes, code)
	}
	b.mu.RUnlock()

	sort.Strings(codes)
	return codes
}

// ConversionRate returns the rate into the account currency for a code,
// zero when the currency is absent or unresolved
func (b *CashBook) ConversionRate(currency string) decimal.Decimal {
	amount, ok := b.Get(currency)
	if !ok {
		return decimal.Zero
	}
	return amount.ConversionRate()
}

// Update fans a market data tick out to every balance; each balance
// ignores quotes for symbols other than its linked conversion pair
func (b *CashBook) Update(point core.DataPoint) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, amount := range b.cash {
		amount.Update(point)
	}
}

// TotalValueInAccountCurrency aggregates every balance through its
// conversion rate. Recomputed on each call; unresolved currencies carry a
// zero rate and contribute nothing.
func (b *CashBook) TotalValueInAccountCurrency() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := decimal.Zero
	for _, amount := range b.cash {
		total = total.Add(amount.ValueInAccountCurrency())
	}
	return total
}

// EnsureCurrencyDataFeeds guarantees that every currency held with a
// nonzero balance has a conversion-rate subscription feeding its rate.
// Resolution order per currency: an existing security or subscription for
// the direct pair (currency/account), then the reversed pair taken as a
// reciprocal quote, then synthesis of whichever ordering is conventionally
// quoted. Idempotent: already-linked balances are skipped.
func (b *CashBook) EnsureCurrencyDataFeeds(manager *Manager, registry SubscriptionRegistry, hours HoursProvider) error {
	b.mu.RLock()
	pending := make([]*CashAmount, 0, len(b.cash))
	for _, amount := range b.cash {
		if amount.Currency() == b.accountCurrency {
			continue
		}
		if amount.ConversionSymbol() != "" {
			continue
		}
		if amount.Quantity().IsZero() {
			continue
		}
		pending = append(pending, amount)
	}
	b.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Currency() < pending[j].Currency()
	})

	var unresolved []string
	for _, amount := range pending {
		if err := b.resolveConversion(amount, manager, registry, hours); err != nil {
			unresolved = append(unresolved, amount.Currency())
		}
	}

	if len(unresolved) > 0 {
		return fmt.Errorf("%w: %s to %s", apperrors.ErrUnresolvableCurrencyPath,
			strings.Join(unresolved, ","), b.accountCurrency)
	}
	return nil
}

// resolveConversion links one balance to a quoting pair, synthesizing the
// security and subscription when nothing suitable exists yet. The link is
// established before any security is registered so that re-entrant
// resolution triggered by Manager.Add finds nothing left to do.
func (b *CashBook) resolveConversion(amount *CashAmount, manager *Manager, registry SubscriptionRegistry, hours HoursProvider) error {
	currency := amount.Currency()
	direct := currency + b.accountCurrency
	inverse := b.accountCurrency + currency

	// Prefer streams that already exist.
	if manager.Contains(direct) || registry.HasSubscription(direct) {
		amount.LinkConversion(direct, false)
		return b.ensureSubscribed(direct, manager, registry)
	}
	if manager.Contains(inverse) || registry.HasSubscription(inverse) {
		amount.LinkConversion(inverse, true)
		return b.ensureSubscribed(inverse, manager, registry)
	}

	// Otherwise synthesize whichever ordering the venue quotes.
	if _, ok := knownPairs[direct]; ok {
		amount.LinkConversion(direct, false)
		return b.synthesizePair(direct, b.accountCurrency, manager, registry, hours)
	}
	if _, ok := knownPairs[inverse]; ok {
		amount.LinkConversion(inverse, true)
		return b.synthesizePair(inverse, currency, manager, registry, hours)
	}

	return fmt.Errorf("%w: %s", apperrors.ErrUnresolvableCurrencyPath, currency)
}

// ensureSubscribed makes sure a registered security also has a live
// subscription feeding it
func (b *CashBook) ensureSubscribed(symbol string, manager *Manager, registry SubscriptionRegistry) error {
	if registry.HasSubscription(symbol) {
		return nil
	}
	security, ok := manager.Get(symbol)
	if !ok {
		return nil
	}
	return registry.AddSubscription(security, time.Time{}, time.Time{})
}

// synthesizePair registers a placeholder forex security and subscription
// for a conversion pair so future market ticks drive the rate
func (b *CashBook) synthesizePair(symbol, quoteCurrency string, manager *Manager, registry SubscriptionRegistry, hours HoursProvider) error {
	security, err := NewSecurity(SecuritySpec{
		Symbol:        symbol,
		Type:          core.SecurityTypeForex,
		Market:        "forex",
		Resolution:    core.ResolutionMinute,
		Hours:         hours.HoursFor("forex", symbol),
		QuoteCurrency: quoteCurrency,
		Leverage:      decimal.NewFromInt(1),
	})
	if err != nil {
		return err
	}

	manager.Add(security)
	return registry.AddSubscription(security, time.Time{}, time.Time{})
}
