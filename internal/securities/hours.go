package securities

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// ExchangeHours answers "is the market open" queries for one venue.
// Backed by an ISO 10383 MIC calendar when one is available, with a
// Mon-Fri 09:30-16:00 New York fallback, or configured always open for
// synthetic securities.
type ExchangeHours struct {
	cal        *calendar.Calendar
	loc        *time.Location
	alwaysOpen bool
}

// AlwaysOpen returns hours that report open at any instant
func AlwaysOpen() *ExchangeHours {
	return &ExchangeHours{alwaysOpen: true, loc: time.UTC}
}

// NewExchangeHours resolves hours for a MIC code, e.g. "xnys"
func NewExchangeHours(mic string) *ExchangeHours {
	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &ExchangeHours{loc: loc}
	}
	return &ExchangeHours{cal: cal, loc: cal.Loc}
}

// IsOpen reports whether the market is open at t
func (h *ExchangeHours) IsOpen(t time.Time) bool {
	if h.alwaysOpen {
		return true
	}

	t = t.In(h.loc)

	if h.cal != nil {
		return h.cal.IsOpen(t)
	}

	// Fallback: Mon-Fri 09:30-16:00 local
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	hour, minute := t.Hour(), t.Minute()
	return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
}

// IsTradingDay reports whether t falls on a business day
func (h *ExchangeHours) IsTradingDay(t time.Time) bool {
	if h.alwaysOpen {
		return true
	}

	t = t.In(h.loc)

	if h.cal != nil {
		return h.cal.IsBusinessDay(t)
	}

	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// HoursProvider resolves exchange hours for a market/symbol pair
type HoursProvider interface {
	HoursFor(market, symbol string) *ExchangeHours
}

// MICHoursProvider maps market names to MIC calendars
type MICHoursProvider struct {
	mics map[string]string
}

// NewMICHoursProvider creates a provider with the given market-to-MIC map
func NewMICHoursProvider(mics map[string]string) *MICHoursProvider {
	return &MICHoursProvider{mics: mics}
}

// HoursFor returns calendar hours when the market maps to a MIC,
// always-open hours otherwise (forex and synthetic markets)
func (p *MICHoursProvider) HoursFor(market, symbol string) *ExchangeHours {
	if mic, ok := p.mics[strings.ToLower(market)]; ok {
		return NewExchangeHours(mic)
	}
	return AlwaysOpen()
}

// AlwaysOpenProvider returns always-open hours for every market
type AlwaysOpenProvider struct{}

// HoursFor implements HoursProvider
func (AlwaysOpenProvider) HoursFor(market, symbol string) *ExchangeHours {
	return AlwaysOpen()
}
