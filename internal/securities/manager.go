package securities

import (
	"sort"
	"sync"
)

// Manager is the keyed collection of securities shared by the portfolio and
// transaction layers. Insertion fires the registered hook so the cash book
// can resolve currency dependencies for the new security.
type Manager struct {
	mu         sync.RWMutex
	securities map[string]*Security
	onAdd      func(*Security)
}

// NewManager creates an empty security manager
func NewManager() *Manager {
	return &Manager{securities: make(map[string]*Security)}
}

// OnAdd registers a hook invoked after each successful Add
func (m *Manager) OnAdd(hook func(*Security)) {
	m.mu.Lock()
	m.onAdd = hook
	m.mu.Unlock()
}

// Add registers a security under its symbol. Re-adding the same symbol
// replaces the entry.
func (m *Manager) Add(security *Security) {
	m.mu.Lock()
	m.securities[security.Symbol()] = security
	hook := m.onAdd
	m.mu.Unlock()

	if hook != nil {
		hook(security)
	}
}

// Get looks up a security by symbol
func (m *Manager) Get(symbol string) (*Security, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sec, ok := m.securities[symbol]
	return sec, ok
}

// Contains reports whether a symbol is registered
func (m *Manager) Contains(symbol string) bool {
	_, ok := m.Get(symbol)
	return ok
}

// Remove deletes a security by symbol
func (m *Manager) Remove(symbol string) {
	m.mu.Lock()
	delete(m.securities, symbol)
	m.mu.Unlock()
}

// Len returns the number of registered securities
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.securities)
}

// Symbols returns all registered symbols in ascending order
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.securities))
	for sym := range m.securities {
		symbols = append(symbols, sym)
	}
	m.mu.RUnlock()

	sort.Strings(symbols)
	return symbols
}

// Each calls fn for every security in ascending symbol order
func (m *Manager) Each(fn func(*Security)) {
	for _, sym := range m.Symbols() {
		if sec, ok := m.Get(sym); ok {
			fn(sec)
		}
	}
}
