package engine

import "sync"

// SymbolLocker provides mutual exclusion keyed by symbol.
// Entries are dropped once no goroutine holds or waits on them.
type SymbolLocker struct {
	mu    sync.Mutex
	locks map[string]*symbolLock
}

type symbolLock struct {
	mu   sync.Mutex
	refs int
}

// NewSymbolLocker creates an empty locker.
func NewSymbolLocker() *SymbolLocker {
	return &SymbolLocker{locks: make(map[string]*symbolLock)}
}

// Lock blocks until the caller holds symbol and returns the matching unlock.
func (l *SymbolLocker) Lock(symbol string) func() {
	l.mu.Lock()
	entry, ok := l.locks[symbol]
	if !ok {
		entry = &symbolLock{}
		l.locks[symbol] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, symbol)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of symbols currently locked or awaited.
func (l *SymbolLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
