package domain

import (
	"sync"
	"time"
)

// PositionSnapshot is what the Exchange Adapter reports for one open
// position; the Store upserts it into a managed Position.
type PositionSnapshot struct {
	Symbol        string
	Side          Side
	Quantity      float64
	EntryPrice    float64
	Leverage      int
	UnrealizedPnL float64
	LiquidationPx float64
}

// Store is the in-memory symbol -> Position map. It is single-writer (only
// the Scheduler mutates it) with short critical sections: callers take the
// lock, read or copy out, and release — never holding it across exchange or
// notifier I/O.
type Store struct {
	mu        sync.Mutex
	positions map[string]*Position
	stats     PerformanceStats
}

// NewStore returns an empty Position Store.
func NewStore() *Store {
	return &Store{positions: make(map[string]*Position)}
}

// Upsert creates a new managed Position for snap.Symbol, or refreshes the
// quantity and leverage of an existing one (its entry price is not re-read)
// while preserving its hit-flags, technical levels, and stop levels (§4.4).
func (s *Store) Upsert(snap PositionSnapshot) *Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.positions[snap.Symbol]; ok {
		p.Quantity = snap.Quantity
		p.Leverage = snap.Leverage
		p.missedDetectTicks = 0
		return p
	}

	now := time.Now()
	p := &Position{
		Symbol:       snap.Symbol,
		Side:         snap.Side,
		Quantity:     snap.Quantity,
		QtyDetected:  snap.Quantity,
		EntryPrice:   snap.EntryPrice,
		Leverage:     snap.Leverage,
		ManagedSince: now,
		CurrentPrice: snap.EntryPrice,
		LastUpdate:   now,
	}
	s.positions[snap.Symbol] = p
	s.stats.TotalManaged++
	return p
}

// Get returns a copy of the managed Position for symbol, if any.
func (s *Store) Get(symbol string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Remove drops symbol from the managed set. It is a no-op if symbol is not
// managed.
func (s *Store) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, symbol)
}

// Snapshot returns a copy of every managed Position, safe to read without
// holding the Store's lock.
func (s *Store) Snapshot() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// Symbols returns the set of currently managed symbols.
func (s *Store) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		out = append(out, sym)
	}
	return out
}

// MarkMissing increments the consecutive-missing-detect-tick counter for
// symbol and reports whether it has now been missing for two or more
// consecutive detect ticks (§3.3, invariant 6), in which case the caller
// should Remove it.
func (s *Store) MarkMissing(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return false
	}
	p.missedDetectTicks++
	return p.missedDetectTicks >= 2
}

// Mutate runs fn against the live Position for symbol under the Store's
// lock and reports whether symbol was found. fn must not perform I/O — the
// lock must never be held across an exchange or notifier call (§4.5).
func (s *Store) Mutate(symbol string, fn func(p *Position)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// RecordClosed folds a fully-closed position's outcome into PerformanceStats.
// realizedPnL > 0 counts as a win, <= 0 as a loss.
func (s *Store) RecordClosed(realizedPnL float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalPnL += realizedPnL
	if realizedPnL > 0 {
		s.stats.Winning++
	} else {
		s.stats.Losing++
	}
}

// RecordAction folds an executed Action's kind into PerformanceStats.
func (s *Store) RecordAction(kind ActionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case PartialStopLoss:
		s.stats.TotalPartialStops++
	case FullStopLoss:
		s.stats.TotalStopLosses++
	case TakeProfit:
		s.stats.TotalTakeProfits++
	}
}

// Stats returns a copy of the current performance counters.
func (s *Store) Stats() PerformanceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Len reports the number of currently managed positions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}
