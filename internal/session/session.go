// Package session holds the mutable state of one simulation: attempts, history and price.
package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/store"
)

// DefaultHistoryLimit bounds the history kept per session.
const DefaultHistoryLimit = 100

// Entry is one history line: the outcome and the attempt number it was drawn on.
type Entry struct {
	Attempt uint64 `json:"attempt"`
	enchant.RolledOption
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	TryCount  uint64
	Current   *enchant.RolledOption
	History   []Entry // most recent first
	UnitPrice *big.Int
	TotalCost *big.Int
}

// Session applies draws from an Engine and tracks their cost.
// Draws are serialized by the session's mutex.
type Session struct {
	mu       sync.Mutex
	engine   *enchant.Engine
	kv       store.KV
	limit    int
	tryCount uint64
	current  *enchant.RolledOption
	history  []Entry
	price    *big.Int
}

type Option func(*Session)

// WithHistoryLimit overrides DefaultHistoryLimit. n <= 0 is ignored.
func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithStore persists the unit price in kv.
func WithStore(kv store.KV) Option {
	return func(s *Session) { s.kv = kv }
}

// New creates a session with zero counters. The unit price is read from the store,
// falling back to pricing.DefaultUnitPrice.
func New(ctx context.Context, e *enchant.Engine, opts ...Option) (*Session, error) {
	s := &Session{engine: e, limit: DefaultHistoryLimit}
	for _, o := range opts {
		o(s)
	}
	s.history = make([]Entry, 0, s.limit)

	text := pricing.DefaultUnitPrice
	if s.kv != nil {
		v, ok, err := s.kv.Get(ctx, pricing.PriceKey)
		if err != nil {
			return nil, fmt.Errorf("load unit price: %w", err)
		}
		if ok {
			text = v
		}
	}
	price, ok := pricing.ParsePrice(text)
	if !ok {
		logger.Warning("Stored unit price is not a number, using default", "stored", text)
		price, _ = pricing.ParsePrice(pricing.DefaultUnitPrice)
	}
	s.price = price
	return s, nil
}

// Advance draws once, records the outcome and returns it.
func (s *Session) Advance() enchant.RolledOption {
	return s.AdvanceEntry().RolledOption
}

// AdvanceEntry is Advance, also reporting the attempt number the draw was recorded under.
func (s *Session) AdvanceEntry() Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	opt := s.engine.Draw()
	s.tryCount++
	s.current = &opt

	if len(s.history) < s.limit {
		s.history = append(s.history, Entry{})
	}
	// shift right, dropping the oldest entry once full
	copy(s.history[1:], s.history[:len(s.history)-1])
	e := Entry{Attempt: s.tryCount, RolledOption: opt}
	s.history[0] = e
	return e
}

// Reset clears counters, current outcome and history. The unit price is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tryCount = 0
	s.current = nil
	s.history = s.history[:0]
}

// SetUnitPrice accepts a non-negative integer with optional "," separators.
// Anything else is rejected by returning false and keeping the old price.
// An accepted price is written to the store; err reports only store failures.
func (s *Session) SetUnitPrice(ctx context.Context, value string) (accepted bool, err error) {
	price, ok := pricing.ParsePrice(value)
	if !ok {
		logger.Debug("Unit price rejected", "input", value)
		return false, nil
	}

	s.mu.Lock()
	s.price = price
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Set(ctx, pricing.PriceKey, price.String()); err != nil {
			return true, fmt.Errorf("persist unit price: %w", err)
		}
	}
	return true, nil
}

// TryCount returns the number of draws since creation or the last reset.
func (s *Session) TryCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryCount
}

// UnitPrice returns a copy of the current unit price.
func (s *Session) UnitPrice() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.price)
}

// TotalCost is TryCount * UnitPrice, exact.
func (s *Session) TotalCost() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Cost(s.tryCount, s.price)
}

// Snapshot copies the whole state under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		TryCount:  s.tryCount,
		History:   append([]Entry(nil), s.history...),
		UnitPrice: new(big.Int).Set(s.price),
		TotalCost: pricing.Cost(s.tryCount, s.price),
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}

// Catalog exposes the catalog the session draws from.
func (s *Session) Catalog() *enchant.Catalog { return s.engine.Catalog() }
