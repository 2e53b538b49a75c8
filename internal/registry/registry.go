// Package registry keeps the independent simulation sessions a server hosts.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/session"
	"github.com/xtding233/holywater-sim/internal/store"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Settings shape every session the registry creates.
type Settings struct {
	HistoryLimit int
	StepDelay    time.Duration
	Skew         float64

	// MaxSessions caps live sessions; 0 means no cap.
	MaxSessions int

	// NewRNG returns the random source for a new session; nil means crypto randomness.
	NewRNG func() enchant.RandomSource
}

// Registry maps session ids to controllers.
type Registry struct {
	kv       store.KV
	settings Settings

	mu       sync.RWMutex
	cat      *enchant.Catalog
	sessions map[string]*autosearch.Controller
}

func New(cat *enchant.Catalog, kv store.KV, settings Settings) *Registry {
	return &Registry{
		cat:      cat,
		kv:       kv,
		settings: settings,
		sessions: make(map[string]*autosearch.Controller),
	}
}

// Catalog is the catalog new sessions draw from.
func (r *Registry) Catalog() *enchant.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cat
}

// SetCatalog replaces the catalog for sessions created from now on.
// Existing sessions keep drawing from the catalog they were created with.
func (r *Registry) SetCatalog(cat *enchant.Catalog) {
	r.mu.Lock()
	r.cat = cat
	r.mu.Unlock()
}

// NewEngine returns an engine over the current catalog with the registry's
// randomness and skew settings.
func (r *Registry) NewEngine() *enchant.Engine {
	var rng enchant.RandomSource
	if r.settings.NewRNG != nil {
		rng = r.settings.NewRNG()
	}
	return enchant.NewEngine(r.Catalog(), rng, r.settings.Skew)
}

// Create starts a fresh session and returns its id. It fails with
// ErrTooManySessions once MaxSessions sessions are live.
func (r *Registry) Create(ctx context.Context) (string, *autosearch.Controller, error) {
	if r.full() {
		return "", nil, ErrTooManySessions
	}
	opts := []session.Option{session.WithHistoryLimit(r.settings.HistoryLimit)}
	if r.kv != nil {
		opts = append(opts, session.WithStore(r.kv))
	}
	s, err := session.New(ctx, r.NewEngine(), opts...)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	c := autosearch.New(s, r.settings.StepDelay)
	id := uuid.NewString()

	r.mu.Lock()
	if limit := r.settings.MaxSessions; limit > 0 && len(r.sessions) >= limit {
		r.mu.Unlock()
		return "", nil, ErrTooManySessions
	}
	r.sessions[id] = c
	r.mu.Unlock()

	logger.Info("Session created", "session", id)
	return id, c, nil
}

func (r *Registry) full() bool {
	if r.settings.MaxSessions <= 0 {
		return false
	}
	return r.Len() >= r.settings.MaxSessions
}

func (r *Registry) Get(id string) (*autosearch.Controller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete stops the session's activity and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	c.Reset()
	logger.Info("Session deleted", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close cancels every running auto-search. Sessions stay readable.
func (r *Registry) Close() {
	r.mu.RLock()
	ctrls := make([]*autosearch.Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		ctrls = append(ctrls, c)
	}
	r.mu.RUnlock()
	for _, c := range ctrls {
		c.Cancel()
	}
}
