// Package httpapi serves the simulator over JSON HTTP and streams auto-search
// draws over WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtding233/holywater-sim/internal/autosearch"
	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/pricing"
	"github.com/xtding233/holywater-sim/internal/registry"
)

const (
	// DefaultEstimateTrials is used when /estimate gets no trials parameter.
	DefaultEstimateTrials = 1000
	// DefaultTierDraws and MaxTierDraws bound /catalog/tiers sampling.
	DefaultTierDraws = 100_000
	MaxTierDraws     = 1_000_000
)

type Options struct {
	MaxEstimateTrials int
	// AllowedOrigins for WebSocket upgrades; empty means same-origin, "*" means any.
	AllowedOrigins []string
}

// Server routes requests to the sessions of a registry.
type Server struct {
	reg      *registry.Registry
	base     context.Context
	opts     Options
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New builds the handler. Auto-search runs started over HTTP live until base is done
// or they are cancelled; they are not tied to the request that started them.
func New(base context.Context, reg *registry.Registry, opts Options) *Server {
	if opts.MaxEstimateTrials <= 0 {
		opts.MaxEstimateTrials = DefaultEstimateTrials
	}
	s := &Server{reg: reg, base: base, opts: opts, mux: http.NewServeMux()}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(opts.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /catalog", s.handleCatalog)
	s.mux.HandleFunc("GET /catalog/names", s.handleNames)
	s.mux.HandleFunc("GET /catalog/outcomes", s.handleOutcomes)
	s.mux.HandleFunc("GET /catalog/tiers", s.handleTiers)
	s.mux.HandleFunc("GET /estimate", s.handleEstimate)
	s.mux.HandleFunc("POST /sessions", s.handleCreate)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleSnapshot)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /sessions/{id}/draw", s.handleDraw)
	s.mux.HandleFunc("POST /sessions/{id}/reset", s.handleReset)
	s.mux.HandleFunc("PUT /sessions/{id}/price", s.handlePrice)
	s.mux.HandleFunc("GET /sessions/{id}/auto", s.handleAutoStatus)
	s.mux.HandleFunc("POST /sessions/{id}/auto", s.handleAutoStart)
	s.mux.HandleFunc("DELETE /sessions/{id}/auto", s.handleAutoCancel)
	s.mux.HandleFunc("GET /sessions/{id}/auto/stream", s.handleAutoStream)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	logger.Warning("WebSocket connection rejected - origin not allowed", "origin", origin, "remote_addr", r.RemoteAddr)
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.reg.Len()})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.reg.Catalog()
	writeJSON(w, http.StatusOK, catalogResp{Options: cat.Table(), TotalWeight: cat.TotalWeight()})
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, namesResp{Names: s.reg.Catalog().Names()})
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, outcomesResp{Outcomes: s.reg.Catalog().Outcomes()})
}

// expected tier shares next to shares observed over a sample of draws
func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	draws, ok, msg := parseInt(r, "draws")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if !ok {
		draws = DefaultTierDraws
	}
	if draws <= 0 || draws > MaxTierDraws {
		http.Error(w, "draws must be between 1 and "+strconv.Itoa(MaxTierDraws), http.StatusBadRequest)
		return
	}
	e := s.reg.NewEngine()
	writeJSON(w, http.StatusOK, tiersResp{
		Draws:    draws,
		Expected: e.Catalog().TierWeights(),
		Observed: enchant.TierFrequencies(e, draws),
	})
}

// estimate draws-until-target with independent simulated searches
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	if target == "" {
		writeErr(w, autosearch.ErrEmptyTarget)
		return
	}
	trials, ok, msg := parseInt(r, "trials")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if !ok {
		trials = min(DefaultEstimateTrials, s.opts.MaxEstimateTrials)
	}
	if trials <= 0 || trials > s.opts.MaxEstimateTrials {
		http.Error(w, "trials must be between 1 and "+strconv.Itoa(s.opts.MaxEstimateTrials), http.StatusBadRequest)
		return
	}
	priceText := pricing.DefaultUnitPrice
	if v := q.Get("price"); v != "" {
		priceText = v
	}
	price, ok := pricing.ParsePrice(priceText)
	if !ok {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	var budget *big.Int
	if v := q.Get("budget"); v != "" {
		if budget, ok = pricing.ParsePrice(v); !ok {
			http.Error(w, "invalid budget", http.StatusBadRequest)
			return
		}
	}

	stats, err := enchant.RunMonteCarlo(r.Context(), s.reg.NewEngine(), target, trials)
	if err != nil {
		writeErr(w, err)
		return
	}
	cost := pricing.ExpectedCost(stats.Mean, price)
	resp := estimateResp{
		Target:              target,
		Stats:               stats,
		UnitPrice:           price.String(),
		ExpectedCost:        cost.String(),
		ExpectedCostDisplay: pricing.Format(cost),
	}
	if budget != nil {
		tries := pricing.AffordableTries(budget, price)
		resp.AffordableTries = tries.String()
		resp.WithinBudget = withinBudget(stats, tries)
	}
	writeJSON(w, http.StatusOK, resp)
}

// withinBudget is the share of simulated searches that needed at most tries draws.
func withinBudget(stats enchant.Stats, tries *big.Int) float64 {
	if len(stats.Samples) == 0 {
		return 0
	}
	if !tries.IsInt64() {
		return 1
	}
	limit := tries.Int64()
	n := 0
	for _, v := range stats.Samples {
		if int64(v) <= limit {
			n++
		}
	}
	return float64(n) / float64(len(stats.Samples))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, c, err := s.reg.Create(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotOf(id, c))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(id, c))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.Delete(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// one manual draw, after the configured pause
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e, err := c.Step(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawResp{Entry: e, Session: snapshotOf(id, c)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	c.Reset()
	writeJSON(w, http.StatusOK, snapshotOf(id, c))
}

// A rejected price is not an error: the old price stays and accepted is false.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req priceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	accepted, err := c.Session().SetUnitPrice(r.Context(), req.Price)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResp{Accepted: accepted, Session: snapshotOf(id, c)})
}

func (s *Server) handleAutoStatus(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := autoStatusResp{State: c.State().String(), Stepping: c.Stepping()}
	if last, ok := c.Last(); ok {
		resp.Last = resultOf(c, last)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req autoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if _, err := c.Start(s.base, req.Target, nil); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, autoStatusResp{State: autosearch.Running.String()})
}

func (s *Server) handleAutoCancel(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := cancelResp{Cancelled: c.Cancel()}
	if last, ok := c.Last(); ok {
		resp.Last = resultOf(c, last)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *autosearch.Controller, bool) {
	id := r.PathValue("id")
	c, err := s.reg.Get(id)
	if err != nil {
		writeErr(w, err)
		return "", nil, false
	}
	return id, c, true
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, autosearch.ErrNoRun):
		return http.StatusNotFound
	case errors.Is(err, autosearch.ErrEmptyTarget):
		return http.StatusBadRequest
	case errors.Is(err, enchant.ErrUnreachableTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, autosearch.ErrBusy), errors.Is(err, context.Canceled):
		return http.StatusConflict
	case errors.Is(err, registry.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errResp{Err: err.Error()})
}
