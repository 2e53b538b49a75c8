// Package autosearch drives a session until a drawn outcome matches a target prefix.
//
// A Controller allows one activity at a time: either an auto-search run or a
// manual single step. Runs happen on their own goroutine, check their context
// before every draw and yield between draws, so Cancel is observed after at most
// one in-flight draw.
package autosearch

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/xtding233/holywater-sim/internal/enchant"
	"github.com/xtding233/holywater-sim/internal/logger"
	"github.com/xtding233/holywater-sim/internal/session"
)

var (
	ErrEmptyTarget = errors.New("auto-search target is empty")
	ErrBusy        = errors.New("a draw is already in progress")
	ErrNoRun       = errors.New("no auto-search has run")
)

// State of the controller. Matched and Cancelled only appear on a Result;
// the controller itself goes straight back to Idle.
type State int

const (
	Idle State = iota
	Running
	Matched
	Cancelled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Matched:
		return "matched"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Event reports one draw made by a run.
type Event struct {
	Draw     uint64 // 1-based index within the run
	TryCount uint64 // session attempt number of this draw
	Option   enchant.RolledOption
	Matched  bool
}

// Result is the outcome of a finished run.
type Result struct {
	Target   string
	State    State // Matched or Cancelled
	Draws    uint64
	TryCount uint64
	Match    *enchant.RolledOption
}

// activity is a run or a manual step in flight.
type activity struct {
	auto   bool
	cancel context.CancelFunc
	done   chan struct{}
	result Result // valid once done is closed
}

// Run is a handle on one started auto-search.
type Run struct{ act *activity }

// Done is closed once the run's goroutine has exited.
func (r *Run) Done() <-chan struct{} { return r.act.done }

// Result is valid after Done is closed.
func (r *Run) Result() Result { return r.act.result }

// Controller owns the draw sources of one session.
type Controller struct {
	sess      *session.Session
	stepDelay time.Duration

	mu   sync.Mutex
	act  *activity
	last *activity
}

// New returns an idle controller. stepDelay is the pause before a manual Step lands.
func New(sess *session.Session, stepDelay time.Duration) *Controller {
	return &Controller{sess: sess, stepDelay: stepDelay}
}

// Session returns the controlled session.
func (c *Controller) Session() *session.Session { return c.sess }

// State is Running while an auto-search is active, Idle otherwise.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.act != nil && c.act.auto {
		return Running
	}
	return Idle
}

// Stepping reports whether a manual step is in flight.
func (c *Controller) Stepping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.act != nil && !c.act.auto
}

// Start launches an auto-search for target and returns a handle on it. observe, if
// non-nil, is called on the run's goroutine after every draw; a slow observer slows
// the run down. The run is bound to ctx as well as to Cancel and Reset.
func (c *Controller) Start(ctx context.Context, target string, observe func(Event)) (*Run, error) {
	if target == "" {
		return nil, ErrEmptyTarget
	}
	if !c.sess.Catalog().Reachable(target) {
		return nil, enchant.ErrUnreachableTarget
	}

	c.mu.Lock()
	if c.act != nil {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	act := &activity{auto: true, cancel: cancel, done: make(chan struct{})}
	c.act = act
	c.mu.Unlock()

	logger.Info("Auto-search started", "target", target, "try_count", c.sess.TryCount())
	go c.run(runCtx, act, target, observe)
	return &Run{act: act}, nil
}

func (c *Controller) run(ctx context.Context, act *activity, target string, observe func(Event)) {
	res := Result{Target: target, State: Cancelled}
	defer func() {
		act.result = res
		c.mu.Lock()
		if c.act == act {
			c.act = nil
		}
		c.last = act
		c.mu.Unlock()
		act.cancel()
		close(act.done)

		if res.State == Matched {
			logger.Info("Auto-search matched", "target", target, "draws", res.Draws, "try_count", res.TryCount, "option", res.Match.Name)
		} else {
			logger.Info("Auto-search cancelled", "target", target, "draws", res.Draws, "try_count", res.TryCount)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		e := c.sess.AdvanceEntry()
		res.Draws++
		res.TryCount = e.Attempt
		matched := strings.HasPrefix(e.Name, target)
		if observe != nil {
			observe(Event{Draw: res.Draws, TryCount: e.Attempt, Option: e.RolledOption, Matched: matched})
		}
		if matched {
			opt := e.RolledOption
			res.State = Matched
			res.Match = &opt
			return
		}
		runtime.Gosched()
	}
}

// Cancel stops a running auto-search and returns once its goroutine has exited,
// so no further draw happens after it returns. It reports whether a run was stopped.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	act := c.act
	c.mu.Unlock()
	if act == nil || !act.auto {
		return false
	}
	act.cancel()
	<-act.done
	return true
}

// Wait blocks until the current run finishes and returns its result. With no run
// active it returns the last finished run's result, or ErrNoRun. It exists for
// tests and for callers that did not start the run; starters hold a *Run.
func (c *Controller) Wait(ctx context.Context) (Result, error) {
	c.mu.Lock()
	act := c.act
	if act == nil || !act.auto {
		act = c.last
	}
	c.mu.Unlock()
	if act == nil {
		return Result{}, ErrNoRun
	}
	select {
	case <-act.done:
		return act.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Last returns the result of the most recently finished run.
func (c *Controller) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return c.last.result, true
}

// Step performs one manual draw after the configured pause. It fails with ErrBusy
// while a run or another step is active, and with ctx.Err() if interrupted
// before the draw lands, in which case nothing is drawn.
func (c *Controller) Step(ctx context.Context) (session.Entry, error) {
	c.mu.Lock()
	if c.act != nil {
		c.mu.Unlock()
		return session.Entry{}, ErrBusy
	}
	stepCtx, cancel := context.WithCancel(ctx)
	act := &activity{cancel: cancel, done: make(chan struct{})}
	c.act = act
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.act == act {
			c.act = nil
		}
		c.mu.Unlock()
		cancel()
		close(act.done)
	}()

	if c.stepDelay > 0 {
		timer := time.NewTimer(c.stepDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stepCtx.Done():
			return session.Entry{}, stepCtx.Err()
		}
	}
	return c.sess.AdvanceEntry(), nil
}

// Reset stops whatever is in flight, then clears the session. A stale draw
// cannot land after Reset returns.
func (c *Controller) Reset() {
	for {
		c.mu.Lock()
		act := c.act
		if act == nil {
			c.sess.Reset()
			c.last = nil
			c.mu.Unlock()
			logger.Debug("Session reset")
			return
		}
		c.mu.Unlock()
		act.cancel()
		<-act.done
	}
}
