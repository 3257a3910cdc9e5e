// Package recovery repairs drift between the expected-hidden ledger and the
// live bar by relocating missing items back into the hidden region.
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/1broseidon/tuck/internal/menubar"
)

const (
	DefaultDebounce       = 1500 * time.Millisecond
	DefaultScrollInterval = 3 * time.Second
	DefaultInterval       = 30 * time.Second
)

// State is the coordinator state.
type State int

const (
	StateIdle State = iota
	StateRecovering
)

func (s State) String() string {
	if s == StateRecovering {
		return "recovering"
	}
	return "idle"
}

// Source says what asked for a recovery pass.
type Source int

const (
	SourceTimer Source = iota
	SourceUser
	SourceScroll
	SourceStartup
)

func (s Source) String() string {
	switch s {
	case SourceTimer:
		return "timer"
	case SourceUser:
		return "user"
	case SourceScroll:
		return "scroll"
	case SourceStartup:
		return "startup"
	default:
		return "unknown"
	}
}

// Request is a recovery trigger. Limit caps how many missing items one pass
// restores; zero means all.
type Request struct {
	Source Source
	Limit  int
}

// Result summarises a trigger.
type Result struct {
	RunID        string    `json:"run_id,omitempty"`
	Source       string    `json:"source"`
	Skipped      bool      `json:"skipped"`
	Reason       string    `json:"reason,omitempty"`
	Attempted    int       `json:"attempted"`
	Unresolved   int       `json:"unresolved"`
	Failed       int       `json:"failed"`
	StillMissing int       `json:"still_missing"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// Skip reasons.
const (
	ReasonBusy        = "already recovering"
	ReasonDebounced   = "debounced"
	ReasonRateLimited = "scroll rate limited"
	ReasonNoMismatch  = "nothing missing"
	ReasonNoControl   = "hidden control item not on the bar"
)

// Ledger supplies the expected-hidden keys.
type Ledger interface {
	Keys() menubar.KeySet
}

// Mover relocates one item.
type Mover interface {
	Relocate(ctx context.Context, item menubar.Item, dest menubar.Destination) error
}

// Config tunes the coordinator.
type Config struct {
	Debounce       time.Duration
	ScrollInterval time.Duration
	Interval       time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Coordinator runs recovery passes one at a time.
type Coordinator struct {
	cache  *menubar.Cache
	ledger Ledger
	mover  Mover
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	scroll *rate.Limiter

	mu          sync.Mutex
	state       State
	lastTrigger time.Time
	pending     *Request
	last        Result
}

func (cfg Config) withDefaults() Config {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.ScrollInterval <= 0 {
		cfg.ScrollInterval = DefaultScrollInterval
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return cfg
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(cache *menubar.Cache, ledger Ledger, mover Mover, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		cache:  cache,
		ledger: ledger,
		mover:  mover,
		cfg:    cfg,
		logger: logger,
		now:    now,
		scroll: rate.NewLimiter(rate.Every(cfg.ScrollInterval), 1),
	}
}

// Reconfigure applies new timing to subsequent triggers.
func (c *Coordinator) Reconfigure(cfg Config) {
	cfg = cfg.withDefaults()
	c.mu.Lock()
	c.cfg.Debounce = cfg.Debounce
	c.cfg.ScrollInterval = cfg.ScrollInterval
	c.cfg.Interval = cfg.Interval
	c.mu.Unlock()
	c.scroll.SetLimit(rate.Every(cfg.ScrollInterval))
}

func (c *Coordinator) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Interval
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the result of the most recent completed pass.
func (c *Coordinator) LastResult() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Trigger asks for a recovery pass. Triggers arriving while a pass runs are
// folded into one follow-up pass using the latest request. Timer and scroll
// triggers are debounced; scroll triggers are additionally rate limited.
// User triggers skip the debounce but never run concurrently with a pass.
func (c *Coordinator) Trigger(ctx context.Context, req Request) Result {
	skipped := func(reason string) Result {
		return Result{Source: req.Source.String(), Skipped: true, Reason: reason}
	}

	if req.Source == SourceScroll && !c.scroll.Allow() {
		return skipped(ReasonRateLimited)
	}

	c.mu.Lock()
	if c.state == StateRecovering {
		r := req
		c.pending = &r
		c.mu.Unlock()
		return skipped(ReasonBusy)
	}
	now := c.now()
	if req.Source != SourceUser && req.Source != SourceStartup &&
		!c.lastTrigger.IsZero() && now.Sub(c.lastTrigger) < c.cfg.Debounce {
		c.mu.Unlock()
		return skipped(ReasonDebounced)
	}
	c.lastTrigger = now
	c.state = StateRecovering
	c.mu.Unlock()

	var res Result
	for {
		res = c.pass(ctx, req)

		c.mu.Lock()
		if !res.Skipped {
			c.last = res
		}
		next := c.pending
		c.pending = nil
		if next == nil || ctx.Err() != nil {
			c.state = StateIdle
			c.mu.Unlock()
			return res
		}
		c.lastTrigger = c.now()
		c.mu.Unlock()
		req = *next
	}
}

// pass performs one recovery pass. It never panics and never returns an
// error; failures are counted and logged.
func (c *Coordinator) pass(ctx context.Context, req Request) (res Result) {
	res = Result{
		RunID:   uuid.NewString(),
		Source:  req.Source.String(),
		Started: c.now(),
	}
	logger := c.logger.With("run_id", res.RunID, "source", res.Source)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovery panic recovered", "error", r)
		}
		res.Finished = c.now()
	}()

	if err := c.cache.Refresh(ctx, false); err != nil {
		logger.Debug("recovery refresh failed", "error", err)
	}
	expected := c.ledger.Keys()
	missing := c.cache.Missing(expected)
	if len(missing) == 0 {
		res.Skipped = true
		res.Reason = ReasonNoMismatch
		return res
	}

	control, ok := c.cache.Control(menubar.KindHiddenControl)
	if !ok {
		res.Skipped = true
		res.Reason = ReasonNoControl
		res.StillMissing = c.cache.MissingCount(expected)
		return res
	}

	// Keys with no live item cannot be moved and must not use up the limit.
	items := make([]menubar.Item, 0, len(missing))
	for _, key := range missing {
		item, _, found := c.cache.Find(key)
		if !found {
			res.Unresolved++
			continue
		}
		items = append(items, item)
	}
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}

	logger.Info("recovery started", "missing", len(missing), "locatable", len(items), "limit", req.Limit)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		key := item.Key()
		res.Attempted++
		err := c.mover.Relocate(ctx, item, menubar.LeftOf(control))
		switch {
		case err == nil:
		case errors.Is(err, menubar.ErrCancelled):
			logger.Debug("recovery move superseded", "item", key.String())
		case errors.Is(err, menubar.ErrIdentityUnresolved):
			res.Unresolved++
		default:
			res.Failed++
			logger.Debug("recovery move failed", "item", key.String(), "error", err)
		}
	}

	if err := c.cache.Refresh(ctx, true); err != nil {
		logger.Debug("post-recovery refresh failed", "error", err)
	}
	res.StillMissing = c.cache.MissingCount(expected)
	logger.Info("recovery finished",
		"attempted", res.Attempted,
		"unresolved", res.Unresolved,
		"failed", res.Failed,
		"still_missing", res.StillMissing)
	return res
}

// Run triggers a pass every interval until ctx is cancelled. The interval
// is re-read after each tick so Reconfigure takes effect.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("recovery loop started", "interval", c.interval())
	timer := time.NewTimer(c.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("recovery loop stopped")
			return
		case <-timer.C:
			c.Trigger(ctx, Request{Source: SourceTimer})
			timer.Reset(c.interval())
		}
	}
}
