// Package manager is the single owner of cache and ledger mutation. It
// sequences relocation, verification and persistence so that the ledger is
// only written from a freshly refreshed view of the bar.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/tuck/internal/interact"
	"github.com/1broseidon/tuck/internal/ledger"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/recovery"
	"github.com/1broseidon/tuck/internal/relocate"
)

// Config carries the per-engine settings.
type Config struct {
	Cache    menubar.CacheConfig
	Relocate relocate.Config
	Click    interact.Config
	Recovery recovery.Config
	Logger   *slog.Logger
}

// Deps are the platform collaborators.
type Deps struct {
	Provider platform.Enumerator
	Pointer  platform.Pointer
	Bar      platform.Bar
	Ledger   *ledger.Ledger
}

// Manager coordinates moves, clicks, recovery and ledger commits.
type Manager struct {
	deps    Deps
	cache   *menubar.Cache
	lock    *relocate.PointerLock
	rev     *relocate.Revision
	logger  *slog.Logger
	started time.Time

	mu      sync.RWMutex
	cfg     Config
	mover   *relocate.Engine
	clicker *interact.Engine

	recovery *recovery.Coordinator

	// commitMu serialises ledger writes.
	commitMu sync.Mutex
}

// New wires the engines around one cache, revision counter and pointer lock.
func New(deps Deps, cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withLogger(cfg, logger)

	m := &Manager{
		deps:    deps,
		cache:   menubar.NewCache(deps.Provider, cfg.Cache),
		lock:    relocate.NewPointerLock(deps.Pointer, logger),
		rev:     &relocate.Revision{},
		logger:  logger,
		started: time.Now(),
	}
	m.buildEngines(cfg)
	m.recovery = recovery.NewCoordinator(m.cache, deps.Ledger, moverFunc(m.relocate), cfg.Recovery)
	return m
}

func withLogger(cfg Config, logger *slog.Logger) Config {
	if cfg.Cache.Logger == nil {
		cfg.Cache.Logger = logger
	}
	if cfg.Relocate.Logger == nil {
		cfg.Relocate.Logger = logger
	}
	if cfg.Click.Logger == nil {
		cfg.Click.Logger = logger
	}
	if cfg.Recovery.Logger == nil {
		cfg.Recovery.Logger = logger.With("component", "recovery")
	}
	return cfg
}

func (m *Manager) buildEngines(cfg Config) {
	mover := relocate.NewEngine(relocate.Deps{
		Cache:    m.cache,
		Provider: m.deps.Provider,
		Pointer:  m.deps.Pointer,
		Bar:      m.deps.Bar,
		Lock:     m.lock,
		Revision: m.rev,
	}, cfg.Relocate)
	clicker := interact.NewEngine(m.cache, m.deps.Provider, m.deps.Pointer, m.deps.Bar, mover, cfg.Click)

	m.mu.Lock()
	m.cfg = cfg
	m.mover = mover
	m.clicker = clicker
	m.mu.Unlock()
}

// Reconfigure applies new timing and limits to subsequent operations.
// Operations already running finish with the settings they started with.
// Cache freshness is fixed at construction.
func (m *Manager) Reconfigure(cfg Config) {
	cfg = withLogger(cfg, m.logger)
	m.buildEngines(cfg)
	m.recovery.Reconfigure(cfg.Recovery)
	m.logger.Info("manager reconfigured",
		"max_visible_width", cfg.Relocate.MaxVisibleWidth,
		"drag_steps", cfg.Relocate.Steps)
}

type moverFunc func(ctx context.Context, item menubar.Item, dest menubar.Destination) error

func (f moverFunc) Relocate(ctx context.Context, item menubar.Item, dest menubar.Destination) error {
	return f(ctx, item, dest)
}

func (m *Manager) engines() (*relocate.Engine, *interact.Engine) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mover, m.clicker
}

func (m *Manager) relocate(ctx context.Context, item menubar.Item, dest menubar.Destination) error {
	mover, _ := m.engines()
	return mover.Relocate(ctx, item, dest)
}

// Cache exposes the item cache for read-only views.
func (m *Manager) Cache() *menubar.Cache { return m.cache }

// Arrangement exposes the in-memory layout model.
func (m *Manager) Arrangement() *menubar.Arrangement { return m.cache.Arrangement() }

// Recovery exposes the coordinator so callers can run its periodic loop.
func (m *Manager) Recovery() *recovery.Coordinator { return m.recovery }

// Refresh refreshes the cache.
func (m *Manager) Refresh(ctx context.Context, force bool) error {
	return m.cache.Refresh(ctx, force)
}

// MissingCount returns how many ledger entries are not in the hidden
// region right now.
func (m *Manager) MissingCount() int {
	return m.cache.MissingCount(m.deps.Ledger.Keys())
}

// ExpectedHidden returns a copy of the ledger's keys.
func (m *Manager) ExpectedHidden() menubar.KeySet {
	return m.deps.Ledger.Keys()
}

// Missing lists the ledger entries not in the hidden region.
func (m *Manager) Missing() []menubar.IdentityKey {
	return m.cache.Missing(m.deps.Ledger.Keys())
}

// Target names a destination by identity so it can be resolved against the
// live cache.
type Target struct {
	Anchor menubar.IdentityKey
	Side   menubar.Side
}

// TargetForRegion returns the destination that puts an item at the edge of
// region r next to its control item.
func TargetForRegion(r menubar.Region) Target {
	switch r {
	case menubar.RegionHidden:
		return Target{Anchor: menubar.IdentityKey{Kind: menubar.KindHiddenControl}, Side: menubar.SideLeft}
	case menubar.RegionAlwaysHidden:
		return Target{Anchor: menubar.IdentityKey{Kind: menubar.KindAlwaysHiddenControl}, Side: menubar.SideLeft}
	default:
		return Target{Anchor: menubar.IdentityKey{Kind: menubar.KindHiddenControl}, Side: menubar.SideRight}
	}
}

// MoveResult describes a committed move.
type MoveResult struct {
	Item     menubar.Item   `json:"item"`
	From     menubar.Region `json:"from"`
	To       menubar.Region `json:"to"`
	Attempts int            `json:"attempts"`
}

const maxMoveAttempts = 2

// Move relocates key next to target, verifies the result against a forced
// refresh, retries once if the gesture did not take, and then records key's
// new placement in the ledger. A superseded move returns ErrCancelled and
// commits nothing.
func (m *Manager) Move(ctx context.Context, key menubar.IdentityKey, target Target) (MoveResult, error) {
	mover, _ := m.engines()
	t := mover.Submit()

	if err := m.cache.Refresh(ctx, true); err != nil {
		return MoveResult{}, err
	}
	item, from, ok := m.cache.Find(key)
	if !ok {
		return MoveResult{}, &menubar.UnresolvedError{Key: key}
	}
	anchor, _, ok := m.cache.Find(target.Anchor)
	if !ok {
		return MoveResult{}, &menubar.UnresolvedError{Key: target.Anchor}
	}
	dest := menubar.Destination{Anchor: anchor, Side: target.Side}
	want, ok := m.cache.Arrangement().DestinationRegion(dest)
	if !ok {
		return MoveResult{}, &menubar.UnresolvedError{Key: target.Anchor}
	}

	res := MoveResult{Item: item, From: from, To: want}
	verified := false
	for res.Attempts < maxMoveAttempts {
		res.Attempts++
		if err := mover.RelocateTicket(ctx, t, item, dest); err != nil {
			return res, err
		}
		if err := mover.Check(ctx, t); err != nil {
			return res, err
		}
		if err := m.cache.Refresh(ctx, true); err != nil {
			return res, err
		}
		got, region, found := m.cache.Find(key)
		if !found {
			return res, &menubar.UnresolvedError{Key: key}
		}
		res.Item = got
		if region == want {
			verified = true
			break
		}
		m.logger.Debug("move not reflected on the bar",
			"item", key.String(), "want", want.String(), "got", region.String(), "attempt", res.Attempts)
		item = got
		if a, _, found := m.cache.Find(target.Anchor); found {
			dest.Anchor = a
		}
	}
	if !verified {
		return res, fmt.Errorf("%s still outside %s after %d attempts: %w",
			key, want, res.Attempts, menubar.ErrGestureRejected)
	}

	if err := mover.Check(ctx, t); err != nil {
		return res, err
	}
	if err := m.commitMoved(key, want); err != nil {
		return res, err
	}
	m.logger.Info("item moved",
		"item", key.String(), "from", from.String(), "to", want.String(), "attempts", res.Attempts)
	return res, nil
}

// MoveToRegion moves key to the near edge of region r.
func (m *Manager) MoveToRegion(ctx context.Context, key menubar.IdentityKey, r menubar.Region) (MoveResult, error) {
	return m.Move(ctx, key, TargetForRegion(r))
}

// Click clicks key with button.
func (m *Manager) Click(ctx context.Context, key menubar.IdentityKey, button platform.Button) (interact.Result, error) {
	_, clicker := m.engines()
	return clicker.Click(ctx, key, button)
}

// Recover runs a user-initiated recovery pass, restoring at most limit
// items when limit is positive.
func (m *Manager) Recover(ctx context.Context, limit int) recovery.Result {
	return m.recovery.Trigger(ctx, recovery.Request{Source: recovery.SourceUser, Limit: limit})
}

// Scroll reports a scroll over the bar. It may start a recovery pass.
func (m *Manager) Scroll(ctx context.Context) recovery.Result {
	return m.recovery.Trigger(ctx, recovery.Request{Source: recovery.SourceScroll})
}

// PersistExpectedHiddenFromCurrentCache adds every item in the current
// hidden region to the ledger. Nothing is removed: entries for items that
// have quit or drifted out of hidden stay so recovery can put them back.
func (m *Manager) PersistExpectedHiddenFromCurrentCache() error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	next := m.deps.Ledger.Keys()
	for k := range m.cache.Snapshot().Keys(menubar.RegionHidden) {
		next[k] = struct{}{}
	}
	return m.saveLedger(next)
}

// commitMoved records a verified move of key into region to. Only key's
// membership changes.
func (m *Manager) commitMoved(key menubar.IdentityKey, to menubar.Region) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	next := m.deps.Ledger.Keys()
	if to == menubar.RegionHidden {
		next[key] = struct{}{}
	} else {
		delete(next, key)
	}
	return m.saveLedger(next)
}

func (m *Manager) saveLedger(keys menubar.KeySet) error {
	m.deps.Ledger.Replace(keys)
	if err := m.deps.Ledger.Save(); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// HardReset supersedes in-flight moves, drops the cache, and rebuilds the
// ledger from exactly what is hidden now.
func (m *Manager) HardReset(ctx context.Context) (int, error) {
	mover, _ := m.engines()
	mover.Submit()

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	m.cache.Clear()
	if err := m.cache.Refresh(ctx, true); err != nil {
		return 0, err
	}
	hidden := m.cache.Snapshot().Keys(menubar.RegionHidden)
	if err := m.saveLedger(hidden); err != nil {
		return 0, err
	}
	m.logger.Info("ledger reset from live bar", "hidden", len(hidden))
	return len(hidden), nil
}

// RegionStatus summarises one region.
type RegionStatus struct {
	Count int `json:"count"`
	Width int `json:"width"`
}

// Status is the daemon summary.
type Status struct {
	Regions         map[string]RegionStatus `json:"regions"`
	MaxVisibleWidth int                     `json:"max_visible_width"`
	LedgerSize      int                     `json:"ledger_size"`
	MissingCount    int                     `json:"missing_count"`
	RecoveryState   string                  `json:"recovery_state"`
	LastRecovery    *recovery.Result        `json:"last_recovery,omitempty"`
	LastRefreshed   time.Time               `json:"last_refreshed"`
	Uptime          string                  `json:"uptime"`
	HiddenCollapsed bool                    `json:"hidden_collapsed"`
}

// Status refreshes the cache if stale and returns a summary.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.cache.Refresh(ctx, false); err != nil && !errors.Is(err, menubar.ErrProviderTimeout) {
		return Status{}, err
	}
	m.mu.RLock()
	limit := m.cfg.Relocate.MaxVisibleWidth
	m.mu.RUnlock()
	if limit <= 0 {
		limit = relocate.DefaultMaxVisibleWidth
	}

	snap := m.cache.Snapshot()
	st := Status{
		Regions:         make(map[string]RegionStatus, len(menubar.Regions)),
		MaxVisibleWidth: limit,
		LedgerSize:      m.deps.Ledger.Len(),
		MissingCount:    m.MissingCount(),
		RecoveryState:   m.recovery.State().String(),
		LastRefreshed:   snap.Taken,
		Uptime:          time.Since(m.started).Truncate(time.Second).String(),
	}
	for _, r := range menubar.Regions {
		items := snap.Regions[r]
		st.Regions[r.String()] = RegionStatus{Count: len(items), Width: menubar.RegionWidth(items)}
	}
	if last := m.recovery.LastResult(); last.RunID != "" {
		st.LastRecovery = &last
	}
	if m.deps.Bar != nil {
		st.HiddenCollapsed = m.deps.Bar.SectionState(platform.SectionHidden).Hidden
	}
	return st, nil
}
