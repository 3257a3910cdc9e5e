// Package interact clicks status items. Clicks on items outside the visible
// region are unreliable, so the target is first moved next to the hidden
// control item, clicked there, and the resulting popup menu awaited.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/relocate"
)

// ErrOffDesktop is returned when the item's window left the active desktop
// before the click could be delivered.
var ErrOffDesktop = errors.New("item is not on the active desktop")

const (
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultPollInterval = 20 * time.Millisecond
	DefaultPopupTimeout = 800 * time.Millisecond
)

// Config tunes the click engine.
type Config struct {
	SettleDelay     time.Duration
	PollInterval    time.Duration
	PopupTimeout    time.Duration
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

// Result describes what a click produced.
type Result struct {
	Item       menubar.Item
	MenuOpened bool
	Menu       *platform.Window
}

// Engine performs clicks.
type Engine struct {
	cache    *menubar.Cache
	provider platform.Enumerator
	pointer  platform.Pointer
	bar      platform.Bar
	mover    *relocate.Engine
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates a click engine that relocates through mover.
func NewEngine(cache *menubar.Cache, provider platform.Enumerator, pointer platform.Pointer, bar platform.Bar, mover *relocate.Engine, cfg Config) *Engine {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PopupTimeout <= 0 {
		cfg.PopupTimeout = DefaultPopupTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:    cache,
		provider: provider,
		pointer:  pointer,
		bar:      bar,
		mover:    mover,
		cfg:      cfg,
		logger:   logger,
	}
}

// Click clicks the item identified by key with button. A click that opens
// no menu is not an error.
func (e *Engine) Click(ctx context.Context, key menubar.IdentityKey, button platform.Button) (Result, error) {
	t := e.mover.Submit()

	if e.bar != nil {
		if err := e.bar.CloseOverlays(); err != nil {
			e.logger.Debug("close overlays failed", "error", err)
		}
	}
	if err := e.mover.Pause(ctx, t, e.cfg.SettleDelay); err != nil {
		return Result{}, err
	}
	if err := e.cache.Refresh(ctx, true); err != nil {
		return Result{}, err
	}

	item, _, ok := e.cache.Find(key)
	if !ok {
		return Result{}, &menubar.UnresolvedError{Key: key}
	}
	control, ok := e.cache.Control(menubar.KindHiddenControl)
	if !ok {
		return Result{}, fmt.Errorf("hidden control item not on the bar: %w", menubar.ErrIdentityUnresolved)
	}

	if !e.adjacentLeftOf(item, control) {
		if err := e.mover.RelocateTicket(ctx, t, item, menubar.LeftOf(control)); err != nil {
			return Result{}, err
		}
		if err := e.cache.Refresh(ctx, true); err != nil {
			return Result{}, err
		}
		moved, _, ok := e.cache.Find(key)
		if !ok {
			return Result{}, &menubar.UnresolvedError{Key: key}
		}
		item = moved
	}

	// The item now sits in the hidden section, which must be on screen for
	// the click to land.
	if e.bar != nil {
		if st := e.bar.SectionState(platform.SectionHidden); st.Enabled && st.Hidden {
			if err := e.bar.ShowSection(ctx, platform.SectionHidden); err != nil {
				return Result{}, fmt.Errorf("show hidden section: %w", err)
			}
			if err := e.mover.Pause(ctx, t, e.cfg.SettleDelay); err != nil {
				return Result{}, err
			}
		}
	}

	frame, err := e.liveFrame(ctx, item)
	if err != nil {
		return Result{}, err
	}
	if err := e.mover.Check(ctx, t); err != nil {
		return Result{}, err
	}

	before, err := e.popupIDs(ctx, item.OwnerPID)
	if err != nil {
		return Result{}, err
	}

	release := e.mover.Lock().Acquire()
	defer release()

	if err := e.requireActiveDesktop(ctx, item); err != nil {
		return Result{}, err
	}

	origin, locErr := e.pointer.Location()
	at := frame.Center()
	if err := e.pointer.Warp(at); err != nil {
		return Result{}, fmt.Errorf("warp pointer: %w", err)
	}
	if err := e.pointer.Press(at, button); err != nil {
		return Result{}, fmt.Errorf("press: %w", err)
	}
	if err := e.pointer.Release(at, button); err != nil {
		return Result{}, fmt.Errorf("release: %w", err)
	}
	if locErr == nil {
		_ = e.pointer.Warp(origin)
	}

	res := Result{Item: item}
	menu, err := e.awaitPopup(ctx, item.OwnerPID, before)
	if err != nil {
		return res, err
	}
	if menu != nil {
		res.MenuOpened = true
		res.Menu = menu
	}
	e.logger.Debug("item clicked",
		"item", key.String(), "button", button.String(), "menu", res.MenuOpened)
	return res, nil
}

func (e *Engine) adjacentLeftOf(item, control menubar.Item) bool {
	order := e.cache.Snapshot().Order
	for i := 0; i+1 < len(order); i++ {
		if order[i].Key() == item.Key() && order[i+1].Key() == control.Key() {
			return true
		}
	}
	return false
}

// requireActiveDesktop fails with ErrOffDesktop when item's window is on
// another desktop. A provider error or timeout lets the click proceed.
func (e *Engine) requireActiveDesktop(ctx context.Context, item menubar.Item) error {
	on, err := menubar.CallWithTimeout(ctx, e.cfg.ProviderTimeout, func() (bool, error) {
		return e.provider.IsOnActiveDesktop(item.WindowID)
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", menubar.ErrCancelled, err)
		}
		e.logger.Debug("desktop check failed", "item", item.Key().String(), "error", err)
		return nil
	}
	if !on {
		return fmt.Errorf("%s: %w", item.Key(), ErrOffDesktop)
	}
	return nil
}

func (e *Engine) liveFrame(ctx context.Context, item menubar.Item) (platform.Rect, error) {
	type frameResult struct {
		rect platform.Rect
		ok   bool
	}
	res, err := menubar.CallWithTimeout(ctx, e.cfg.ProviderTimeout, func() (frameResult, error) {
		r, ok, err := e.provider.Frame(item.WindowID)
		return frameResult{rect: r, ok: ok}, err
	})
	if err != nil {
		return platform.Rect{}, err
	}
	if !res.ok {
		return platform.Rect{}, &menubar.UnresolvedError{Key: item.Key()}
	}
	return res.rect, nil
}

func (e *Engine) popupIDs(ctx context.Context, pid int) (map[platform.WindowID]bool, error) {
	windows, err := menubar.CallWithTimeout(ctx, e.cfg.ProviderTimeout, func() ([]platform.Window, error) {
		return e.provider.ListWindows(true, false)
	})
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	ids := make(map[platform.WindowID]bool)
	for _, w := range windows {
		if w.PID == pid && w.Layer == platform.LayerPopupMenu {
			ids[w.ID] = true
		}
	}
	return ids, nil
}

// awaitPopup polls for a new popup menu window owned by pid. It returns nil
// without error when none appears before the timeout. No single poll may
// outlast the timeout.
func (e *Engine) awaitPopup(ctx context.Context, pid int, before map[platform.WindowID]bool) (*platform.Window, error) {
	deadline := time.Now().Add(e.cfg.PopupTimeout)
	timer := time.NewTimer(e.cfg.PopupTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		budget := time.Until(deadline)
		if budget <= 0 {
			return nil, nil
		}
		if e.cfg.ProviderTimeout > 0 {
			budget = min(budget, e.cfg.ProviderTimeout)
		}
		windows, err := menubar.CallWithTimeout(ctx, budget, func() ([]platform.Window, error) {
			return e.provider.ListWindows(true, false)
		})
		if err != nil && !errors.Is(err, menubar.ErrProviderTimeout) {
			return nil, fmt.Errorf("poll popup: %w", err)
		}
		for _, w := range windows {
			if w.PID == pid && w.Layer == platform.LayerPopupMenu && !before[w.ID] {
				found := w
				return &found, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-ticker.C:
		}
	}
}
