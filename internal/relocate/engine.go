// Package relocate moves status items by simulating the pointer drag a user
// would perform, guarded by the move revision counter and the width budget
// of the visible region.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
)

const (
	DefaultMaxVisibleWidth = 660
	DefaultSteps           = 12
	DefaultStepDelay       = 8 * time.Millisecond
	DefaultSettleDelay     = 150 * time.Millisecond

	revisionPoll = 10 * time.Millisecond
)

// Config tunes the engine.
type Config struct {
	MaxVisibleWidth int
	Steps           int
	StepDelay       time.Duration
	SettleDelay     time.Duration
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Cache    *menubar.Cache
	Provider platform.Enumerator
	Pointer  platform.Pointer
	Bar      platform.Bar
	Lock     *PointerLock
	Revision *Revision
}

// Ticket is the revision captured when a move was submitted.
type Ticket uint64

// Engine performs relocations.
type Engine struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an engine. Missing lock or revision are created.
func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.MaxVisibleWidth <= 0 {
		cfg.MaxVisibleWidth = DefaultMaxVisibleWidth
	}
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Lock == nil {
		deps.Lock = NewPointerLock(deps.Pointer, logger)
	}
	if deps.Revision == nil {
		deps.Revision = &Revision{}
	}
	return &Engine{deps: deps, cfg: cfg, logger: logger}
}

// Lock returns the pointer lock shared with other input features.
func (e *Engine) Lock() *PointerLock { return e.deps.Lock }

// Submit captures a new revision, superseding every earlier ticket.
func (e *Engine) Submit() Ticket {
	return Ticket(e.deps.Revision.Next())
}

// Current reports whether t has not been superseded.
func (e *Engine) Current(t Ticket) bool {
	return e.deps.Revision.IsCurrent(uint64(t))
}

// Check returns ErrCancelled if t is stale or ctx is done.
func (e *Engine) Check(ctx context.Context, t Ticket) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", menubar.ErrCancelled, err)
	}
	if !e.Current(t) {
		return menubar.ErrCancelled
	}
	return nil
}

// Pause sleeps for d, returning early with ErrCancelled if ctx ends or t
// goes stale. Staleness is polled every revisionPoll.
func (e *Engine) Pause(ctx context.Context, t Ticket, d time.Duration) error {
	if d <= 0 {
		return e.Check(ctx, t)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	poll := time.NewTicker(min(d, revisionPoll))
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return e.Check(ctx, t)
		case <-timer.C:
			return e.Check(ctx, t)
		case <-poll.C:
			if !e.Current(t) {
				return menubar.ErrCancelled
			}
		}
	}
}

// Relocate submits a new move and performs it.
func (e *Engine) Relocate(ctx context.Context, item menubar.Item, dest menubar.Destination) error {
	return e.RelocateTicket(ctx, e.Submit(), item, dest)
}

// RelocateTicket performs a move under an already submitted ticket. It
// returns ErrCancelled without committing anything if the ticket goes stale
// at any step. A nil error only means the gesture was delivered; callers
// must refresh and verify.
func (e *Engine) RelocateTicket(ctx context.Context, t Ticket, item menubar.Item, dest menubar.Destination) (err error) {
	if err := e.Check(ctx, t); err != nil {
		return err
	}
	if item.Key() == dest.Anchor.Key() {
		return nil
	}
	if err := e.deps.Cache.Refresh(ctx, false); err != nil {
		return err
	}

	arr := e.deps.Cache.Arrangement()
	srcRegion, found := arr.RegionOf(item.Key())
	if !found {
		return &menubar.UnresolvedError{Key: item.Key()}
	}
	restore, err := arr.Move(item, dest)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			restore()
		}
	}()

	destRegion, ok := arr.DestinationRegion(dest)
	if !ok {
		return &menubar.UnresolvedError{Key: dest.Anchor.Key()}
	}
	if destRegion == menubar.RegionVisible && srcRegion != menubar.RegionVisible {
		if width := arr.Width(menubar.RegionVisible); width > e.cfg.MaxVisibleWidth {
			e.logger.Info("relocation rejected by width budget",
				"item", item.Key().String(), "width", width, "limit", e.cfg.MaxVisibleWidth)
			return &menubar.CapacityError{Width: width, Limit: e.cfg.MaxVisibleWidth}
		}
	}

	rehide, err := e.expandSections(ctx, t, srcRegion, destRegion)
	defer rehide()
	if err != nil {
		return err
	}

	itemFrame, err := e.resolveFrame(ctx, t, item)
	if err != nil {
		return err
	}
	anchorFrame, err := e.resolveFrame(ctx, t, dest.Anchor)
	if err != nil {
		return err
	}
	if err := e.Check(ctx, t); err != nil {
		return err
	}

	e.logger.Debug("relocating item",
		"item", item.Key().String(), "dest", dest.String(), "ticket", uint64(t))
	return e.drag(ctx, t, itemFrame, endpoint(anchorFrame, dest.Side))
}

// endpoint is the release point one pixel past the anchor's edge on the
// requested side.
func endpoint(anchor platform.Rect, side menubar.Side) platform.Point {
	if side == menubar.SideLeft {
		return platform.Point{X: anchor.MinX() - 1, Y: anchor.MidY()}
	}
	return platform.Point{X: anchor.MaxX() + 1, Y: anchor.MidY()}
}

func (e *Engine) drag(ctx context.Context, t Ticket, from platform.Rect, to platform.Point) (err error) {
	ptr := e.deps.Pointer
	release := e.deps.Lock.Acquire()
	defer release()

	origin, locErr := ptr.Location()
	defer func() {
		if locErr == nil {
			if werr := ptr.Warp(origin); werr != nil {
				e.logger.Debug("restore pointer failed", "error", werr)
			}
		}
	}()

	start := from.Center()
	if err := ptr.Warp(start); err != nil {
		return fmt.Errorf("warp pointer: %w", err)
	}
	if err := ptr.Press(start, platform.ButtonLeft); err != nil {
		return fmt.Errorf("press: %w", err)
	}

	steps := e.cfg.Steps
	for i := 1; i <= steps; i++ {
		p := platform.Point{
			X: start.X + (to.X-start.X)*i/steps,
			Y: start.Y + (to.Y-start.Y)*i/steps,
		}
		if err := ptr.Drag(p, platform.ButtonLeft); err != nil {
			_ = ptr.Release(p, platform.ButtonLeft)
			return fmt.Errorf("drag: %w", err)
		}
		if err := e.Pause(ctx, t, e.cfg.StepDelay); err != nil {
			// Drop back where the gesture started so the button is not
			// left held.
			_ = ptr.Drag(start, platform.ButtonLeft)
			_ = ptr.Release(start, platform.ButtonLeft)
			return err
		}
	}
	if err := ptr.Release(to, platform.ButtonLeft); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return e.Check(ctx, t)
}

// expandSections shows collapsed sections involved in the move and returns
// a function collapsing them again.
func (e *Engine) expandSections(ctx context.Context, t Ticket, regions ...menubar.Region) (func(), error) {
	bar := e.deps.Bar
	var shown []platform.Section
	rehide := func() {
		for _, s := range shown {
			if err := bar.HideSection(s); err != nil {
				e.logger.Debug("collapse section failed", "section", int(s), "error", err)
			}
		}
	}
	if bar == nil {
		return rehide, nil
	}
	for _, r := range regions {
		s, ok := r.Section()
		if !ok {
			continue
		}
		st := bar.SectionState(s)
		if !st.Enabled || !st.Hidden {
			continue
		}
		if err := bar.ShowSection(ctx, s); err != nil {
			return rehide, fmt.Errorf("show %s section: %w", r, err)
		}
		shown = append(shown, s)
	}
	if len(shown) == 0 {
		return rehide, nil
	}
	return rehide, e.Pause(ctx, t, e.cfg.SettleDelay)
}

// resolveFrame returns the live frame of it, re-resolving by identity key if
// its window has been replaced.
func (e *Engine) resolveFrame(ctx context.Context, t Ticket, it menubar.Item) (platform.Rect, error) {
	frame, ok, err := e.frame(ctx, it.WindowID)
	if err != nil {
		return platform.Rect{}, err
	}
	if ok {
		return frame, nil
	}

	if err := e.Check(ctx, t); err != nil {
		return platform.Rect{}, err
	}
	if err := e.deps.Cache.Refresh(ctx, true); err != nil {
		return platform.Rect{}, err
	}
	fresh, _, found := e.deps.Cache.Find(it.Key())
	if !found {
		return platform.Rect{}, &menubar.UnresolvedError{Key: it.Key()}
	}
	frame, ok, err = e.frame(ctx, fresh.WindowID)
	if err != nil {
		return platform.Rect{}, err
	}
	if !ok {
		return platform.Rect{}, &menubar.UnresolvedError{Key: it.Key()}
	}
	return frame, nil
}

type frameResult struct {
	rect platform.Rect
	ok   bool
}

func (e *Engine) frame(ctx context.Context, id platform.WindowID) (platform.Rect, bool, error) {
	res, err := menubar.CallWithTimeout(ctx, e.cfg.ProviderTimeout, func() (frameResult, error) {
		r, ok, err := e.deps.Provider.Frame(id)
		return frameResult{rect: r, ok: ok}, err
	})
	if err != nil {
		if errors.Is(err, menubar.ErrProviderTimeout) {
			return platform.Rect{}, false, fmt.Errorf("frame of window %d: %w", id, err)
		}
		return platform.Rect{}, false, err
	}
	return res.rect, res.ok, nil
}
