// Package fakebar is an in-memory status bar for tests. It implements
// platform.Enumerator, platform.Pointer and platform.Bar, lays items out
// right-anchored the way a real bar does, and honours drag gestures by
// reordering the dragged item at the release point.
package fakebar

import (
	"context"
	"sync"
	"time"

	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
)

const (
	DefaultScreenWidth = 1440
	DefaultBarHeight   = 24
)

// EventKind identifies a recorded input event.
type EventKind int

const (
	EventWarp EventKind = iota
	EventPress
	EventDrag
	EventRelease
	EventCursorHidden
	EventCursorShown
	EventDisassociate
	EventAssociate
)

// Event is one simulated input call.
type Event struct {
	Kind   EventKind
	Point  platform.Point
	Button platform.Button
}

type entry struct {
	win platform.Window
}

func (e *entry) key() menubar.IdentityKey {
	return menubar.ItemFromWindow(e.win).Key()
}

// Bar is the simulated bar. The zero value is not usable; call New.
type Bar struct {
	mu sync.Mutex

	screenWidth int
	height      int
	nextID      platform.WindowID

	order    []*entry
	popups   []platform.Window
	offSpace map[platform.WindowID]bool
	sections map[platform.Section]*platform.SectionState

	pointer       platform.Point
	pressed       *entry
	pressButton   platform.Button
	dragged       bool
	cursorVisible bool
	associated    bool

	events         []Event
	rejectDrags    bool
	menuOnClick    map[menubar.IdentityKey]bool
	clicks         []menubar.IdentityKey
	listDelay      time.Duration
	listCalls      int
	overlaysClosed int
	onEvent        func(Event)
}

// New creates an empty bar.
func New() *Bar {
	return &Bar{
		screenWidth:   DefaultScreenWidth,
		height:        DefaultBarHeight,
		nextID:        100,
		offSpace:      make(map[platform.WindowID]bool),
		sections:      make(map[platform.Section]*platform.SectionState),
		menuOnClick:   make(map[menubar.IdentityKey]bool),
		cursorVisible: true,
		associated:    true,
		pointer:       platform.Point{X: 700, Y: 400},
	}
}

var (
	_ platform.Enumerator = (*Bar)(nil)
	_ platform.Pointer    = (*Bar)(nil)
	_ platform.Bar        = (*Bar)(nil)
)

// AddItem appends a normal item at the right end of the bar and returns its
// window id.
func (b *Bar) AddItem(owner, title string, pid, width int) platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(platform.Window{
		PID:    pid,
		Owner:  owner,
		Title:  title,
		Bounds: platform.Rect{Width: width, Height: b.height},
		Layer:  platform.LayerStatus,
	})
}

// AddControl appends the control item for section s at the right end of the
// bar and enables the section.
func (b *Bar) AddControl(s platform.Section) platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	title := menubar.HiddenControlTitle
	if s == platform.SectionAlwaysHidden {
		title = menubar.AlwaysHiddenControlTitle
	}
	b.sections[s] = &platform.SectionState{Enabled: true}
	return b.appendLocked(platform.Window{
		PID:    1,
		Owner:  menubar.ControlOwner,
		Title:  title,
		Bounds: platform.Rect{Width: platform.ControlWidth, Height: b.height},
		Layer:  platform.LayerStatus,
	})
}

func (b *Bar) appendLocked(w platform.Window) platform.WindowID {
	b.nextID++
	w.ID = b.nextID
	b.order = append(b.order, &entry{win: w})
	return w.ID
}

// Remove deletes the item with the given owner and title.
func (b *Bar) Remove(owner, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(owner, title); i >= 0 {
		b.order = append(b.order[:i], b.order[i+1:]...)
	}
}

// ChurnWindowID gives an item a new window id, as when its owner recreates
// the window.
func (b *Bar) ChurnWindowID(owner, title string) platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(owner, title)
	if i < 0 {
		return 0
	}
	b.nextID++
	b.order[i].win.ID = b.nextID
	return b.nextID
}

// MoveToEnd moves an item to the far right, as if its owner restarted and
// re-registered it.
func (b *Bar) MoveToEnd(owner, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(owner, title)
	if i < 0 {
		return
	}
	e := b.order[i]
	b.order = append(b.order[:i], b.order[i+1:]...)
	b.order = append(b.order, e)
}

// SetRejectDrags makes drags end without effect.
func (b *Bar) SetRejectDrags(reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectDrags = reject
}

// SetMenuOnClick makes a click on the item open a popup menu window.
func (b *Bar) SetMenuOnClick(owner, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := menubar.IdentityKey{Owner: owner, Title: title}
	b.menuOnClick[key] = true
}

// SetListDelay delays every ListWindows call.
func (b *Bar) SetListDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listDelay = d
}

// SetOffSpace marks a window as living on another desktop.
func (b *Bar) SetOffSpace(id platform.WindowID, off bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offSpace[id] = off
}

// SetSectionHidden collapses or expands a section directly.
func (b *Bar) SetSectionHidden(s platform.Section, hidden bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.sections[s]; ok {
		st.Hidden = hidden
	}
}

// OnEvent registers a hook called after each input event, outside the lock.
func (b *Bar) OnEvent(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEvent = fn
}

// Events returns the recorded input events.
func (b *Bar) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// InputEvents counts warp, press, drag and release events.
func (b *Bar) InputEvents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		switch e.Kind {
		case EventWarp, EventPress, EventDrag, EventRelease:
			n++
		}
	}
	return n
}

// Clicks returns the items that received a press and release without drag.
func (b *Bar) Clicks() []menubar.IdentityKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]menubar.IdentityKey(nil), b.clicks...)
}

// CursorVisible reports the simulated cursor visibility.
func (b *Bar) CursorVisible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursorVisible
}

// Associated reports whether physical input drives the cursor.
func (b *Bar) Associated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.associated
}

// OverlaysClosed counts CloseOverlays calls.
func (b *Bar) OverlaysClosed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overlaysClosed
}

// ListCalls counts ListWindows calls.
func (b *Bar) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

// Titles returns the titles of all items left to right, controls included.
func (b *Bar) Titles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.order))
	for _, e := range b.order {
		out = append(out, e.win.Title)
	}
	return out
}

func (b *Bar) indexLocked(owner, title string) int {
	for i, e := range b.order {
		if e.win.Owner == owner && e.win.Title == title {
			return i
		}
	}
	return -1
}

// layoutLocked returns current frames, right-anchored at the screen edge.
func (b *Bar) layoutLocked() map[*entry]platform.Rect {
	frames := make(map[*entry]platform.Rect, len(b.order))
	x := b.screenWidth
	for i := len(b.order) - 1; i >= 0; i-- {
		e := b.order[i]
		w := b.widthLocked(e)
		x -= w
		frames[e] = platform.Rect{X: x, Y: 0, Width: w, Height: b.height}
	}
	return frames
}

func (b *Bar) widthLocked(e *entry) int {
	if e.win.Owner == menubar.ControlOwner {
		s := platform.SectionHidden
		if e.win.Title == menubar.AlwaysHiddenControlTitle {
			s = platform.SectionAlwaysHidden
		}
		if st, ok := b.sections[s]; ok && st.Hidden {
			return platform.CollapsedControlWidth
		}
	}
	return e.win.Bounds.Width
}

func (b *Bar) onScreen(r platform.Rect) bool {
	return r.X >= 0 && r.MaxX() <= b.screenWidth
}

// ListWindows implements platform.Enumerator.
func (b *Bar) ListWindows(onScreenOnly, activeSpaceOnly bool) ([]platform.Window, error) {
	b.mu.Lock()
	delay := b.listDelay
	b.listCalls++
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	frames := b.layoutLocked()
	out := make([]platform.Window, 0, len(b.order)+len(b.popups))
	for _, e := range b.order {
		w := e.win
		w.Bounds = frames[e]
		w.OnScreen = b.onScreen(w.Bounds)
		if onScreenOnly && !w.OnScreen {
			continue
		}
		if activeSpaceOnly && b.offSpace[w.ID] {
			continue
		}
		out = append(out, w)
	}
	out = append(out, b.popups...)
	return out, nil
}

// Frame implements platform.Enumerator.
func (b *Bar) Frame(id platform.WindowID) (platform.Rect, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := b.layoutLocked()
	for _, e := range b.order {
		if e.win.ID == id {
			return frames[e], true, nil
		}
	}
	for _, p := range b.popups {
		if p.ID == id {
			return p.Bounds, true, nil
		}
	}
	return platform.Rect{}, false, nil
}

// IsOnActiveDesktop implements platform.Enumerator.
func (b *Bar) IsOnActiveDesktop(id platform.WindowID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.offSpace[id], nil
}

// Location implements platform.Pointer.
func (b *Bar) Location() (platform.Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pointer, nil
}

// Warp implements platform.Pointer.
func (b *Bar) Warp(p platform.Point) error {
	b.record(Event{Kind: EventWarp, Point: p}, func() {
		b.pointer = p
	})
	return nil
}

// Press implements platform.Pointer.
func (b *Bar) Press(p platform.Point, btn platform.Button) error {
	b.record(Event{Kind: EventPress, Point: p, Button: btn}, func() {
		b.pointer = p
		b.pressed = b.hitLocked(p)
		b.pressButton = btn
		b.dragged = false
	})
	return nil
}

// Drag implements platform.Pointer.
func (b *Bar) Drag(p platform.Point, btn platform.Button) error {
	b.record(Event{Kind: EventDrag, Point: p, Button: btn}, func() {
		if p != b.pointer {
			b.dragged = true
		}
		b.pointer = p
	})
	return nil
}

// Release implements platform.Pointer.
func (b *Bar) Release(p platform.Point, btn platform.Button) error {
	b.record(Event{Kind: EventRelease, Point: p, Button: btn}, func() {
		b.pointer = p
		pressed := b.pressed
		b.pressed = nil
		if pressed == nil || btn != b.pressButton {
			return
		}
		if !b.dragged {
			b.clickLocked(pressed)
			return
		}
		if !b.rejectDrags {
			b.dropLocked(pressed, p)
		}
	})
	return nil
}

// SetCursorVisible implements platform.Pointer.
func (b *Bar) SetCursorVisible(visible bool) error {
	kind := EventCursorHidden
	if visible {
		kind = EventCursorShown
	}
	b.record(Event{Kind: kind}, func() {
		b.cursorVisible = visible
	})
	return nil
}

// SetAssociated implements platform.Pointer.
func (b *Bar) SetAssociated(associated bool) error {
	kind := EventDisassociate
	if associated {
		kind = EventAssociate
	}
	b.record(Event{Kind: kind}, func() {
		b.associated = associated
	})
	return nil
}

func (b *Bar) record(ev Event, apply func()) {
	b.mu.Lock()
	apply()
	b.events = append(b.events, ev)
	hook := b.onEvent
	b.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (b *Bar) hitLocked(p platform.Point) *entry {
	frames := b.layoutLocked()
	for _, e := range b.order {
		f := frames[e]
		if f.Width > 0 && f.Contains(p) {
			return e
		}
	}
	return nil
}

// dropLocked reinserts e before the first other item whose center is at or
// right of the release point.
func (b *Bar) dropLocked(e *entry, p platform.Point) {
	frames := b.layoutLocked()
	rest := make([]*entry, 0, len(b.order))
	for _, o := range b.order {
		if o != e {
			rest = append(rest, o)
		}
	}
	at := len(rest)
	for i, o := range rest {
		f := frames[o]
		if f.X+f.Width/2 >= p.X {
			at = i
			break
		}
	}
	next := make([]*entry, 0, len(b.order))
	next = append(next, rest[:at]...)
	next = append(next, e)
	next = append(next, rest[at:]...)
	b.order = next
}

func (b *Bar) clickLocked(e *entry) {
	key := e.key()
	b.clicks = append(b.clicks, key)
	if !b.menuOnClick[key] {
		return
	}
	frame := b.layoutLocked()[e]
	b.nextID++
	b.popups = append(b.popups, platform.Window{
		ID:       b.nextID,
		PID:      e.win.PID,
		Owner:    e.win.Owner,
		Title:    "",
		Bounds:   platform.Rect{X: frame.X, Y: b.height, Width: 200, Height: 300},
		Layer:    platform.LayerPopupMenu,
		OnScreen: true,
	})
}

// SectionState implements platform.Bar.
func (b *Bar) SectionState(s platform.Section) platform.SectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.sections[s]; ok {
		return *st
	}
	return platform.SectionState{}
}

// ShowSection implements platform.Bar.
func (b *Bar) ShowSection(_ context.Context, s platform.Section) error {
	b.SetSectionHidden(s, false)
	return nil
}

// HideSection implements platform.Bar.
func (b *Bar) HideSection(s platform.Section) error {
	b.SetSectionHidden(s, true)
	return nil
}

// CloseOverlays implements platform.Bar. Open popup menus are dismissed.
func (b *Bar) CloseOverlays() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlaysClosed++
	b.popups = nil
	return nil
}
