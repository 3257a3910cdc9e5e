//go:build linux

package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/tuck/internal/x11"
)

const (
	sectionPollInterval = 20 * time.Millisecond
	sectionWaitLimit    = 500 * time.Millisecond
)

// ControlSpec describes a control item window to create.
type ControlSpec struct {
	Section Section
	Class   string
	Title   string
}

// LinuxOptions configure the X11 backend.
type LinuxOptions struct {
	Display string
	// TrayScreen selects the _NET_SYSTEM_TRAY_S<n> selection. Zero uses
	// the display's default screen.
	TrayScreen int
	Controls   []ControlSpec
	// IconSize is the height of control windows before the tray resizes
	// them.
	IconSize int
	// OnScroll is called for wheel events over a control item.
	OnScroll func()
	Logger   *slog.Logger
}

// LinuxBackend implements Enumerator, Pointer and Bar over X11: the system
// tray is the bar, XTEST synthesizes input and XFIXES hides the cursor.
type LinuxBackend struct {
	conn     *x11.Connection
	logger   *slog.Logger
	onScroll func()

	mu        sync.Mutex
	controls  map[Section]*x11.ControlWindow
	collapsed map[Section]bool
}

var (
	_ Enumerator = (*LinuxBackend)(nil)
	_ Pointer    = (*LinuxBackend)(nil)
	_ Bar        = (*LinuxBackend)(nil)
)

// NewLinuxBackend connects to the display and docks the control items.
func NewLinuxBackend(opts LinuxOptions) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	if opts.TrayScreen > 0 {
		conn.Screen = opts.TrayScreen
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &LinuxBackend{
		conn:      conn,
		logger:    logger,
		onScroll:  opts.OnScroll,
		controls:  make(map[Section]*x11.ControlWindow),
		collapsed: make(map[Section]bool),
	}

	size := opts.IconSize
	if size <= 0 {
		size = 22
	}
	for _, spec := range opts.Controls {
		cw, err := conn.NewControlWindow(spec.Class, spec.Title, ControlWidth, size)
		if err != nil {
			b.Disconnect()
			return nil, fmt.Errorf("control item %q: %w", spec.Title, err)
		}
		section := spec.Section
		cw.OnButton(func(button int) { b.handleButton(section, button) })
		b.controls[section] = cw
	}
	return b, nil
}

// Disconnect removes the control items and closes the X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b == nil || b.conn == nil {
		return
	}
	b.mu.Lock()
	for _, cw := range b.controls {
		cw.Destroy()
	}
	b.controls = map[Section]*x11.ControlWindow{}
	b.mu.Unlock()
	b.conn.Close()
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

func (b *LinuxBackend) handleButton(s Section, button int) {
	switch button {
	case x11.ButtonWheelUp, x11.ButtonWheelDown:
		if b.onScroll != nil {
			go b.onScroll()
		}
	case 1:
		// A click on a control toggles its section, like any collapsible bar.
		if b.SectionState(s).Hidden {
			if err := b.ShowSection(context.Background(), s); err != nil {
				b.logger.Debug("show section failed", "error", err)
			}
			return
		}
		if err := b.HideSection(s); err != nil {
			b.logger.Debug("collapse section failed", "error", err)
		}
	}
}

func rectFromGeometry(g x11.Geometry) Rect {
	return Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// ListWindows implements Enumerator. Tray icons are reported at
// LayerStatus and open popup menus at LayerPopupMenu.
func (b *LinuxBackend) ListWindows(onScreenOnly, activeSpaceOnly bool) ([]Window, error) {
	screen, err := b.conn.ScreenBounds()
	if err != nil {
		return nil, err
	}
	icons, err := b.conn.TrayIcons()
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(icons))
	add := func(id xproto.Window, layer int) {
		geom, ok := b.conn.GetGeometry(id)
		if !ok {
			return
		}
		onScreen := b.conn.IsViewable(id) &&
			screen.Contains(geom.X, geom.Y) &&
			screen.Contains(geom.X+geom.Width-1, geom.Y+geom.Height-1)
		if onScreenOnly && !onScreen {
			return
		}
		if activeSpaceOnly && !b.conn.OnCurrentDesktop(id) {
			return
		}
		info := b.conn.GetWindowInfo(id)
		title := info.Title
		if title == "" {
			title = info.Class
		}
		windows = append(windows, Window{
			ID:       WindowID(id),
			PID:      info.PID,
			Owner:    info.Class,
			Title:    title,
			Bounds:   rectFromGeometry(geom),
			Layer:    layer,
			OnScreen: onScreen,
		})
	}

	for _, id := range icons {
		add(id, LayerStatus)
	}
	menus, err := b.conn.PopupMenus()
	if err != nil {
		b.logger.Debug("popup menu scan failed", "error", err)
	}
	for _, id := range menus {
		add(id, LayerPopupMenu)
	}
	return windows, nil
}

// Frame implements Enumerator.
func (b *LinuxBackend) Frame(id WindowID) (Rect, bool, error) {
	geom, ok := b.conn.GetGeometry(xproto.Window(id))
	if !ok {
		return Rect{}, false, nil
	}
	return rectFromGeometry(geom), true, nil
}

// IsOnActiveDesktop implements Enumerator.
func (b *LinuxBackend) IsOnActiveDesktop(id WindowID) (bool, error) {
	return b.conn.OnCurrentDesktop(xproto.Window(id)), nil
}

// Location implements Pointer.
func (b *LinuxBackend) Location() (Point, error) {
	x, y, err := b.conn.QueryPointer()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

// Warp implements Pointer.
func (b *LinuxBackend) Warp(p Point) error {
	return b.conn.WarpPointer(p.X, p.Y)
}

func coreButton(btn Button) byte {
	switch btn {
	case ButtonMiddle:
		return 2
	case ButtonRight:
		return 3
	default:
		return 1
	}
}

// Press implements Pointer.
func (b *LinuxBackend) Press(p Point, btn Button) error {
	if err := b.conn.FakeMotion(p.X, p.Y); err != nil {
		return err
	}
	return b.conn.FakeButton(coreButton(btn), true, p.X, p.Y)
}

// Drag implements Pointer. The held button is implied by the server state.
func (b *LinuxBackend) Drag(p Point, _ Button) error {
	return b.conn.FakeMotion(p.X, p.Y)
}

// Release implements Pointer.
func (b *LinuxBackend) Release(p Point, btn Button) error {
	if err := b.conn.FakeMotion(p.X, p.Y); err != nil {
		return err
	}
	return b.conn.FakeButton(coreButton(btn), false, p.X, p.Y)
}

// SetCursorVisible implements Pointer.
func (b *LinuxBackend) SetCursorVisible(visible bool) error {
	return b.conn.SetCursorVisible(visible)
}

// SetAssociated implements Pointer. The core protocol cannot detach a
// physical device and a pointer grab would also swallow the synthesized
// events, so this is a no-op.
func (b *LinuxBackend) SetAssociated(bool) error {
	return nil
}

// SectionState implements Bar.
func (b *LinuxBackend) SectionState(s Section) SectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.controls[s]
	return SectionState{Enabled: ok, Hidden: ok && b.collapsed[s]}
}

// ShowSection implements Bar. It waits until the tray has shrunk the
// control, or a short limit passes.
func (b *LinuxBackend) ShowSection(ctx context.Context, s Section) error {
	cw, err := b.setCollapsed(s, false)
	if err != nil || cw == nil {
		return err
	}

	deadline := time.NewTimer(sectionWaitLimit)
	defer deadline.Stop()
	ticker := time.NewTicker(sectionPollInterval)
	defer ticker.Stop()
	for {
		if geom, ok := b.conn.GetGeometry(cw.ID()); ok && geom.Width < CollapsedControlWidth {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
}

// HideSection implements Bar.
func (b *LinuxBackend) HideSection(s Section) error {
	_, err := b.setCollapsed(s, true)
	return err
}

func (b *LinuxBackend) setCollapsed(s Section, collapsed bool) (*x11.ControlWindow, error) {
	b.mu.Lock()
	cw, ok := b.controls[s]
	if !ok {
		b.mu.Unlock()
		return nil, nil
	}
	b.collapsed[s] = collapsed
	b.mu.Unlock()

	width := ControlWidth
	if collapsed {
		width = CollapsedControlWidth
	}
	cw.SetWidth(width)
	return cw, nil
}

// CloseOverlays implements Bar. Open popup menus are dismissed with Escape.
func (b *LinuxBackend) CloseOverlays() error {
	menus, err := b.conn.PopupMenus()
	if err != nil {
		return err
	}
	if len(menus) == 0 {
		return nil
	}
	return b.conn.FakeKey("Escape")
}
