package x11

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Pointer buttons as the core protocol numbers them.
const (
	ButtonWheelUp   = 4
	ButtonWheelDown = 5
)

// ControlWindow is a tray icon owned by this process. Its width decides
// whether the icons left of it fit on screen.
type ControlWindow struct {
	conn *Connection
	win  *xwindow.Window

	mu    sync.Mutex
	width int
}

// NewControlWindow creates a window advertising class and title, sized
// width×height, and asks the tray to embed it.
func (c *Connection) NewControlWindow(class, title string, width, height int) (*ControlWindow, error) {
	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate control window: %w", err)
	}
	err = win.CreateChecked(c.Root, 0, 0, width, height,
		xproto.CwBackPixel|xproto.CwEventMask,
		0, xproto.EventMaskButtonPress|xproto.EventMaskStructureNotify)
	if err != nil {
		return nil, fmt.Errorf("failed to create control window: %w", err)
	}

	cw := &ControlWindow{conn: c, win: win, width: width}
	if err := icccm.WmClassSet(c.XUtil, win.Id, &icccm.WmClass{Instance: class, Class: class}); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to set WM_CLASS: %w", err)
	}
	_ = icccm.WmNameSet(c.XUtil, win.Id, title)
	_ = ewmh.WmNameSet(c.XUtil, win.Id, title)
	_ = ewmh.WmPidSet(c.XUtil, win.Id, uint(os.Getpid()))
	if err := xprop.ChangeProp32(c.XUtil, win.Id, "_XEMBED_INFO", "_XEMBED_INFO", 0, xembedMapped); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to set _XEMBED_INFO: %w", err)
	}
	cw.setHints(width, height)

	if err := c.RequestDock(win.Id); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to dock control window: %w", err)
	}
	return cw, nil
}

// ID returns the X window id.
func (cw *ControlWindow) ID() xproto.Window { return cw.win.Id }

// Width returns the last requested width.
func (cw *ControlWindow) Width() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.width
}

// SetWidth resizes the control. Trays size icons from WM_NORMAL_HINTS, so
// the hints are updated along with the window.
func (cw *ControlWindow) SetWidth(width int) {
	cw.mu.Lock()
	cw.width = width
	cw.mu.Unlock()

	geom, ok := cw.conn.GetGeometry(cw.win.Id)
	height := geom.Height
	if !ok || height <= 0 {
		height = 1
	}
	cw.setHints(width, height)
	cw.win.Resize(width, height)
}

func (cw *ControlWindow) setHints(width, height int) {
	hints := &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  uint(width),
		MinHeight: uint(height),
		MaxWidth:  uint(width),
		MaxHeight: uint(height),
	}
	_ = icccm.WmNormalHintsSet(cw.conn.XUtil, cw.win.Id, hints)
}

// OnButton calls fn with the core button number for every press on the
// control. Handlers run on the event loop goroutine.
func (cw *ControlWindow) OnButton(fn func(button int)) {
	xevent.ButtonPressFun(func(_ *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
		fn(int(ev.Detail))
	}).Connect(cw.conn.XUtil, cw.win.Id)
}

// Destroy removes the control from the tray.
func (cw *ControlWindow) Destroy() {
	xevent.Detach(cw.conn.XUtil, cw.win.Id)
	cw.win.Destroy()
}
