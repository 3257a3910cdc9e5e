package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil  *xgbutil.XUtil
	Root   xproto.Window
	Screen int
}

// NewConnection connects to display (empty means $DISPLAY) and initializes
// the extensions used for input synthesis and cursor control.
func NewConnection(display string) (*Connection, error) {
	var (
		xu  *xgbutil.XUtil
		err error
	)
	if display == "" {
		xu, err = xgbutil.NewConn()
	} else {
		xu, err = xgbutil.NewConnDisplay(display)
	}
	if err != nil {
		return nil, err
	}

	// Initialize keybind module (required for global hotkeys)
	keybind.Initialize(xu)

	if err := xtest.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("XTEST extension unavailable: %w", err)
	}
	if err := xfixes.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("XFIXES extension unavailable: %w", err)
	}
	// HideCursor needs XFIXES 4; the version must be negotiated first.
	if _, err := xfixes.QueryVersion(xu.Conn(), 4, 0).Reply(); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("XFIXES version query failed: %w", err)
	}

	return &Connection{
		XUtil:  xu,
		Root:   xu.RootWin(),
		Screen: xu.Conn().DefaultScreen,
	}, nil
}

// EventLoop starts the main X11 event loop (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
