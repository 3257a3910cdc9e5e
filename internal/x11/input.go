package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil/keybind"
)

// QueryPointer returns the pointer position in root coordinates.
func (c *Connection) QueryPointer() (x, y int, err error) {
	reply, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query pointer: %w", err)
	}
	return int(reply.RootX), int(reply.RootY), nil
}

// WarpPointer moves the pointer to root coordinates x, y.
func (c *Connection) WarpPointer(x, y int) error {
	return xproto.WarpPointerChecked(c.XUtil.Conn(), 0, c.Root, 0, 0, 0, 0, int16(x), int16(y)).Check()
}

// FakeMotion synthesizes an absolute pointer motion through XTEST.
func (c *Connection) FakeMotion(x, y int) error {
	return c.fake(xproto.MotionNotify, 0, x, y)
}

// FakeButton synthesizes a button press or release through XTEST.
func (c *Connection) FakeButton(button byte, press bool, x, y int) error {
	typ := byte(xproto.ButtonRelease)
	if press {
		typ = xproto.ButtonPress
	}
	return c.fake(typ, button, x, y)
}

func (c *Connection) fake(typ, detail byte, x, y int) error {
	err := xtest.FakeInputChecked(c.XUtil.Conn(), typ, detail, 0, c.Root, int16(x), int16(y), 0).Check()
	if err != nil {
		return fmt.Errorf("XTEST fake input: %w", err)
	}
	return nil
}

// FakeKey taps the key named by keyStr, e.g. "Escape".
func (c *Connection) FakeKey(keyStr string) error {
	codes := keybind.StrToKeycodes(c.XUtil, keyStr)
	if len(codes) == 0 {
		return fmt.Errorf("no keycode for %q", keyStr)
	}
	code := byte(codes[0])
	if err := xtest.FakeInputChecked(c.XUtil.Conn(), xproto.KeyPress, code, 0, c.Root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("XTEST key press: %w", err)
	}
	if err := xtest.FakeInputChecked(c.XUtil.Conn(), xproto.KeyRelease, code, 0, c.Root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("XTEST key release: %w", err)
	}
	return nil
}

// SetCursorVisible hides or shows the cursor over the root window.
func (c *Connection) SetCursorVisible(visible bool) error {
	if visible {
		return xfixes.ShowCursorChecked(c.XUtil.Conn(), c.Root).Check()
	}
	return xfixes.HideCursorChecked(c.XUtil.Conn(), c.Root).Check()
}
