package x11

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"
)

// ErrNoTray means no client owns the system tray selection.
var ErrNoTray = errors.New("no system tray running")

// Tray opcodes from the system tray protocol.
const (
	trayRequestDock = 0
	xembedMapped    = 1
)

// maxTrayDepth bounds the tree walk below the tray; trays wrap icons in at
// most a couple of socket windows.
const maxTrayDepth = 4

func (c *Connection) trayAtom() (xproto.Atom, error) {
	return xprop.Atm(c.XUtil, fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", c.Screen))
}

// TrayOwner returns the window owning the system tray selection for the
// connection's screen.
func (c *Connection) TrayOwner() (xproto.Window, error) {
	atom, err := c.trayAtom()
	if err != nil {
		return 0, fmt.Errorf("failed to intern tray selection: %w", err)
	}
	reply, err := xproto.GetSelectionOwner(c.XUtil.Conn(), atom).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tray owner: %w", err)
	}
	if reply.Owner == 0 {
		return 0, ErrNoTray
	}
	return reply.Owner, nil
}

// TrayIcons returns the embedded icon windows. Icons are recognised by
// their _XEMBED_INFO property. The search starts below the selection
// owner and falls back to the whole tree, because some panels own the
// selection from a window unrelated to where icons are reparented.
func (c *Connection) TrayIcons() ([]xproto.Window, error) {
	owner, err := c.TrayOwner()
	if err != nil {
		return nil, err
	}
	xembed, err := xprop.Atm(c.XUtil, "_XEMBED_INFO")
	if err != nil {
		return nil, fmt.Errorf("failed to intern _XEMBED_INFO: %w", err)
	}

	icons, err := c.findEmbedded(owner, xembed, maxTrayDepth)
	if err != nil {
		return nil, err
	}
	if len(icons) > 0 {
		return icons, nil
	}
	return c.findEmbedded(c.Root, xembed, maxTrayDepth+2)
}

func (c *Connection) findEmbedded(parent xproto.Window, xembed xproto.Atom, depth int) ([]xproto.Window, error) {
	if depth == 0 {
		return nil, nil
	}
	tree, err := xproto.QueryTree(c.XUtil.Conn(), parent).Reply()
	if err != nil {
		// The window went away mid-walk.
		return nil, nil
	}

	cookies := make([]xproto.GetPropertyCookie, len(tree.Children))
	for i, child := range tree.Children {
		cookies[i] = xproto.GetProperty(c.XUtil.Conn(), false, child, xembed, xproto.GetPropertyTypeAny, 0, 2)
	}

	var out []xproto.Window
	for i, cookie := range cookies {
		child := tree.Children[i]
		reply, err := cookie.Reply()
		if err == nil && reply.Format != 0 {
			out = append(out, child)
			continue
		}
		nested, err := c.findEmbedded(child, xembed, depth-1)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

// RequestDock asks the tray to embed windowID.
func (c *Connection) RequestDock(windowID xproto.Window) error {
	owner, err := c.TrayOwner()
	if err != nil {
		return err
	}
	opcode, err := xprop.Atm(c.XUtil, "_NET_SYSTEM_TRAY_OPCODE")
	if err != nil {
		return fmt.Errorf("failed to intern _NET_SYSTEM_TRAY_OPCODE: %w", err)
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: owner,
		Type:   opcode,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime), trayRequestDock, uint32(windowID), 0, 0,
		}),
	}
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		owner,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}
