package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// Geometry is a window rectangle in root coordinates.
type Geometry struct {
	X, Y          int
	Width, Height int
}

// WindowInfo is the identity of a window as other clients advertise it.
type WindowInfo struct {
	PID   int
	Class string
	Title string
	Types []string
}

// GetGeometry returns the root-relative geometry of windowID. ok is false
// when the window no longer exists.
func (c *Connection) GetGeometry(windowID xproto.Window) (g Geometry, ok bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, false
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return Geometry{}, false
	}
	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, true
}

// IsViewable reports whether windowID and all its ancestors are mapped.
func (c *Connection) IsViewable(windowID xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// GetWindowInfo reads pid, class and title. Missing properties are left
// empty; the tray protocol does not require clients to set any of them.
func (c *Connection) GetWindowInfo(windowID xproto.Window) WindowInfo {
	var info WindowInfo
	if pid, err := ewmh.WmPidGet(c.XUtil, windowID); err == nil {
		info.PID = int(pid)
	}
	if class, err := icccm.WmClassGet(c.XUtil, windowID); err == nil && class != nil {
		info.Class = class.Class
		if info.Class == "" {
			info.Class = class.Instance
		}
	}
	if name, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil && name != "" {
		info.Title = name
	} else if name, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		info.Title = name
	}
	if types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID); err == nil {
		info.Types = types
	}
	return info
}

var menuTypes = map[string]bool{
	"_NET_WM_WINDOW_TYPE_POPUP_MENU":    true,
	"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU": true,
	"_NET_WM_WINDOW_TYPE_MENU":          true,
}

// IsMenuType reports whether types marks a popup menu.
func IsMenuType(types []string) bool {
	for _, t := range types {
		if menuTypes[t] {
			return true
		}
	}
	return false
}

// PopupMenus lists mapped override-redirect top-level windows typed as
// menus.
func (c *Connection) PopupMenus() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, err
	}

	cookies := make([]xproto.GetWindowAttributesCookie, len(tree.Children))
	for i, child := range tree.Children {
		cookies[i] = xproto.GetWindowAttributes(c.XUtil.Conn(), child)
	}

	var menus []xproto.Window
	for i, cookie := range cookies {
		attrs, err := cookie.Reply()
		if err != nil || !attrs.OverrideRedirect || attrs.MapState != xproto.MapStateViewable {
			continue
		}
		types, err := ewmh.WmWindowTypeGet(c.XUtil, tree.Children[i])
		if err != nil || !IsMenuType(types) {
			continue
		}
		menus = append(menus, tree.Children[i])
	}
	return menus, nil
}
