package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	// Initialize RandR if not already done
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	return monitors, nil
}

// ScreenBounds returns the bounding box of all monitors, falling back to
// the root window geometry when RandR reports nothing.
func (c *Connection) ScreenBounds() (Geometry, error) {
	monitors, err := c.GetMonitors()
	if err != nil || len(monitors) == 0 {
		geom, gerr := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
		if gerr != nil {
			return Geometry{}, fmt.Errorf("failed to get root geometry: %w", gerr)
		}
		return Geometry{Width: int(geom.Width), Height: int(geom.Height)}, nil
	}

	x1, y1 := monitors[0].X, monitors[0].Y
	x2, y2 := x1+monitors[0].Width, y1+monitors[0].Height
	for _, m := range monitors[1:] {
		x1 = min(x1, m.X)
		y1 = min(y1, m.Y)
		x2 = max(x2, m.X+m.Width)
		y2 = max(y2, m.Y+m.Height)
	}
	return Geometry{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, nil
}

// Contains reports whether the point lies inside g.
func (g Geometry) Contains(x, y int) bool {
	return x >= g.X && x < g.X+g.Width && y >= g.Y && y < g.Y+g.Height
}
