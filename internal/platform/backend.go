package platform

import "context"

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MinX returns the left edge.
func (r Rect) MinX() int { return r.X }

// MaxX returns the right edge.
func (r Rect) MaxX() int { return r.X + r.Width }

// MidY returns the vertical center.
func (r Rect) MidY() int { return r.Y + r.Height/2 }

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Window layers, ordered the way the compositor stacks them.
const (
	LayerNormal    = 0
	LayerStatus    = 25
	LayerPopupMenu = 101
)

// Window contains metadata and geometry for a window reported by the
// compositor.
type Window struct {
	ID       WindowID
	PID      int
	Owner    string // stable application identifier (bundle id, WM_CLASS)
	Title    string
	Bounds   Rect
	Layer    int
	OnScreen bool
}

// Button identifies a pointer button.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
)

// String returns the button name.
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseButton maps a button name to a Button. Empty defaults to left.
func ParseButton(name string) (Button, bool) {
	switch name {
	case "", "left":
		return ButtonLeft, true
	case "middle":
		return ButtonMiddle, true
	case "right":
		return ButtonRight, true
	default:
		return 0, false
	}
}

// Enumerator lists windows from the compositor. Calls are synchronous round
// trips with no caching on the provider side.
type Enumerator interface {
	ListWindows(onScreenOnly, activeSpaceOnly bool) ([]Window, error)
	// Frame returns the current bounds of a window; ok is false when the
	// window no longer exists.
	Frame(id WindowID) (Rect, bool, error)
	IsOnActiveDesktop(id WindowID) (bool, error)
}

// Pointer synthesizes pointer input. Delivery is best effort.
type Pointer interface {
	Location() (Point, error)
	Warp(p Point) error
	Press(p Point, b Button) error
	Drag(p Point, b Button) error
	Release(p Point, b Button) error
	SetCursorVisible(visible bool) error
	// SetAssociated toggles whether physical mouse movement drives the
	// cursor. Disassociating locks the user out while a gesture runs.
	SetAssociated(associated bool) error
}

const (
	// ControlWidth is the width of an expanded control item.
	ControlWidth = 8
	// CollapsedControlWidth is how wide a control item grows when its
	// section is collapsed, pushing everything to its left off screen.
	CollapsedControlWidth = 10000
)

// Section names a collapsible area of the bar.
type Section int

const (
	SectionHidden Section = iota + 1
	SectionAlwaysHidden
)

// SectionState reports whether a section exists and whether the bar has
// collapsed it off screen.
type SectionState struct {
	Enabled bool
	Hidden  bool
}

// Bar controls the collapsible sections owned by this process and any
// overlay surfaces that would intercept pointer input.
type Bar interface {
	SectionState(s Section) SectionState
	ShowSection(ctx context.Context, s Section) error
	HideSection(s Section) error
	CloseOverlays() error
}
