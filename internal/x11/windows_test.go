package x11

import "testing"

func TestIsMenuType(t *testing.T) {
	tests := []struct {
		types []string
		want  bool
	}{
		{[]string{"_NET_WM_WINDOW_TYPE_POPUP_MENU"}, true},
		{[]string{"_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DROPDOWN_MENU"}, true},
		{[]string{"_NET_WM_WINDOW_TYPE_NORMAL"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsMenuType(tt.types); got != tt.want {
			t.Errorf("IsMenuType(%v) = %v, want %v", tt.types, got, tt.want)
		}
	}
}

func TestGeometryContains(t *testing.T) {
	g := Geometry{X: 100, Y: 0, Width: 50, Height: 24}
	tests := []struct {
		x, y int
		want bool
	}{
		{100, 0, true},
		{149, 23, true},
		{150, 10, false},
		{99, 10, false},
		{120, 24, false},
	}
	for _, tt := range tests {
		if got := g.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
