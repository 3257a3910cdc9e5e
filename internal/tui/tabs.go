package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/menubar"
)

// Tab identifies a TUI tab. Each tab lists the items of one region.
type Tab int

const (
	TabVisible Tab = iota
	TabHidden
	TabAlwaysHidden
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabVisible:
		return "Visible"
	case TabHidden:
		return "Hidden"
	case TabAlwaysHidden:
		return "Always Hidden"
	default:
		return "?"
	}
}

// Region returns the region listed by the tab.
func (t Tab) Region() menubar.Region {
	switch t {
	case TabHidden:
		return menubar.RegionHidden
	case TabAlwaysHidden:
		return menubar.RegionAlwaysHidden
	default:
		return menubar.RegionVisible
	}
}

func tabForRegion(name string) (Tab, bool) {
	r, err := menubar.ParseRegion(name)
	if err != nil {
		return 0, false
	}
	switch r {
	case menubar.RegionHidden:
		return TabHidden, true
	case menubar.RegionAlwaysHidden:
		return TabAlwaysHidden, true
	default:
		return TabVisible, true
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// renderTabBar renders the tab bar with the given active tab and width.
// counts holds the number of items per tab.
func renderTabBar(active Tab, counts [tabCount]int, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s (%d)", int(i)+1, i, counts[i])
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

// renderStatusBar renders the daemon connection status bar.
func renderStatusBar(connected bool, status *ipc.StatusData, width int) string {
	var text string
	if connected {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{dot + " daemon connected"}
		if status != nil {
			parts = append(parts,
				fmt.Sprintf("missing:%d", status.MissingCount),
				"recovery:"+status.RecoveryState)
			if v, ok := status.Regions[menubar.RegionVisible.String()]; ok {
				parts = append(parts, fmt.Sprintf("width:%d/%d", v.Width, status.MaxVisibleWidth))
			}
			if status.HiddenCollapsed {
				parts = append(parts, "collapsed")
			}
		}
		text = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		text = dot + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(text)
}

// renderMessage renders the outcome of the last action.
func renderMessage(text string, isErr bool, width int) string {
	style := noticeStyle
	if isErr {
		style = errorStyle
	}
	return style.Width(width).Padding(0, 1).Render(text)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(width int) string {
	help := "tab/1-3: region  enter: click  v/h/a: move to visible/hidden/always-hidden  r: recover all  o: recover one  f: refresh  q: quit"
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}
