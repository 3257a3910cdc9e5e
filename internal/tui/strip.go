package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/menubar"
)

// statusItem is one bar item as a list row.
type statusItem struct {
	info ipc.ItemInfo
}

func (i statusItem) Title() string {
	mark := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	if i.info.Expected {
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("◆")
	}
	return mark + " " + displayName(i.info)
}

func (i statusItem) Description() string {
	parts := []string{i.info.Owner, fmt.Sprintf("%dpx at x=%d", i.info.Width, i.info.X)}
	if i.info.Expected {
		parts = append(parts, "kept hidden")
	}
	return strings.Join(parts, " | ")
}

func (i statusItem) FilterValue() string { return i.info.Owner + " " + i.info.Title }

func (i statusItem) ref() ipc.ItemRef {
	return ipc.ItemRef{Owner: i.info.Owner, Title: i.info.Title}
}

func displayName(info ipc.ItemInfo) string {
	if info.Title != "" {
		return info.Title
	}
	return info.Owner
}

func isControl(info ipc.ItemInfo) bool {
	return info.Kind != menubar.KindNormal.String()
}

// newRegionList creates the list for one region tab.
func newRegionList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = title
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}

// splitByTab groups the non-control items by the tab listing their region,
// keeping bar order.
func splitByTab(items []ipc.ItemInfo) [tabCount][]list.Item {
	var out [tabCount][]list.Item
	for _, info := range items {
		if isControl(info) {
			continue
		}
		tab, ok := tabForRegion(info.Region)
		if !ok {
			continue
		}
		out[tab] = append(out[tab], statusItem{info: info})
	}
	return out
}

var (
	stripItemStyle = map[string]lipgloss.Style{
		menubar.RegionVisible.String():      lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		menubar.RegionHidden.String():       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		menubar.RegionAlwaysHidden.String(): lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
	stripControlStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
)

// stripToken renders an item in the strip: items in brackets, the hidden
// control as "|H|" and the always-hidden control as "|A|".
func stripToken(info ipc.ItemInfo) string {
	switch info.Kind {
	case menubar.KindHiddenControl.String():
		return "|H|"
	case menubar.KindAlwaysHiddenControl.String():
		return "|A|"
	default:
		return "[" + displayName(info) + "]"
	}
}

// renderStrip renders the bar order on one line, truncated to width.
func renderStrip(items []ipc.ItemInfo, width int) string {
	if len(items) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1).Render("(no items)")
	}
	var b strings.Builder
	used := 0
	for i, info := range items {
		tok := stripToken(info)
		if width > 0 && used+len(tok)+1 > width-2 {
			b.WriteString("…")
			break
		}
		if i > 0 {
			b.WriteString(" ")
			used++
		}
		style, ok := stripItemStyle[info.Region]
		if isControl(info) {
			style = stripControlStyle
		} else if !ok {
			style = lipgloss.NewStyle()
		}
		b.WriteString(style.Render(tok))
		used += len(tok)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}
