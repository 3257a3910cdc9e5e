package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/recovery"
)

// snapshotMsg carries a fresh view of the daemon.
type snapshotMsg struct {
	items  *ipc.ItemsData
	status *ipc.StatusData
	err    error
}

// actionMsg reports the outcome of a user or periodic action.
type actionMsg struct {
	text string
	err  error
}

// scrollMsg reports a scroll-triggered recovery. It does not clear busy.
type scrollMsg actionMsg

type refreshTickMsg struct{}

type recoverTickMsg struct{}

// model is the root bubbletea model for the TUI.
type model struct {
	daemon Daemon
	opts   Options

	activeTab Tab
	lists     [tabCount]list.Model
	items     []ipc.ItemInfo

	connected bool
	status    *ipc.StatusData

	// busy is set while a gesture issued from the TUI is in flight.
	busy    bool
	message string
	isErr   bool

	width  int
	height int
}

func newModel(d Daemon, opts Options) model {
	m := model{
		daemon:    d,
		opts:      opts.withDefaults(),
		activeTab: TabVisible,
	}
	for t := Tab(0); t < tabCount; t++ {
		m.lists[t] = newRegionList(t.String())
	}
	return m
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetch(false), m.refreshTick()}
	if m.opts.RecoverInterval > 0 {
		cmds = append(cmds, m.recoverTick())
	}
	return tea.Batch(cmds...)
}

func (m model) refreshTick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

func (m model) recoverTick() tea.Cmd {
	return tea.Tick(m.opts.RecoverInterval, func(time.Time) tea.Msg { return recoverTickMsg{} })
}

func (m model) fetch(refresh bool) tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		items, err := d.ListItems(refresh)
		if err != nil {
			return snapshotMsg{err: err}
		}
		status, err := d.GetStatus()
		return snapshotMsg{items: items, status: status, err: err}
	}
}

func (m model) recover(limit int, label string) tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		res, err := d.Recover(limit)
		if err != nil {
			return actionMsg{err: fmt.Errorf("%s: %w", label, err)}
		}
		return actionMsg{text: label + ": " + describeRecovery(res)}
	}
}

func (m model) scroll() tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		res, err := d.Scroll()
		if err != nil {
			return scrollMsg{err: fmt.Errorf("scroll recovery: %w", err)}
		}
		if res.Skipped && res.Reason == recovery.ReasonRateLimited {
			// Wheel events arrive in bursts; only report passes that ran.
			return nil
		}
		return scrollMsg{text: "scroll recovery: " + describeRecovery(res)}
	}
}

func (m model) move(item statusItem, to menubar.Region) tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		res, err := d.MoveItem(ipc.MoveItemPayload{Item: item.ref(), To: to.String()})
		if err != nil {
			return actionMsg{err: fmt.Errorf("move %s: %w", displayName(item.info), err)}
		}
		return actionMsg{text: fmt.Sprintf("moved %s from %s to %s", displayName(item.info), res.From, res.To)}
	}
}

func (m model) click(item statusItem) tea.Cmd {
	d := m.daemon
	return func() tea.Msg {
		res, err := d.ClickItem(item.ref(), "left")
		if err != nil {
			return actionMsg{err: fmt.Errorf("click %s: %w", displayName(item.info), err)}
		}
		if res.MenuOpened {
			return actionMsg{text: fmt.Sprintf("clicked %s, menu opened", displayName(item.info))}
		}
		return actionMsg{text: fmt.Sprintf("clicked %s", displayName(item.info))}
	}
}

func describeRecovery(res *recovery.Result) string {
	if res == nil {
		return "no result"
	}
	if res.Skipped {
		return "skipped (" + res.Reason + ")"
	}
	return fmt.Sprintf("attempted %d, still missing %d", res.Attempted, res.StillMissing)
}

// selected returns the highlighted item of the active tab.
func (m model) selected() (statusItem, bool) {
	it, ok := m.lists[m.activeTab].SelectedItem().(statusItem)
	return it, ok
}

// contentHeight returns the height available for the active list.
func (m model) contentHeight() int {
	// status (1) + strip (1) + tab bar (2 with margin) + message (1) + help (1)
	return max(m.height-6, 1)
}

func (m *model) applySnapshot(msg snapshotMsg) tea.Cmd {
	if msg.items == nil {
		m.connected = false
		m.status = nil
		return nil
	}
	m.connected = true
	if msg.status != nil {
		m.status = msg.status
	}
	m.items = msg.items.Items
	byTab := splitByTab(m.items)
	var cmds []tea.Cmd
	for t := Tab(0); t < tabCount; t++ {
		cmds = append(cmds, m.lists[t].SetItems(byTab[t]))
	}
	return tea.Batch(cmds...)
}

func (m *model) startAction(cmd tea.Cmd) tea.Cmd {
	if m.busy {
		m.message, m.isErr = "busy, wait for the current action", true
		return nil
	}
	m.busy = true
	return cmd
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for t := range m.lists {
			m.lists[t].SetSize(m.width, m.contentHeight())
		}
		return m, nil

	case snapshotMsg:
		return m, m.applySnapshot(msg)

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.message, m.isErr = msg.err.Error(), true
		} else {
			m.message, m.isErr = msg.text, false
		}
		return m, m.fetch(true)

	case scrollMsg:
		if msg.err != nil {
			m.message, m.isErr = msg.err.Error(), true
		} else {
			m.message, m.isErr = msg.text, false
		}
		return m, m.fetch(false)

	case refreshTickMsg:
		return m, tea.Batch(m.fetch(false), m.refreshTick())

	case recoverTickMsg:
		next := m.recoverTick()
		if m.busy || !m.connected {
			return m, next
		}
		m.busy = true
		return m, tea.Batch(m.recover(0, "periodic recovery"), next)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress &&
			(msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown) {
			return m, m.scroll()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil

		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil

		case "1":
			m.activeTab = TabVisible
			return m, nil
		case "2":
			m.activeTab = TabHidden
			return m, nil
		case "3":
			m.activeTab = TabAlwaysHidden
			return m, nil

		case "f":
			return m, m.fetch(true)

		case "r":
			return m, m.startAction(m.recover(0, "recover all"))
		case "o":
			return m, m.startAction(m.recover(1, "recover one"))

		case "enter":
			if it, ok := m.selected(); ok {
				return m, m.startAction(m.click(it))
			}
			return m, nil

		case "v", "h", "a":
			it, ok := m.selected()
			if !ok {
				return m, nil
			}
			to := map[string]menubar.Region{
				"v": menubar.RegionVisible,
				"h": menubar.RegionHidden,
				"a": menubar.RegionAlwaysHidden,
			}[msg.String()]
			if to.String() == it.info.Region {
				return m, nil
			}
			return m, m.startAction(m.move(it, to))
		}
	}

	var cmd tea.Cmd
	m.lists[m.activeTab], cmd = m.lists[m.activeTab].Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var counts [tabCount]int
	for t := range m.lists {
		counts[t] = len(m.lists[t].Items())
	}

	statusBar := renderStatusBar(m.connected, m.status, m.width)
	strip := renderStrip(m.items, m.width)
	tabBar := renderTabBar(m.activeTab, counts, m.width)
	message := renderMessage(m.message, m.isErr, m.width)
	helpBar := renderHelpBar(m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(strip) + lipgloss.Height(tabBar) +
		lipgloss.Height(message) + lipgloss.Height(helpBar)
	l := m.lists[m.activeTab]
	l.SetSize(m.width, max(m.height-usedHeight, 1))

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		strip,
		tabBar,
		l.View(),
		message,
		helpBar,
	)
}
