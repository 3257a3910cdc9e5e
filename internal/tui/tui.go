// Package tui is an interactive view of the bar: items per region, a
// one-line strip mirroring the bar's order, and shortcuts for the daemon's
// item operations. Scrolling over it asks the daemon for a recovery pass,
// and it triggers one periodically while open.
package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/recovery"
)

const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultRecoverInterval = 30 * time.Second
)

// Daemon is the subset of the IPC client the TUI calls.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	ListItems(refresh bool) (*ipc.ItemsData, error)
	MoveItem(payload ipc.MoveItemPayload) (*ipc.MoveData, error)
	ClickItem(item ipc.ItemRef, button string) (*ipc.ClickData, error)
	Recover(limit int) (*recovery.Result, error)
	Scroll() (*recovery.Result, error)
}

// Options tune the TUI. Zero values use the defaults; a negative
// RecoverInterval disables periodic recovery.
type Options struct {
	RefreshInterval time.Duration
	RecoverInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.RecoverInterval == 0 {
		o.RecoverInterval = DefaultRecoverInterval
	}
	return o
}

// Run starts the TUI and blocks until the user quits.
func Run(d Daemon, opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	p := tea.NewProgram(newModel(d, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
