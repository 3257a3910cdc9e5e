// Package hotkeys binds the global recovery shortcuts.
package hotkeys

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/tuck/internal/recovery"
)

// Recoverer runs a user recovery pass.
type Recoverer interface {
	Recover(ctx context.Context, limit int) recovery.Result
}

// Binding ties a key sequence to a recovery limit. Limit zero restores
// every missing item.
type Binding struct {
	Name  string
	Keys  string
	Limit int
}

// Bindings returns the recover-all and recover-one bindings, skipping
// empty key sequences.
func Bindings(recoverAll, recoverOne string) []Binding {
	var out []Binding
	if recoverAll != "" {
		out = append(out, Binding{Name: "recover-all", Keys: recoverAll, Limit: 0})
	}
	if recoverOne != "" {
		out = append(out, Binding{Name: "recover-one", Keys: recoverOne, Limit: 1})
	}
	return out
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	target Recoverer
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler on xu's root window.
func NewHandler(xu *xgbutil.XUtil, target Recoverer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})
	return &Handler{
		xu:     xu,
		root:   xu.RootWin(),
		target: target,
		logger: logger,
	}
}

// Register replaces any previous bindings with bs.
func (h *Handler) Register(bs []Binding) error {
	keybind.Detach(h.xu, h.root)
	for _, b := range bs {
		b := b
		if err := h.RegisterFunc(b.Keys, func() { h.fire(b) }); err != nil {
			return fmt.Errorf("failed to register %s hotkey %q: %w", b.Name, b.Keys, err)
		}
		h.logger.Info("hotkey registered", "name", b.Name, "keys", b.Keys)
	}
	return nil
}

// fire runs the recovery off the event loop, which must keep turning while
// the pointer is driven. Presses during a running pass are dropped.
func (h *Handler) fire(b Binding) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
		}()
		res := h.target.Recover(context.Background(), b.Limit)
		h.logger.Debug("hotkey recovery finished",
			"name", b.Name, "attempted", res.Attempted, "still_missing", res.StillMissing, "reason", res.Reason)
	}()
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}
	xevent.IgnoreMods = ignoreMasks(base)
}

// ignoreMasks returns every combination of the lock masks in base,
// including the empty one.
func ignoreMasks(base []uint16) []uint16 {
	unique := map[uint16]struct{}{0: {}}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	sort.Slice(ignore, func(i, j int) bool { return ignore[i] < ignore[j] })
	return ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
