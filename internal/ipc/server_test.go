package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tuck/internal/config"
	"github.com/1broseidon/tuck/internal/ledger"
	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/platform/fakebar"
	"github.com/1broseidon/tuck/internal/relocate"
)

type harness struct {
	server *Server
	client *Client
	ledger *ledger.Ledger
	bar    *fakebar.Bar
	reload chan struct{}
}

func newHarness(t *testing.T, loader func() (*config.Config, error)) *harness {
	t.Helper()

	// Unix socket paths are length limited, so avoid the long t.TempDir.
	dir, err := os.MkdirTemp("", "tuck-ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	bar := fakebar.New()
	bar.AddItem("com.app.h", "h", 10, 24)
	bar.AddControl(platform.SectionHidden)
	bar.AddItem("com.app.X", "X", 11, 30)
	bar.AddItem("com.app.v", "v", 12, 40)

	l := ledger.New(filepath.Join(dir, "hidden-items.json"))
	l.Replace(menubar.NewKeySet(menubar.IdentityKey{Owner: "com.app.h", Title: "h"}))
	mgr := manager.New(manager.Deps{Provider: bar, Pointer: bar, Bar: bar, Ledger: l}, manager.Config{
		Cache:    menubar.CacheConfig{Freshness: time.Millisecond},
		Relocate: relocate.Config{Steps: 4, MaxVisibleWidth: 80},
	})

	if loader == nil {
		loader = func() (*config.Config, error) { return config.DefaultConfig(), nil }
	}
	reload := make(chan struct{}, 1)
	srv, err := NewServer(config.DefaultConfig(), mgr, reload, ServerOptions{
		SocketPath: filepath.Join(dir, "tuck.sock"),
		LoadConfig: loader,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return &harness{
		server: srv,
		client: NewClientWithPath(srv.SocketPath()),
		ledger: l,
		bar:    bar,
		reload: reload,
	}
}

func TestServer_GetStatus(t *testing.T) {
	h := newHarness(t, nil)

	st, err := h.client.GetStatus()
	require.NoError(t, err)
	assert.True(t, st.DaemonRunning)
	assert.Equal(t, 1, st.LedgerSize)
	assert.Equal(t, 0, st.MissingCount)
	assert.Equal(t, 80, st.MaxVisibleWidth)
	assert.Equal(t, 2, st.Regions["visible"].Count)
	assert.Equal(t, 70, st.Regions["visible"].Width)
	assert.Equal(t, "idle", st.RecoveryState)
}

func TestServer_ListItems(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.Replace(menubar.NewKeySet(
		menubar.IdentityKey{Owner: "com.app.h", Title: "h"},
		menubar.IdentityKey{Owner: "com.app.gone", Title: "gone"},
	))

	data, err := h.client.ListItems(true)
	require.NoError(t, err)

	byTitle := map[string]ItemInfo{}
	for _, it := range data.Items {
		byTitle[it.Title] = it
	}
	require.Contains(t, byTitle, "h")
	assert.Equal(t, "hidden", byTitle["h"].Region)
	assert.True(t, byTitle["h"].Expected)
	assert.Equal(t, 24, byTitle["h"].Width)
	assert.Equal(t, "visible", byTitle["X"].Region)
	assert.False(t, byTitle["X"].Expected)

	assert.Equal(t, []ItemRef{{Owner: "com.app.gone", Title: "gone"}}, data.Missing)
}

func TestServer_MoveItemToRegion(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.client.MoveItem(MoveItemPayload{Item: ItemRef{Title: "X"}, To: "hidden"})
	require.NoError(t, err)
	assert.Equal(t, "visible", res.From)
	assert.Equal(t, "hidden", res.To)
	assert.Equal(t, ItemRef{Owner: "com.app.X", Title: "X"}, res.Item)

	assert.True(t, h.ledger.Contains(menubar.IdentityKey{Owner: "com.app.X", Title: "X"}))
}

func TestServer_MoveItemNextToAnchor(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.client.MoveItem(MoveItemPayload{
		Item:   ItemRef{Owner: "com.app.v"},
		Anchor: &ItemRef{Title: "h"},
		Side:   "left",
	})
	require.NoError(t, err)
	assert.Equal(t, "hidden", res.To)
	assert.Equal(t, []string{"v", "h", menubar.HiddenControlTitle, "X"}, h.bar.Titles())
}

func TestServer_CapacityErrorCrossesTheSocket(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.client.MoveItem(MoveItemPayload{Item: ItemRef{Title: "h"}, To: "visible"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, menubar.ErrCapacityExceeded))

	var de *DaemonError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, CodeCapacityExceeded, de.Code)
	assert.Equal(t, 0, h.bar.InputEvents())
}

func TestServer_UnresolvedAndInvalidRequests(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.client.MoveItem(MoveItemPayload{Item: ItemRef{Title: "nope"}, To: "hidden"})
	assert.True(t, errors.Is(err, menubar.ErrIdentityUnresolved))

	_, err = h.client.MoveItem(MoveItemPayload{Item: ItemRef{Title: "X"}, To: "sideways"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = h.client.MoveItem(MoveItemPayload{Item: ItemRef{Title: "X"}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = h.client.ClickItem(ItemRef{Title: "X"}, "fourth")
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = h.client.sendRequest(&Request{Command: "EXPLODE"}, 0)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestServer_AmbiguousReference(t *testing.T) {
	h := newHarness(t, nil)
	h.bar.AddItem("org.other", "X", 13, 10)

	_, err := h.client.ClickItem(ItemRef{Title: "X"}, "")
	assert.True(t, errors.Is(err, manager.ErrAmbiguous))
}

func TestServer_ClickItem(t *testing.T) {
	h := newHarness(t, nil)
	h.bar.SetMenuOnClick("com.app.v", "v")

	res, err := h.client.ClickItem(ItemRef{Title: "v"}, "left")
	require.NoError(t, err)
	assert.True(t, res.MenuOpened)
	assert.NotZero(t, res.MenuWindow)
}

func TestServer_RecoverAndHardReset(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.Replace(menubar.NewKeySet(
		menubar.IdentityKey{Owner: "com.app.h", Title: "h"},
		menubar.IdentityKey{Owner: "com.app.X", Title: "X"},
	))

	res, err := h.client.Recover(0)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 0, res.StillMissing)
	assert.NotEmpty(t, res.RunID)

	n, err := h.client.HardReset()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, h.ledger.Len())
}

func TestServer_Reload(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxVisibleWidth = 500
	h := newHarness(t, func() (*config.Config, error) { return cfg, nil })

	require.NoError(t, h.client.Reload())
	select {
	case <-h.reload:
	case <-time.After(time.Second):
		t.Fatal("reload was not signalled")
	}
	assert.Equal(t, 500, h.server.GetConfig().MaxVisibleWidth)
}

func TestServer_ReloadFailureKeepsConfig(t *testing.T) {
	h := newHarness(t, func() (*config.Config, error) { return nil, errors.New("bad yaml") })
	before := h.server.GetConfig()

	err := h.client.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")
	assert.Same(t, before, h.server.GetConfig())
	assert.Empty(t, h.reload)
}

func TestServer_StopRemovesSocket(t *testing.T) {
	h := newHarness(t, nil)
	h.server.Stop()

	_, err := os.Stat(h.server.SocketPath())
	assert.True(t, os.IsNotExist(err))

	_, err = h.client.GetStatus()
	assert.Error(t, err)
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, CodeCancelled, CodeFor(menubar.ErrCancelled))
	assert.Equal(t, CodeIdentityUnresolved, CodeFor(&menubar.UnresolvedError{}))
	assert.Equal(t, CodeInternal, CodeFor(context.DeadlineExceeded))
}
