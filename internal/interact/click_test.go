package interact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tuck/internal/interact"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/platform/fakebar"
	"github.com/1broseidon/tuck/internal/relocate"
)

func setup(t *testing.T) (*fakebar.Bar, *interact.Engine, *relocate.Engine) {
	t.Helper()
	bar := fakebar.New()
	bar.AddItem("com.app.h", "h", 10, 24)
	bar.AddControl(platform.SectionHidden)
	bar.AddItem("com.app.v1", "v1", 11, 30)
	bar.AddItem("com.app.v2", "v2", 12, 40)

	cache := menubar.NewCache(bar, menubar.CacheConfig{Freshness: time.Millisecond})
	mover := relocate.NewEngine(relocate.Deps{
		Cache:    cache,
		Provider: bar,
		Pointer:  bar,
		Bar:      bar,
	}, relocate.Config{Steps: 4})
	clicker := interact.NewEngine(cache, bar, bar, bar, mover, interact.Config{
		PollInterval: 5 * time.Millisecond,
		PopupTimeout: 60 * time.Millisecond,
	})
	return bar, clicker, mover
}

func countKind(events []fakebar.Event, kind fakebar.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestClick_MovesNextToHiddenControlAndDetectsMenu(t *testing.T) {
	bar, clicker, mover := setup(t)
	bar.SetMenuOnClick("com.app.v1", "v1")
	key := menubar.IdentityKey{Owner: "com.app.v1", Title: "v1"}

	res, err := clicker.Click(context.Background(), key, platform.ButtonLeft)
	require.NoError(t, err)

	assert.True(t, res.MenuOpened)
	require.NotNil(t, res.Menu)
	assert.Equal(t, 11, res.Menu.PID)
	assert.Equal(t, platform.LayerPopupMenu, res.Menu.Layer)

	assert.Equal(t, []string{"h", "v1", menubar.HiddenControlTitle, "v2"}, bar.Titles())
	assert.Equal(t, []menubar.IdentityKey{key}, bar.Clicks())
	assert.GreaterOrEqual(t, bar.OverlaysClosed(), 1)
	assert.Equal(t, 0, mover.Lock().Depth())
	assert.True(t, bar.CursorVisible())
}

func TestClick_NoMenuIsNotAnError(t *testing.T) {
	bar, clicker, _ := setup(t)
	key := menubar.IdentityKey{Owner: "com.app.v2", Title: "v2"}

	res, err := clicker.Click(context.Background(), key, platform.ButtonRight)
	require.NoError(t, err)
	assert.False(t, res.MenuOpened)
	assert.Nil(t, res.Menu)
	assert.Equal(t, []menubar.IdentityKey{key}, bar.Clicks())
}

func TestClick_AlreadyAdjacentSkipsDrag(t *testing.T) {
	bar, clicker, _ := setup(t)
	key := menubar.IdentityKey{Owner: "com.app.h", Title: "h"}

	_, err := clicker.Click(context.Background(), key, platform.ButtonLeft)
	require.NoError(t, err)
	assert.Equal(t, 0, countKind(bar.Events(), fakebar.EventDrag))
	assert.Equal(t, []menubar.IdentityKey{key}, bar.Clicks())
}

func TestClick_ShowsCollapsedHiddenSection(t *testing.T) {
	bar, clicker, _ := setup(t)
	bar.SetSectionHidden(platform.SectionHidden, true)
	key := menubar.IdentityKey{Owner: "com.app.h", Title: "h"}

	_, err := clicker.Click(context.Background(), key, platform.ButtonLeft)
	require.NoError(t, err)
	assert.False(t, bar.SectionState(platform.SectionHidden).Hidden)
	assert.Equal(t, []menubar.IdentityKey{key}, bar.Clicks())
}

func TestClick_UnknownItem(t *testing.T) {
	bar, clicker, _ := setup(t)
	_, err := clicker.Click(context.Background(), menubar.IdentityKey{Owner: "nope", Title: "nope"}, platform.ButtonLeft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, menubar.ErrIdentityUnresolved))
	assert.Empty(t, bar.Clicks())
}

func TestClick_OpenMenusAreClosedFirst(t *testing.T) {
	bar, clicker, _ := setup(t)
	bar.SetMenuOnClick("com.app.h", "h")
	key := menubar.IdentityKey{Owner: "com.app.h", Title: "h"}
	ctx := context.Background()

	first, err := clicker.Click(ctx, key, platform.ButtonLeft)
	require.NoError(t, err)
	require.True(t, first.MenuOpened)

	second, err := clicker.Click(ctx, key, platform.ButtonLeft)
	require.NoError(t, err)
	require.True(t, second.MenuOpened)
	assert.NotEqual(t, first.Menu.ID, second.Menu.ID)

	windows, err := bar.ListWindows(true, false)
	require.NoError(t, err)
	popups := 0
	for _, w := range windows {
		if w.Layer == platform.LayerPopupMenu {
			popups++
		}
	}
	assert.Equal(t, 1, popups)
}

func TestClick_SlowPollDoesNotOutlastPopupTimeout(t *testing.T) {
	bar, clicker, _ := setup(t)
	bar.OnEvent(func(ev fakebar.Event) {
		if ev.Kind == fakebar.EventRelease {
			bar.SetListDelay(2 * time.Second)
		}
	})
	key := menubar.IdentityKey{Owner: "com.app.h", Title: "h"}

	start := time.Now()
	res, err := clicker.Click(context.Background(), key, platform.ButtonLeft)
	require.NoError(t, err)
	assert.False(t, res.MenuOpened)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []menubar.IdentityKey{key}, bar.Clicks())
}

func TestClick_ItemOnAnotherDesktop(t *testing.T) {
	bar, clicker, _ := setup(t)
	key := menubar.IdentityKey{Owner: "com.app.h", Title: "h"}
	windows, err := bar.ListWindows(false, false)
	require.NoError(t, err)
	var id platform.WindowID
	for _, w := range windows {
		if w.Owner == key.Owner && w.Title == key.Title {
			id = w.ID
		}
	}
	require.NotZero(t, id)

	// The window moves to another desktop after the item was resolved.
	bar.OnEvent(func(ev fakebar.Event) {
		if ev.Kind == fakebar.EventCursorHidden {
			bar.SetOffSpace(id, true)
		}
	})

	_, err = clicker.Click(context.Background(), key, platform.ButtonLeft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interact.ErrOffDesktop))
	assert.Empty(t, bar.Clicks())
	assert.True(t, bar.CursorVisible())
}
