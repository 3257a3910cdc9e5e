package relocate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/platform/fakebar"
	"github.com/1broseidon/tuck/internal/relocate"
)

type fixture struct {
	bar    *fakebar.Bar
	cache  *menubar.Cache
	engine *relocate.Engine
}

func newFixture(t *testing.T, bar *fakebar.Bar, freshness time.Duration) *fixture {
	t.Helper()
	cache := menubar.NewCache(bar, menubar.CacheConfig{Freshness: freshness})
	engine := relocate.NewEngine(relocate.Deps{
		Cache:    cache,
		Provider: bar,
		Pointer:  bar,
		Bar:      bar,
	}, relocate.Config{Steps: 4})
	require.NoError(t, cache.Refresh(context.Background(), true))
	return &fixture{bar: bar, cache: cache, engine: engine}
}

func (f *fixture) find(t *testing.T, owner, title string) (menubar.Item, menubar.Region) {
	t.Helper()
	it, r, ok := f.cache.Find(menubar.IdentityKey{Owner: owner, Title: title})
	require.True(t, ok, "%s/%s not found", owner, title)
	return it, r
}

func (f *fixture) control(t *testing.T) menubar.Item {
	t.Helper()
	ctl, ok := f.cache.Control(menubar.KindHiddenControl)
	require.True(t, ok)
	return ctl
}

func simpleBar() *fakebar.Bar {
	bar := fakebar.New()
	bar.AddItem("com.app.h", "h", 10, 24)
	bar.AddControl(platform.SectionHidden)
	bar.AddItem("com.app.v1", "v1", 11, 30)
	bar.AddItem("com.app.v2", "v2", 12, 40)
	return bar
}

func TestRelocate_VisibleToHidden(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	ctx := context.Background()
	v1, _ := f.find(t, "com.app.v1", "v1")

	require.NoError(t, f.engine.Relocate(ctx, v1, menubar.LeftOf(f.control(t))))
	require.NoError(t, f.cache.Refresh(ctx, true))

	_, region := f.find(t, "com.app.v1", "v1")
	assert.Equal(t, menubar.RegionHidden, region)
	assert.Equal(t, []string{"h", "v1", menubar.HiddenControlTitle, "v2"}, f.bar.Titles())
}

func TestRelocate_HiddenToVisible(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	ctx := context.Background()
	h, _ := f.find(t, "com.app.h", "h")

	require.NoError(t, f.engine.Relocate(ctx, h, menubar.RightOf(f.control(t))))
	require.NoError(t, f.cache.Refresh(ctx, true))

	_, region := f.find(t, "com.app.h", "h")
	assert.Equal(t, menubar.RegionVisible, region)
	assert.Equal(t, []string{menubar.HiddenControlTitle, "h", "v1", "v2"}, f.bar.Titles())
}

func TestRelocate_RestoresPointerAndReleasesLock(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	start, err := f.bar.Location()
	require.NoError(t, err)
	v2, _ := f.find(t, "com.app.v2", "v2")

	require.NoError(t, f.engine.Relocate(context.Background(), v2, menubar.LeftOf(f.control(t))))

	end, err := f.bar.Location()
	require.NoError(t, err)
	assert.Equal(t, start, end)
	assert.Equal(t, 0, f.engine.Lock().Depth())
	assert.True(t, f.bar.CursorVisible())
	assert.True(t, f.bar.Associated())

	events := f.bar.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, fakebar.EventCursorHidden, events[0].Kind)
	assert.Equal(t, fakebar.EventCursorShown, events[len(events)-1].Kind)
}

func TestRelocate_WidthBudgetRejectsWithoutInput(t *testing.T) {
	bar := fakebar.New()
	bar.AddItem("com.app.x", "x", 9, 30)
	bar.AddControl(platform.SectionHidden)
	for i, title := range []string{"a", "b", "c", "d"} {
		bar.AddItem("com.app."+title, title, 20+i, 160)
	}
	f := newFixture(t, bar, time.Millisecond)
	ctx := context.Background()
	require.Equal(t, 640, menubar.RegionWidth(f.cache.Items(menubar.RegionVisible)))

	x, _ := f.find(t, "com.app.x", "x")
	err := f.engine.Relocate(ctx, x, menubar.RightOf(f.control(t)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, menubar.ErrCapacityExceeded))

	var capErr *menubar.CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 670, capErr.Width)
	assert.Equal(t, relocate.DefaultMaxVisibleWidth, capErr.Limit)

	assert.Equal(t, 0, bar.InputEvents())
	assert.Equal(t, 640, f.cache.Arrangement().Width(menubar.RegionVisible))
	require.NoError(t, f.cache.Refresh(ctx, true))
	assert.Equal(t, 640, menubar.RegionWidth(f.cache.Items(menubar.RegionVisible)))
}

func TestRelocate_WidthBudgetIgnoresMovesWithinVisible(t *testing.T) {
	bar := fakebar.New()
	bar.AddControl(platform.SectionHidden)
	bar.AddItem("com.app.a", "a", 1, 400)
	bar.AddItem("com.app.b", "b", 2, 400)
	f := newFixture(t, bar, time.Millisecond)

	b, _ := f.find(t, "com.app.b", "b")
	a, _ := f.find(t, "com.app.a", "a")
	require.NoError(t, f.engine.Relocate(context.Background(), b, menubar.LeftOf(a)))
	assert.Equal(t, []string{menubar.HiddenControlTitle, "b", "a"}, bar.Titles())
}

func TestRelocate_ExpandsAndRecollapsesHiddenSection(t *testing.T) {
	bar := simpleBar()
	bar.SetSectionHidden(platform.SectionHidden, true)
	f := newFixture(t, bar, time.Millisecond)
	ctx := context.Background()
	v1, _ := f.find(t, "com.app.v1", "v1")

	require.NoError(t, f.engine.Relocate(ctx, v1, menubar.LeftOf(f.control(t))))

	assert.True(t, bar.SectionState(platform.SectionHidden).Hidden)
	require.NoError(t, f.cache.Refresh(ctx, true))
	_, region := f.find(t, "com.app.v1", "v1")
	assert.Equal(t, menubar.RegionHidden, region)
}

func TestRelocate_ResolvesChurnedWindow(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Hour)
	ctx := context.Background()
	v1, _ := f.find(t, "com.app.v1", "v1")

	f.bar.ChurnWindowID("com.app.v1", "v1")
	require.NoError(t, f.engine.Relocate(ctx, v1, menubar.LeftOf(f.control(t))))
	assert.Equal(t, []string{"h", "v1", menubar.HiddenControlTitle, "v2"}, f.bar.Titles())
}

func TestRelocate_SupersededMidDragDropsBackAndCommitsNothing(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	ctx := context.Background()
	before := f.bar.Titles()
	v2, _ := f.find(t, "com.app.v2", "v2")

	superseded := false
	f.bar.OnEvent(func(ev fakebar.Event) {
		if ev.Kind == fakebar.EventDrag && !superseded {
			superseded = true
			f.engine.Submit()
		}
	})

	err := f.engine.Relocate(ctx, v2, menubar.LeftOf(f.control(t)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, menubar.ErrCancelled))

	assert.Equal(t, before, f.bar.Titles())
	assert.Equal(t, 0, f.engine.Lock().Depth())
	assert.True(t, f.bar.CursorVisible())
	assert.True(t, f.bar.Associated())

	events := f.bar.Events()
	var last fakebar.Event
	for _, ev := range events {
		if ev.Kind == fakebar.EventRelease {
			last = ev
		}
	}
	assert.Equal(t, fakebar.EventRelease, last.Kind, "button must not be left held")

	order := f.cache.Arrangement().Order()
	snap := f.cache.Snapshot().Order
	require.Len(t, order, len(snap))
	for i := range order {
		assert.Equal(t, snap[i].Key(), order[i].Key())
	}
}

func TestRelocate_StaleTicketSendsNoInput(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	v1, _ := f.find(t, "com.app.v1", "v1")

	stale := f.engine.Submit()
	f.engine.Submit()

	err := f.engine.RelocateTicket(context.Background(), stale, v1, menubar.LeftOf(f.control(t)))
	assert.True(t, errors.Is(err, menubar.ErrCancelled))
	assert.Equal(t, 0, f.bar.InputEvents())
}

func TestPause_ReturnsWhenSuperseded(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	tk := f.engine.Submit()

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.engine.Submit()
	}()

	start := time.Now()
	err := f.engine.Pause(context.Background(), tk, 5*time.Second)
	assert.True(t, errors.Is(err, menubar.ErrCancelled))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPause_FullDelayWhileCurrent(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	tk := f.engine.Submit()

	start := time.Now()
	require.NoError(t, f.engine.Pause(context.Background(), tk, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRelocate_CancelledContext(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	v1, _ := f.find(t, "com.app.v1", "v1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.engine.Relocate(ctx, v1, menubar.LeftOf(f.control(t)))
	assert.True(t, errors.Is(err, menubar.ErrCancelled))
	assert.Equal(t, 0, f.bar.InputEvents())
}

func TestRelocate_UnknownAnchor(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	v1, _ := f.find(t, "com.app.v1", "v1")
	ghost := menubar.Item{Owner: "com.app.ghost", Title: "ghost"}

	err := f.engine.Relocate(context.Background(), v1, menubar.LeftOf(ghost))
	assert.True(t, errors.Is(err, menubar.ErrIdentityUnresolved))
	assert.Equal(t, 0, f.bar.InputEvents())
}

func TestRelocate_OntoItselfIsNoop(t *testing.T) {
	f := newFixture(t, simpleBar(), time.Millisecond)
	v1, _ := f.find(t, "com.app.v1", "v1")

	require.NoError(t, f.engine.Relocate(context.Background(), v1, menubar.RightOf(v1)))
	assert.Equal(t, 0, f.bar.InputEvents())
}
