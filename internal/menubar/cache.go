package menubar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/1broseidon/tuck/internal/platform"
)

// DefaultFreshness is how long a snapshot satisfies a non-forced refresh.
const DefaultFreshness = 500 * time.Millisecond

// Snapshot is an immutable view of the bar at one refresh. Callers must not
// modify the slices it holds.
type Snapshot struct {
	Order    []Item
	Regions  map[Region][]Item
	Controls map[Kind]Item
	Taken    time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Regions:  map[Region][]Item{},
		Controls: map[Kind]Item{},
	}
}

// Find locates key in any region.
func (s *Snapshot) Find(key IdentityKey) (Item, Region, bool) {
	if key.Kind.IsControl() {
		it, ok := s.Controls[key.Kind]
		return it, RegionVisible, ok
	}
	for _, r := range Regions {
		for _, it := range s.Regions[r] {
			if it.Key() == key {
				return it, r, true
			}
		}
	}
	return Item{}, 0, false
}

// Keys returns the identity keys present in r.
func (s *Snapshot) Keys(r Region) KeySet {
	set := make(KeySet, len(s.Regions[r]))
	for _, it := range s.Regions[r] {
		set[it.Key()] = struct{}{}
	}
	return set
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Freshness       time.Duration
	ProviderTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// Cache holds the latest classified snapshot of the bar. Reads never block;
// refreshes replace the snapshot wholesale.
type Cache struct {
	provider  platform.Enumerator
	freshness time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group

	seq       atomic.Uint64
	applyMu   sync.Mutex
	appliedAt uint64

	arrangement *Arrangement
}

// NewCache creates an empty cache over provider.
func NewCache(provider platform.Enumerator, cfg CacheConfig) *Cache {
	freshness := cfg.Freshness
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	c := &Cache{
		provider:    provider,
		freshness:   freshness,
		timeout:     cfg.ProviderTimeout,
		logger:      logger,
		now:         now,
		arrangement: &Arrangement{},
	}
	c.snap.Store(emptySnapshot())
	return c
}

// Refresh re-queries the provider unless the current snapshot is younger
// than the freshness window. force bypasses the window and never shares an
// enumeration that started before the call.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	if !force {
		if cur := c.snap.Load(); !cur.Taken.IsZero() && c.now().Sub(cur.Taken) < c.freshness {
			return nil
		}
		_, err, _ := c.group.Do("refresh", func() (any, error) {
			return nil, c.rebuild(ctx)
		})
		return err
	}
	return c.rebuild(ctx)
}

func (c *Cache) rebuild(ctx context.Context) error {
	seq := c.seq.Add(1)

	windows, err := CallWithTimeout(ctx, c.timeout, func() ([]platform.Window, error) {
		return c.provider.ListWindows(false, true)
	})
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}

	items := make([]Item, 0, len(windows))
	for _, w := range windows {
		if w.Layer != platform.LayerStatus {
			continue
		}
		items = append(items, ItemFromWindow(w))
	}
	order, regions, controls := classify(items)
	next := &Snapshot{
		Order:    order,
		Regions:  regions,
		Controls: controls,
		Taken:    c.now(),
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if seq < c.appliedAt {
		// A refresh that started later already landed.
		return nil
	}
	c.appliedAt = seq
	c.snap.Store(next)
	c.arrangement.Reset(order)

	c.logger.Debug("item cache refreshed",
		"visible", len(regions[RegionVisible]),
		"hidden", len(regions[RegionHidden]),
		"always_hidden", len(regions[RegionAlwaysHidden]))
	return nil
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Items returns a copy of the items in r.
func (c *Cache) Items(r Region) []Item {
	return append([]Item(nil), c.snap.Load().Regions[r]...)
}

// LastRefreshed returns when the current snapshot was taken.
func (c *Cache) LastRefreshed() time.Time {
	return c.snap.Load().Taken
}

// Find locates key in the current snapshot.
func (c *Cache) Find(key IdentityKey) (Item, Region, bool) {
	return c.snap.Load().Find(key)
}

// Control returns the control item of the given kind.
func (c *Cache) Control(kind Kind) (Item, bool) {
	it, ok := c.snap.Load().Controls[kind]
	return it, ok
}

// Arrangement returns the in-memory layout model derived from the latest
// snapshot.
func (c *Cache) Arrangement() *Arrangement {
	return c.arrangement
}

// Clear drops the snapshot so the next refresh always queries the provider.
func (c *Cache) Clear() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.snap.Store(emptySnapshot())
	c.arrangement.Reset(nil)
}

// Missing returns the keys of expected that are not in the hidden region.
func (c *Cache) Missing(expected KeySet) []IdentityKey {
	hidden := c.snap.Load().Keys(RegionHidden)
	var out []IdentityKey
	for k := range expected {
		if !hidden.Has(k) {
			out = append(out, k)
		}
	}
	SortKeys(out)
	return out
}

// MissingCount returns |expected| minus the expected keys present in the
// hidden region, never below zero.
func (c *Cache) MissingCount(expected KeySet) int {
	hidden := c.snap.Load().Keys(RegionHidden)
	present := 0
	for k := range hidden {
		if expected.Has(k) {
			present++
		}
	}
	n := len(expected) - present
	if n < 0 {
		return 0
	}
	return n
}
