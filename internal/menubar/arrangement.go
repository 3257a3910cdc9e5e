package menubar

import "sync"

// Arrangement is the in-memory layout model: the left-to-right order of
// items as last observed, plus any optimistic moves applied on top of it.
// A refresh replaces it.
type Arrangement struct {
	mu    sync.Mutex
	order []Item
}

// Reset replaces the order.
func (a *Arrangement) Reset(order []Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order = append([]Item(nil), order...)
}

// Order returns a copy of the current left-to-right order.
func (a *Arrangement) Order() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Item(nil), a.order...)
}

// Region returns the items the model currently places in r.
func (a *Arrangement) Region(r Region) []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	return regionsByOrder(a.order)[r]
}

// Width returns the summed width of r in the model.
func (a *Arrangement) Width(r Region) int {
	return RegionWidth(a.Region(r))
}

// RegionOf returns the region the model places key in.
func (a *Arrangement) RegionOf(key IdentityKey) (Region, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, it := range a.order {
		if it.Key() == key {
			return regionAt(a.order, i), true
		}
	}
	return 0, false
}

// Move applies dest to the model and returns a function restoring the
// previous order. Restoring is a no-op if the model was reset since.
func (a *Arrangement) Move(item Item, dest Destination) (restore func(), err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := item.Key()
	anchorKey := dest.Anchor.Key()
	if key == anchorKey {
		return func() {}, nil
	}

	prev := append([]Item(nil), a.order...)
	without := make([]Item, 0, len(a.order)+1)
	for _, it := range a.order {
		if it.Key() != key {
			without = append(without, it)
		}
	}

	anchorIdx := -1
	for i, it := range without {
		if it.Key() == anchorKey {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return func() {}, &UnresolvedError{Key: anchorKey}
	}

	insertAt := anchorIdx
	if dest.Side == SideRight {
		insertAt = anchorIdx + 1
	}
	next := make([]Item, 0, len(without)+1)
	next = append(next, without[:insertAt]...)
	next = append(next, item)
	next = append(next, without[insertAt:]...)
	a.order = next

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if sameOrder(a.order, next) {
				a.order = prev
			}
		})
	}, nil
}

// DestinationRegion returns the region an item lands in for dest, given the
// model's current placement of the anchor.
func (a *Arrangement) DestinationRegion(dest Destination) (Region, bool) {
	switch dest.Anchor.Kind {
	case KindHiddenControl:
		if dest.Side == SideLeft {
			return RegionHidden, true
		}
		return RegionVisible, true
	case KindAlwaysHiddenControl:
		if dest.Side == SideLeft {
			return RegionAlwaysHidden, true
		}
		return RegionHidden, true
	}
	return a.RegionOf(dest.Anchor.Key())
}

func sameOrder(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}
