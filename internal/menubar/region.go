package menubar

import (
	"fmt"
	"sort"

	"github.com/1broseidon/tuck/internal/platform"
)

// Region is one of the three groupings items are partitioned into. Reading
// the bar left to right: always-hidden items, the always-hidden control,
// hidden items, the hidden control, visible items.
type Region int

const (
	RegionVisible Region = iota
	RegionHidden
	RegionAlwaysHidden
)

// Regions lists every region in display order, right to left.
var Regions = []Region{RegionVisible, RegionHidden, RegionAlwaysHidden}

// String returns the region name.
func (r Region) String() string {
	switch r {
	case RegionVisible:
		return "visible"
	case RegionHidden:
		return "hidden"
	case RegionAlwaysHidden:
		return "always-hidden"
	default:
		return "unknown"
	}
}

// ParseRegion maps a region name to a Region.
func ParseRegion(name string) (Region, error) {
	switch name {
	case "visible":
		return RegionVisible, nil
	case "hidden":
		return RegionHidden, nil
	case "always-hidden", "always_hidden", "alwayshidden":
		return RegionAlwaysHidden, nil
	default:
		return 0, fmt.Errorf("unknown region %q", name)
	}
}

func (r Region) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Region) UnmarshalText(b []byte) error {
	v, err := ParseRegion(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ControlKind returns the kind of the control item bounding r. The visible
// region has none.
func (r Region) ControlKind() (Kind, bool) {
	switch r {
	case RegionHidden:
		return KindHiddenControl, true
	case RegionAlwaysHidden:
		return KindAlwaysHiddenControl, true
	default:
		return KindNormal, false
	}
}

// Section returns the collapsible bar section backing r.
func (r Region) Section() (platform.Section, bool) {
	switch r {
	case RegionHidden:
		return platform.SectionHidden, true
	case RegionAlwaysHidden:
		return platform.SectionAlwaysHidden, true
	default:
		return 0, false
	}
}

// Side selects which edge of the anchor a moved item lands on.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left-of"
	}
	return "right-of"
}

// ParseSide accepts "left", "left-of", "right" and "right-of".
func ParseSide(name string) (Side, error) {
	switch name {
	case "left", "left-of":
		return SideLeft, nil
	case "right", "right-of":
		return SideRight, nil
	default:
		return 0, fmt.Errorf("unknown side %q", name)
	}
}

// Destination is a position adjacent to an anchor item.
type Destination struct {
	Anchor Item
	Side   Side
}

// LeftOf places an item immediately left of anchor.
func LeftOf(anchor Item) Destination { return Destination{Anchor: anchor, Side: SideLeft} }

// RightOf places an item immediately right of anchor.
func RightOf(anchor Item) Destination { return Destination{Anchor: anchor, Side: SideRight} }

func (d Destination) String() string {
	return d.Side.String() + " " + d.Anchor.Key().String()
}

// classify orders items left to right and splits them by position relative
// to the control items. Items sharing an identity key keep only the
// leftmost occurrence.
func classify(items []Item) (order []Item, regions map[Region][]Item, controls map[Kind]Item) {
	order = make([]Item, 0, len(items))
	controls = make(map[Kind]Item, 2)
	seen := make(map[IdentityKey]struct{}, len(items))

	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Frame, sorted[j].Frame
		if a.X != b.X {
			return a.X < b.X
		}
		// A zero-width item shares its X with the item to its right.
		if a.MaxX() != b.MaxX() {
			return a.MaxX() < b.MaxX()
		}
		return sorted[i].WindowID < sorted[j].WindowID
	})
	for _, it := range sorted {
		key := it.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if it.Kind.IsControl() {
			controls[it.Kind] = it
		}
		order = append(order, it)
	}

	return order, regionsByOrder(order), controls
}

// regionsByOrder splits a left-to-right ordering using the control items as
// boundaries.
func regionsByOrder(order []Item) map[Region][]Item {
	regions := map[Region][]Item{
		RegionVisible:      nil,
		RegionHidden:       nil,
		RegionAlwaysHidden: nil,
	}
	for i, it := range order {
		if it.Kind.IsControl() {
			continue
		}
		r := regionAt(order, i)
		regions[r] = append(regions[r], it)
	}
	return regions
}

// regionAt returns the region of the item at index i given the positions of
// the control items in order.
func regionAt(order []Item, i int) Region {
	hiddenIdx, alwaysIdx := -1, -1
	for j, it := range order {
		switch it.Kind {
		case KindHiddenControl:
			hiddenIdx = j
		case KindAlwaysHiddenControl:
			alwaysIdx = j
		}
	}
	switch {
	case alwaysIdx >= 0 && i < alwaysIdx:
		return RegionAlwaysHidden
	case hiddenIdx >= 0 && i < hiddenIdx:
		return RegionHidden
	default:
		return RegionVisible
	}
}

// RegionWidth sums the frame widths of the non-control items.
func RegionWidth(items []Item) int {
	total := 0
	for _, it := range items {
		if it.Kind.IsControl() {
			continue
		}
		total += it.Width()
	}
	return total
}
