// Package menubar models the status bar: items, the regions they are
// partitioned into, and a timestamp-gated cache of the live arrangement.
package menubar

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/1broseidon/tuck/internal/platform"
)

// Control items are windows owned by this process. They are recognised by
// owner and title when the compositor reports them back.
const (
	ControlOwner             = "tuck"
	HiddenControlTitle       = "tuck.hidden"
	AlwaysHiddenControlTitle = "tuck.always-hidden"
)

// Kind distinguishes ordinary items from the boundary control items.
type Kind int

const (
	KindNormal Kind = iota
	KindHiddenControl
	KindAlwaysHiddenControl
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindHiddenControl:
		return "hidden-control"
	case KindAlwaysHiddenControl:
		return "always-hidden-control"
	default:
		return "unknown"
	}
}

// IsControl reports whether k is one of the boundary control kinds.
func (k Kind) IsControl() bool {
	return k == KindHiddenControl || k == KindAlwaysHiddenControl
}

// Item is a status icon window. WindowID is only valid while the window
// lives; use Key to track an item across refreshes.
type Item struct {
	WindowID platform.WindowID
	OwnerPID int
	Owner    string
	Title    string
	Frame    platform.Rect
	Layer    int
	Kind     Kind
}

// IdentityKey is the durable handle for an item. Control items compare by
// Kind alone.
type IdentityKey struct {
	Owner string `json:"owner"`
	Title string `json:"title"`
	Kind  Kind   `json:"kind,omitempty"`
}

// String renders the key for logs and CLI output.
func (k IdentityKey) String() string {
	if k.Kind.IsControl() {
		return "<" + k.Kind.String() + ">"
	}
	return fmt.Sprintf("%s/%s", k.Owner, k.Title)
}

// Key derives the identity key. When the owner carries no stable
// application identifier the process id stands in for it.
func (it Item) Key() IdentityKey {
	if it.Kind.IsControl() {
		return IdentityKey{Kind: it.Kind}
	}
	owner := it.Owner
	if owner == "" {
		owner = "pid:" + strconv.Itoa(it.OwnerPID)
	}
	return IdentityKey{Owner: owner, Title: it.Title}
}

// Width returns the frame width.
func (it Item) Width() int { return it.Frame.Width }

// ItemFromWindow converts a compositor window into an Item, recognising
// control items by owner and title.
func ItemFromWindow(w platform.Window) Item {
	it := Item{
		WindowID: w.ID,
		OwnerPID: w.PID,
		Owner:    w.Owner,
		Title:    w.Title,
		Frame:    w.Bounds,
		Layer:    w.Layer,
		Kind:     KindNormal,
	}
	if w.Owner == ControlOwner {
		switch w.Title {
		case HiddenControlTitle:
			it.Kind = KindHiddenControl
		case AlwaysHiddenControlTitle:
			it.Kind = KindAlwaysHiddenControl
		}
	}
	return it
}

// KeySet is a set of identity keys.
type KeySet map[IdentityKey]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...IdentityKey) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s KeySet) Has(k IdentityKey) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the keys in a stable order.
func (s KeySet) Sorted() []IdentityKey {
	out := make([]IdentityKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	SortKeys(out)
	return out
}

// SortKeys orders keys by owner then title.
func SortKeys(keys []IdentityKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Owner != keys[j].Owner {
			return keys[i].Owner < keys[j].Owner
		}
		if keys[i].Title != keys[j].Title {
			return keys[i].Title < keys[j].Title
		}
		return keys[i].Kind < keys[j].Kind
	})
}
