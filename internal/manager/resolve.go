package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/1broseidon/tuck/internal/menubar"
)

// ErrAmbiguous means an item reference matched more than one item.
var ErrAmbiguous = errors.New("item reference is ambiguous")

// Resolve turns a loose reference into an identity key. An exact
// owner/title match wins; otherwise either field may be empty and matching
// is case-insensitive, but must select exactly one live item. The names
// "hidden-control" and "always-hidden-control" select the control items.
func (m *Manager) Resolve(ctx context.Context, owner, title string) (menubar.IdentityKey, error) {
	owner = strings.TrimSpace(owner)
	title = strings.TrimSpace(title)
	if owner == "" && title == "" {
		return menubar.IdentityKey{}, fmt.Errorf("item owner or title is required")
	}
	if owner == "" {
		switch title {
		case menubar.KindHiddenControl.String():
			return menubar.IdentityKey{Kind: menubar.KindHiddenControl}, nil
		case menubar.KindAlwaysHiddenControl.String():
			return menubar.IdentityKey{Kind: menubar.KindAlwaysHiddenControl}, nil
		}
	}

	if err := m.cache.Refresh(ctx, false); err != nil {
		return menubar.IdentityKey{}, err
	}
	exact := menubar.IdentityKey{Owner: owner, Title: title}
	if _, _, ok := m.cache.Find(exact); ok {
		return exact, nil
	}

	var matches []menubar.IdentityKey
	for _, it := range m.cache.Snapshot().Order {
		if it.Kind.IsControl() {
			continue
		}
		k := it.Key()
		if owner != "" && !strings.EqualFold(k.Owner, owner) {
			continue
		}
		if title != "" && !strings.EqualFold(k.Title, title) {
			continue
		}
		matches = append(matches, k)
	}
	switch len(matches) {
	case 0:
		// Items that are offline can still be named exactly, e.g. to
		// report them as missing.
		return menubar.IdentityKey{}, &menubar.UnresolvedError{Key: exact}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, k := range matches {
			names = append(names, k.String())
		}
		return menubar.IdentityKey{}, fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(names, ", "))
	}
}
