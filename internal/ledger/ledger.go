// Package ledger persists the set of items the user expects to stay hidden.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/1broseidon/tuck/internal/menubar"
)

const fileVersion = 1

type file struct {
	Version int                   `json:"version"`
	Updated time.Time             `json:"updated"`
	Items   []menubar.IdentityKey `json:"items"`
}

// Ledger is the expected-hidden set. Entries are only changed by Replace or
// Clear; nothing prunes them behind the caller's back.
type Ledger struct {
	path string

	mu   sync.RWMutex
	keys menubar.KeySet
}

// New returns an empty ledger that saves to path.
func New(path string) *Ledger {
	return &Ledger{path: path, keys: menubar.NewKeySet()}
}

// Open loads the ledger at path. A missing file yields an empty ledger.
func Open(path string) (*Ledger, error) {
	l := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	if f.Version > fileVersion {
		return nil, fmt.Errorf("ledger %s has unsupported version %d", path, f.Version)
	}
	for _, k := range f.Items {
		l.keys[k] = struct{}{}
	}
	return l, nil
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// Keys returns a copy of the set.
func (l *Ledger) Keys() menubar.KeySet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(menubar.KeySet, len(l.keys))
	for k := range l.keys {
		out[k] = struct{}{}
	}
	return out
}

func (l *Ledger) Contains(k menubar.IdentityKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.keys.Has(k)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

// Replace swaps the in-memory set. Call Save to persist it.
func (l *Ledger) Replace(keys menubar.KeySet) {
	next := make(menubar.KeySet, len(keys))
	for k := range keys {
		next[k] = struct{}{}
	}
	l.mu.Lock()
	l.keys = next
	l.mu.Unlock()
}

// Clear empties the in-memory set.
func (l *Ledger) Clear() {
	l.Replace(nil)
}

// Save writes the set to disk atomically.
func (l *Ledger) Save() error {
	l.mu.RLock()
	f := file{
		Version: fileVersion,
		Updated: time.Now().UTC(),
		Items:   l.keys.Sorted(),
	}
	l.mu.RUnlock()

	if f.Items == nil {
		f.Items = []menubar.IdentityKey{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".hidden-items-*.json")
	if err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
