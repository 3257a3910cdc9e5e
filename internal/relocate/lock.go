package relocate

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/tuck/internal/platform"
)

// Revision is the move revision counter. Every relocation captures a value
// at submission; a later submission makes earlier values stale.
type Revision struct {
	n atomic.Uint64
}

// Next advances the counter and returns the new value.
func (r *Revision) Next() uint64 { return r.n.Add(1) }

// Current returns the latest value.
func (r *Revision) Current() uint64 { return r.n.Load() }

// IsCurrent reports whether v is still the latest value.
func (r *Revision) IsCurrent(v uint64) bool { return r.n.Load() == v }

// PointerLock is a reference-counted hold on the pointer device. The cursor
// is hidden and physical input detached on the 0→1 transition and restored
// on 1→0; nested holds only adjust the count.
type PointerLock struct {
	mu     sync.Mutex
	depth  int
	ptr    platform.Pointer
	logger *slog.Logger
}

// NewPointerLock creates a lock over ptr.
func NewPointerLock(ptr platform.Pointer, logger *slog.Logger) *PointerLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointerLock{ptr: ptr, logger: logger}
}

// Acquire takes a hold and returns its release function. Release is safe to
// call more than once.
func (l *PointerLock) Acquire() (release func()) {
	l.mu.Lock()
	l.depth++
	if l.depth == 1 {
		if err := l.ptr.SetCursorVisible(false); err != nil {
			l.logger.Warn("hide cursor failed", "error", err)
		}
		if err := l.ptr.SetAssociated(false); err != nil {
			l.logger.Warn("detach pointer failed", "error", err)
		}
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(l.release)
	}
}

func (l *PointerLock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 {
		return
	}
	l.depth--
	if l.depth > 0 {
		return
	}
	if err := l.ptr.SetAssociated(true); err != nil {
		l.logger.Warn("reattach pointer failed", "error", err)
	}
	if err := l.ptr.SetCursorVisible(true); err != nil {
		l.logger.Warn("show cursor failed", "error", err)
	}
}

// Depth returns the number of outstanding holds.
func (l *PointerLock) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}
