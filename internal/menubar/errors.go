package menubar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProviderTimeout means an enumeration or frame lookup did not return
	// in time. Retryable.
	ErrProviderTimeout = errors.New("window provider timed out")
	// ErrGestureRejected means a post-move refresh shows the item unchanged.
	ErrGestureRejected = errors.New("gesture had no observable effect")
	// ErrCapacityExceeded means the visible region cannot fit the item.
	ErrCapacityExceeded = errors.New("visible region width limit exceeded")
	// ErrIdentityUnresolved means no live item matches an identity key.
	ErrIdentityUnresolved = errors.New("item could not be resolved")
	// ErrCancelled means a newer move superseded this one. Callers drop it.
	ErrCancelled = errors.New("move superseded")
)

// CapacityError reports the width a move would have produced.
type CapacityError struct {
	Width int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %d > %d", ErrCapacityExceeded, e.Width, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// UnresolvedError names the key that could not be resolved.
type UnresolvedError struct {
	Key IdentityKey
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIdentityUnresolved, e.Key)
}

func (e *UnresolvedError) Unwrap() error { return ErrIdentityUnresolved }

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderTimeout) || errors.Is(err, ErrGestureRejected)
}

// CallWithTimeout runs fn and returns ErrProviderTimeout if it does not
// finish within d. fn keeps running in the background after a timeout;
// provider calls cannot be interrupted.
func CallWithTimeout[T any](ctx context.Context, d time.Duration, fn func() (T, error)) (T, error) {
	if d <= 0 {
		return fn()
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-ch:
		return r.v, r.err
	case <-timer.C:
		return zero, fmt.Errorf("%w after %s", ErrProviderTimeout, d)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
