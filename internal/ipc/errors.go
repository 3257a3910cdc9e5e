package ipc

import (
	"errors"

	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
)

// Error codes carried in Response.Code.
const (
	CodeCapacityExceeded   = "capacity_exceeded"
	CodeProviderTimeout    = "provider_timeout"
	CodeGestureRejected    = "gesture_rejected"
	CodeIdentityUnresolved = "identity_unresolved"
	CodeCancelled          = "cancelled"
	CodeAmbiguous          = "ambiguous"
	CodeInvalidRequest     = "invalid_request"
	CodeInternal           = "internal"
)

// ErrInvalidRequest means the daemon could not make sense of a request.
var ErrInvalidRequest = errors.New("invalid request")

var codeSentinels = []struct {
	code string
	err  error
}{
	{CodeCapacityExceeded, menubar.ErrCapacityExceeded},
	{CodeProviderTimeout, menubar.ErrProviderTimeout},
	{CodeGestureRejected, menubar.ErrGestureRejected},
	{CodeIdentityUnresolved, menubar.ErrIdentityUnresolved},
	{CodeCancelled, menubar.ErrCancelled},
	{CodeAmbiguous, manager.ErrAmbiguous},
	{CodeInvalidRequest, ErrInvalidRequest},
}

// CodeFor classifies err for the wire.
func CodeFor(err error) string {
	for _, s := range codeSentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeInternal
}

// DaemonError is an error reported by the daemon. It unwraps to the
// sentinel matching its code, so errors.Is works across the socket.
type DaemonError struct {
	Code    string
	Message string
}

func (e *DaemonError) Error() string {
	return "daemon error: " + e.Message
}

func (e *DaemonError) Unwrap() error {
	for _, s := range codeSentinels {
		if s.code == e.Code {
			return s.err
		}
	}
	return nil
}
