package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload    CommandType = "RELOAD"
	CommandGetStatus CommandType = "GET_STATUS"
	CommandListItems CommandType = "LIST_ITEMS"
	CommandMoveItem  CommandType = "MOVE_ITEM"
	CommandClickItem CommandType = "CLICK_ITEM"
	CommandRecover   CommandType = "RECOVER"
	CommandScroll    CommandType = "SCROLL"
	CommandHardReset CommandType = "HARD_RESET"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	ID      string          `json:"id,omitempty"`
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	ID     string          `json:"id,omitempty"`
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	manager.Status
	UptimeSeconds int64 `json:"uptime_seconds"`
	DaemonRunning bool  `json:"daemon_running"`
}

// ItemRef names an item loosely. Either field may be empty as long as the
// other selects exactly one item.
type ItemRef struct {
	Owner string `json:"owner,omitempty"`
	Title string `json:"title,omitempty"`
}

func (r ItemRef) String() string {
	switch {
	case r.Owner == "":
		return r.Title
	case r.Title == "":
		return r.Owner
	default:
		return r.Owner + "/" + r.Title
	}
}

// RefForKey converts an identity key into a reference that resolves back to
// it.
func RefForKey(k menubar.IdentityKey) ItemRef {
	if k.Kind.IsControl() {
		return ItemRef{Title: k.Kind.String()}
	}
	return ItemRef{Owner: k.Owner, Title: k.Title}
}

// ItemInfo describes one item on the bar.
type ItemInfo struct {
	Owner    string `json:"owner"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	PID      int    `json:"pid"`
	WindowID uint32 `json:"window_id"`
	Region   string `json:"region"`
	X        int    `json:"x"`
	Width    int    `json:"width"`
	Expected bool   `json:"expected_hidden"`
}

// ListItemsPayload represents the payload for LIST_ITEMS
type ListItemsPayload struct {
	Refresh bool `json:"refresh,omitempty"`
}

// ItemsData represents the data returned by LIST_ITEMS. Missing lists
// expected-hidden items that are absent or outside the hidden region.
type ItemsData struct {
	Items   []ItemInfo `json:"items"`
	Missing []ItemRef  `json:"missing"`
}

// MoveItemPayload represents the payload for MOVE_ITEM. Either To names a
// region, or Anchor and Side name a neighbouring item.
type MoveItemPayload struct {
	Item   ItemRef  `json:"item"`
	To     string   `json:"to,omitempty"`
	Anchor *ItemRef `json:"anchor,omitempty"`
	Side   string   `json:"side,omitempty"`
}

// MoveData represents the data returned by MOVE_ITEM
type MoveData struct {
	Item     ItemRef `json:"item"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Attempts int     `json:"attempts"`
}

// ClickItemPayload represents the payload for CLICK_ITEM
type ClickItemPayload struct {
	Item   ItemRef `json:"item"`
	Button string  `json:"button,omitempty"`
}

// ClickData represents the data returned by CLICK_ITEM
type ClickData struct {
	Item       ItemRef `json:"item"`
	MenuOpened bool    `json:"menu_opened"`
	MenuWindow uint32  `json:"menu_window,omitempty"`
}

// RecoverPayload represents the payload for RECOVER. Zero restores every
// missing item.
type RecoverPayload struct {
	Limit int `json:"limit,omitempty"`
}

// HardResetData represents the data returned by HARD_RESET
type HardResetData struct {
	Hidden int `json:"hidden"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message and a code the
// client can map back to a sentinel error.
func NewErrorResponse(errMsg string, code string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
		Code:   code,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("failed to parse request: command is required")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
