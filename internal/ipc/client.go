package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/tuck/internal/recovery"
	"github.com/1broseidon/tuck/internal/runtimepath"
)

const (
	DefaultTimeout = 5 * time.Second
	// GestureTimeout bounds commands that drive the pointer.
	GestureTimeout = 30 * time.Second
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientWithPath(socketPath)
}

// NewClientWithPath creates a client for the socket at path.
func NewClientWithPath(path string) *Client {
	return &Client{
		socketPath: path,
		timeout:    DefaultTimeout,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == StatusError {
		return nil, &DaemonError{Code: resp.Code, Message: resp.Error}
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload any, timeout time.Duration, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req, timeout)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, 0, nil)
}

// GetStatus requests the daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, 0, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListItems lists the items on the bar. refresh forces a fresh enumeration.
func (c *Client) ListItems(refresh bool) (*ItemsData, error) {
	var data ItemsData
	if err := c.call(CommandListItems, ListItemsPayload{Refresh: refresh}, 0, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// MoveItem moves an item to a region or next to an anchor.
func (c *Client) MoveItem(payload MoveItemPayload) (*MoveData, error) {
	var data MoveData
	if err := c.call(CommandMoveItem, payload, GestureTimeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ClickItem clicks an item, bringing it on screen first.
func (c *Client) ClickItem(item ItemRef, button string) (*ClickData, error) {
	var data ClickData
	payload := ClickItemPayload{Item: item, Button: button}
	if err := c.call(CommandClickItem, payload, GestureTimeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Recover asks for a recovery pass restoring at most limit items.
func (c *Client) Recover(limit int) (*recovery.Result, error) {
	var res recovery.Result
	if err := c.call(CommandRecover, RecoverPayload{Limit: limit}, GestureTimeout, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Scroll reports a scroll over the bar.
func (c *Client) Scroll() (*recovery.Result, error) {
	var res recovery.Result
	if err := c.call(CommandScroll, nil, GestureTimeout, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// HardReset rebuilds the ledger from the live hidden region.
func (c *Client) HardReset() (int, error) {
	var data HardResetData
	if err := c.call(CommandHardReset, nil, 0, &data); err != nil {
		return 0, err
	}
	return data.Hidden, nil
}
