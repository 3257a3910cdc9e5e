// Package mcp exposes the daemon's item operations as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/recovery"
)

const (
	ServerName    = "tuck"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of the IPC client the tools call.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	ListItems(refresh bool) (*ipc.ItemsData, error)
	MoveItem(payload ipc.MoveItemPayload) (*ipc.MoveData, error)
	ClickItem(item ipc.ItemRef, button string) (*ipc.ClickData, error)
	Recover(limit int) (*recovery.Result, error)
	HardReset() (int, error)
}

// Server is the MCP server for tuck.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates a new MCP server forwarding to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		daemon: daemon,
		logger: logger.With("component", "mcp"),
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Summarise the status bar: item count and width per region, the visible width limit, how many expected-hidden items are missing, and the last recovery pass.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_items",
		Description: "List status bar items left to right with their region (always-hidden, hidden, visible), owner, title and width. Also lists expected-hidden items that are currently missing from the hidden region.",
	}, s.handleListItems)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_item",
		Description: "Move an item into a region (to) or next to another item (anchor + side). Moves into the visible region fail when the visible width limit would be exceeded. The expected-hidden list is updated on success.",
	}, s.handleMoveItem)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "click_item",
		Description: "Click an item, bringing it next to the hidden-section divider first so the click lands. Reports whether a popup menu opened.",
	}, s.handleClickItem)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "recover_items",
		Description: "Move expected-hidden items that have drifted out of the hidden region back into it.",
	}, s.handleRecoverItems)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hard_reset",
		Description: "Forget the expected-hidden list and rebuild it from exactly what is hidden on the bar now.",
	}, s.handleHardReset)
}

// toolError rewrites daemon errors into messages a model can act on.
func toolError(tool string, err error) error {
	switch {
	case errors.Is(err, menubar.ErrCapacityExceeded):
		return fmt.Errorf("%s: the visible region has no room for this item; hide another item first: %w", tool, err)
	case errors.Is(err, menubar.ErrIdentityUnresolved):
		return fmt.Errorf("%s: no such item; call list_items for current owners and titles: %w", tool, err)
	default:
		return fmt.Errorf("%s: %w", tool, err)
	}
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, toolError("get_status", err)
	}
	out := GetStatusOutput{
		Regions:         make(map[string]RegionSummary, len(st.Regions)),
		MaxVisibleWidth: st.MaxVisibleWidth,
		LedgerSize:      st.LedgerSize,
		MissingCount:    st.MissingCount,
		RecoveryState:   st.RecoveryState,
		HiddenCollapsed: st.HiddenCollapsed,
		UptimeSeconds:   st.UptimeSeconds,
	}
	for name, r := range st.Regions {
		out.Regions[name] = RegionSummary{Count: r.Count, Width: r.Width}
	}
	if st.LastRecovery != nil {
		last := recoverOutput(*st.LastRecovery)
		out.LastRecovery = &last
	}
	return nil, out, nil
}

func (s *Server) handleListItems(_ context.Context, _ *mcpsdk.CallToolRequest, args ListItemsInput) (*mcpsdk.CallToolResult, ListItemsOutput, error) {
	data, err := s.daemon.ListItems(args.Refresh)
	if err != nil {
		return nil, ListItemsOutput{}, toolError("list_items", err)
	}
	out := ListItemsOutput{Items: data.Items, Missing: data.Missing}
	if out.Items == nil {
		out.Items = []ipc.ItemInfo{}
	}
	if out.Missing == nil {
		out.Missing = []ipc.ItemRef{}
	}
	return nil, out, nil
}

func (s *Server) handleMoveItem(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveItemInput) (*mcpsdk.CallToolResult, MoveItemOutput, error) {
	item := ipc.ItemRef{Owner: args.Owner, Title: args.Title}
	if item.Owner == "" && item.Title == "" {
		return nil, MoveItemOutput{}, fmt.Errorf("move_item: owner or title is required")
	}
	payload := ipc.MoveItemPayload{Item: item, To: args.To}
	if args.Anchor != nil {
		anchor := args.Anchor.ref()
		payload.Anchor = &anchor
		payload.Side = args.Side
		if payload.Side == "" {
			payload.Side = "left"
		}
	} else if args.To == "" {
		return nil, MoveItemOutput{}, fmt.Errorf("move_item: either to or anchor is required")
	}

	res, err := s.daemon.MoveItem(payload)
	if err != nil {
		return nil, MoveItemOutput{}, toolError("move_item", err)
	}
	s.logger.Info("item moved", "item", res.Item.String(), "from", res.From, "to", res.To)
	return nil, MoveItemOutput{
		Owner:    res.Item.Owner,
		Title:    res.Item.Title,
		From:     res.From,
		To:       res.To,
		Attempts: res.Attempts,
	}, nil
}

func (s *Server) handleClickItem(_ context.Context, _ *mcpsdk.CallToolRequest, args ClickItemInput) (*mcpsdk.CallToolResult, ClickItemOutput, error) {
	item := ipc.ItemRef{Owner: args.Owner, Title: args.Title}
	if item.Owner == "" && item.Title == "" {
		return nil, ClickItemOutput{}, fmt.Errorf("click_item: owner or title is required")
	}
	res, err := s.daemon.ClickItem(item, args.Button)
	if err != nil {
		return nil, ClickItemOutput{}, toolError("click_item", err)
	}
	return nil, ClickItemOutput{
		Owner:      res.Item.Owner,
		Title:      res.Item.Title,
		MenuOpened: res.MenuOpened,
	}, nil
}

func (s *Server) handleRecoverItems(_ context.Context, _ *mcpsdk.CallToolRequest, args RecoverItemsInput) (*mcpsdk.CallToolResult, RecoverItemsOutput, error) {
	if args.Limit < 0 {
		return nil, RecoverItemsOutput{}, fmt.Errorf("recover_items: limit must be >= 0")
	}
	res, err := s.daemon.Recover(args.Limit)
	if err != nil {
		return nil, RecoverItemsOutput{}, toolError("recover_items", err)
	}
	return nil, recoverOutput(*res), nil
}

func recoverOutput(res recovery.Result) RecoverItemsOutput {
	return RecoverItemsOutput{
		Skipped:      res.Skipped,
		Reason:       res.Reason,
		Attempted:    res.Attempted,
		Unresolved:   res.Unresolved,
		Failed:       res.Failed,
		StillMissing: res.StillMissing,
	}
}

func (s *Server) handleHardReset(_ context.Context, _ *mcpsdk.CallToolRequest, _ HardResetInput) (*mcpsdk.CallToolResult, HardResetOutput, error) {
	n, err := s.daemon.HardReset()
	if err != nil {
		return nil, HardResetOutput{}, toolError("hard_reset", err)
	}
	s.logger.Info("ledger reset", "hidden", n)
	return nil, HardResetOutput{Hidden: n}, nil
}
