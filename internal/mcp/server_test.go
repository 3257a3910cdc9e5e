package mcp

import (
	"context"
	"errors"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/recovery"
)

type fakeDaemon struct {
	items     ipc.ItemsData
	moves     []ipc.MoveItemPayload
	clicks    []ipc.ItemRef
	limits    []int
	resets    int
	moveErr   error
	recovered recovery.Result
}

func (d *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	last := recovery.Result{RunID: "r1", Source: "timer", Attempted: 2}
	return &ipc.StatusData{
		Status: manager.Status{
			Regions:         map[string]manager.RegionStatus{"visible": {Count: 2, Width: 70}},
			MaxVisibleWidth: 660,
			LedgerSize:      3,
			MissingCount:    1,
			RecoveryState:   "idle",
			LastRecovery:    &last,
		},
		UptimeSeconds: 42,
		DaemonRunning: true,
	}, nil
}

func (d *fakeDaemon) ListItems(bool) (*ipc.ItemsData, error) { return &d.items, nil }

func (d *fakeDaemon) MoveItem(p ipc.MoveItemPayload) (*ipc.MoveData, error) {
	d.moves = append(d.moves, p)
	if d.moveErr != nil {
		return nil, d.moveErr
	}
	return &ipc.MoveData{Item: p.Item, From: "visible", To: "hidden", Attempts: 1}, nil
}

func (d *fakeDaemon) ClickItem(item ipc.ItemRef, _ string) (*ipc.ClickData, error) {
	d.clicks = append(d.clicks, item)
	return &ipc.ClickData{Item: item, MenuOpened: true}, nil
}

func (d *fakeDaemon) Recover(limit int) (*recovery.Result, error) {
	d.limits = append(d.limits, limit)
	res := d.recovered
	return &res, nil
}

func (d *fakeDaemon) HardReset() (int, error) {
	d.resets++
	return 4, nil
}

func TestGetStatus(t *testing.T) {
	s := NewServer(&fakeDaemon{}, nil)
	_, out, err := s.handleGetStatus(context.Background(), nil, GetStatusInput{})
	if err != nil {
		t.Fatalf("handleGetStatus: %v", err)
	}
	if out.Regions["visible"].Width != 70 || out.MissingCount != 1 || out.UptimeSeconds != 42 {
		t.Errorf("unexpected status %+v", out)
	}
	if out.LastRecovery == nil || out.LastRecovery.Attempted != 2 {
		t.Errorf("last recovery = %+v, want attempted 2", out.LastRecovery)
	}
}

func TestListItemsNeverReturnsNull(t *testing.T) {
	s := NewServer(&fakeDaemon{}, nil)
	_, out, err := s.handleListItems(context.Background(), nil, ListItemsInput{})
	if err != nil {
		t.Fatalf("handleListItems: %v", err)
	}
	if out.Items == nil || out.Missing == nil {
		t.Errorf("expected empty slices, got %+v", out)
	}
}

func TestMoveItemPayload(t *testing.T) {
	tests := []struct {
		name    string
		in      MoveItemInput
		want    ipc.MoveItemPayload
		wantErr bool
	}{
		{
			name: "to region",
			in:   MoveItemInput{Title: "X", To: "hidden"},
			want: ipc.MoveItemPayload{Item: ipc.ItemRef{Title: "X"}, To: "hidden"},
		},
		{
			name: "anchor defaults to left",
			in:   MoveItemInput{Owner: "com.app.X", Anchor: &ItemInput{Title: "h"}},
			want: ipc.MoveItemPayload{Item: ipc.ItemRef{Owner: "com.app.X"}, Anchor: &ipc.ItemRef{Title: "h"}, Side: "left"},
		},
		{
			name:    "no destination",
			in:      MoveItemInput{Title: "X"},
			wantErr: true,
		},
		{
			name:    "no item",
			in:      MoveItemInput{To: "hidden"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{}
			s := NewServer(d, nil)
			_, _, err := s.handleMoveItem(context.Background(), nil, tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if len(d.moves) != 0 {
					t.Errorf("daemon called on invalid input")
				}
				return
			}
			if err != nil {
				t.Fatalf("handleMoveItem: %v", err)
			}
			if len(d.moves) != 1 {
				t.Fatalf("moves = %d, want 1", len(d.moves))
			}
			got := d.moves[0]
			if got.Item != tt.want.Item || got.To != tt.want.To || got.Side != tt.want.Side {
				t.Errorf("payload = %+v, want %+v", got, tt.want)
			}
			if (got.Anchor == nil) != (tt.want.Anchor == nil) || (got.Anchor != nil && *got.Anchor != *tt.want.Anchor) {
				t.Errorf("anchor = %v, want %v", got.Anchor, tt.want.Anchor)
			}
		})
	}
}

func TestMoveItemCapacityErrorKeepsSentinel(t *testing.T) {
	d := &fakeDaemon{moveErr: &ipc.DaemonError{Code: ipc.CodeCapacityExceeded, Message: "670 > 660"}}
	s := NewServer(d, nil)
	_, _, err := s.handleMoveItem(context.Background(), nil, MoveItemInput{Title: "X", To: "visible"})
	if !errors.Is(err, menubar.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
}

func TestRecoverItemsRejectsNegativeLimit(t *testing.T) {
	d := &fakeDaemon{}
	s := NewServer(d, nil)
	if _, _, err := s.handleRecoverItems(context.Background(), nil, RecoverItemsInput{Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
	if len(d.limits) != 0 {
		t.Errorf("daemon called with invalid limit")
	}
}

func connect(t *testing.T, s *Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	st, ct := mcpsdk.NewInMemoryTransports()
	if _, err := s.mcpServer.Connect(ctx, st, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestToolsOverTransport(t *testing.T) {
	d := &fakeDaemon{recovered: recovery.Result{Attempted: 1}}
	cs := connect(t, NewServer(d, nil))
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"click_item", "get_status", "hard_reset", "list_items", "move_item", "recover_items"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("tools = %v, want %v", names, want)
		}
	}

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "recover_items",
		Arguments: map[string]any{"limit": 1},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("recover_items reported an error: %+v", res.Content)
	}
	if len(d.limits) != 1 || d.limits[0] != 1 {
		t.Errorf("limits = %v, want [1]", d.limits)
	}

	res, err = cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "click_item",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Errorf("click_item without an item should be a tool error")
	}
	if len(d.clicks) != 0 {
		t.Errorf("daemon clicked without an item")
	}
}
