package mcp

import "github.com/1broseidon/tuck/internal/ipc"

// ItemInput names an item for the tools that act on one.
type ItemInput struct {
	Owner string `json:"owner,omitempty" jsonschema:"Owning application (WM_CLASS). May be omitted when the title alone is unique."`
	Title string `json:"title,omitempty" jsonschema:"Item title. May be omitted when the owner alone is unique."`
}

func (in ItemInput) ref() ipc.ItemRef {
	return ipc.ItemRef{Owner: in.Owner, Title: in.Title}
}

// ListItemsInput is the input for the list_items tool.
type ListItemsInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"Re-enumerate the bar instead of using the cached snapshot"`
}

// ListItemsOutput is the output for the list_items tool.
type ListItemsOutput struct {
	Items   []ipc.ItemInfo `json:"items"`
	Missing []ipc.ItemRef  `json:"missing"`
}

// MoveItemInput is the input for the move_item tool.
type MoveItemInput struct {
	Owner  string     `json:"owner,omitempty" jsonschema:"Owning application (WM_CLASS). May be omitted when the title alone is unique."`
	Title  string     `json:"title,omitempty" jsonschema:"Item title. May be omitted when the owner alone is unique."`
	To     string     `json:"to,omitempty" jsonschema:"Destination region: visible, hidden or always-hidden"`
	Anchor *ItemInput `json:"anchor,omitempty" jsonschema:"Place the item next to this item instead of at a region edge"`
	Side   string     `json:"side,omitempty" jsonschema:"Side of the anchor: left or right (default left)"`
}

// MoveItemOutput is the output for the move_item tool.
type MoveItemOutput struct {
	Owner    string `json:"owner"`
	Title    string `json:"title"`
	From     string `json:"from"`
	To       string `json:"to"`
	Attempts int    `json:"attempts"`
}

// ClickItemInput is the input for the click_item tool.
type ClickItemInput struct {
	Owner  string `json:"owner,omitempty" jsonschema:"Owning application (WM_CLASS). May be omitted when the title alone is unique."`
	Title  string `json:"title,omitempty" jsonschema:"Item title. May be omitted when the owner alone is unique."`
	Button string `json:"button,omitempty" jsonschema:"left, middle or right (default left)"`
}

// ClickItemOutput is the output for the click_item tool.
type ClickItemOutput struct {
	Owner      string `json:"owner"`
	Title      string `json:"title"`
	MenuOpened bool   `json:"menu_opened"`
}

// RecoverItemsInput is the input for the recover_items tool.
type RecoverItemsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Restore at most this many missing items (default: all)"`
}

// RecoverItemsOutput is the output for the recover_items tool.
type RecoverItemsOutput struct {
	Skipped      bool   `json:"skipped"`
	Reason       string `json:"reason,omitempty"`
	Attempted    int    `json:"attempted"`
	Unresolved   int    `json:"unresolved"`
	Failed       int    `json:"failed"`
	StillMissing int    `json:"still_missing"`
}

// HardResetInput is the input for the hard_reset tool.
type HardResetInput struct{}

// HardResetOutput is the output for the hard_reset tool.
type HardResetOutput struct {
	Hidden int `json:"hidden"`
}

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// RegionSummary is one region in get_status.
type RegionSummary struct {
	Count int `json:"count"`
	Width int `json:"width"`
}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput struct {
	Regions         map[string]RegionSummary `json:"regions"`
	MaxVisibleWidth int                      `json:"max_visible_width"`
	LedgerSize      int                      `json:"ledger_size"`
	MissingCount    int                      `json:"missing_count"`
	RecoveryState   string                   `json:"recovery_state"`
	LastRecovery    *RecoverItemsOutput      `json:"last_recovery,omitempty"`
	HiddenCollapsed bool                     `json:"hidden_collapsed"`
	UptimeSeconds   int64                    `json:"uptime_seconds"`
}
