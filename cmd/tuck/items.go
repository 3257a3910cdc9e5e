package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/recovery"
)

const itemHelp = "ITEM is OWNER/TITLE, or a bare title when it is unique.\n" +
	"Use hidden-control or always-hidden-control for the section boundaries."

// parseItemRef splits OWNER/TITLE at the first slash. A reference without a
// slash is a title.
func parseItemRef(s string) (ipc.ItemRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ipc.ItemRef{}, fmt.Errorf("empty item reference")
	}
	owner, title, found := strings.Cut(s, "/")
	if !found {
		return ipc.ItemRef{Title: s}, nil
	}
	owner, title = strings.TrimSpace(owner), strings.TrimSpace(title)
	if owner == "" && title == "" {
		return ipc.ItemRef{}, fmt.Errorf("invalid item reference %q", s)
	}
	return ipc.ItemRef{Owner: owner, Title: title}, nil
}

// exitCode maps daemon errors to exit statuses: 3 for a full visible
// region, 4 for an unknown item, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, menubar.ErrCapacityExceeded):
		return 3
	case errors.Is(err, menubar.ErrIdentityUnresolved):
		return 4
	default:
		return 1
	}
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return exitCode(err)
}

// wantJSON reports whether output should be JSON: forced by the flag or
// when stdout is not a terminal.
func wantJSON(forced bool) bool {
	return forced || !term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs, verbose := newFlagSet("status", "tuck status [--json]", "Show daemon status via IPC.")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}
	initCLILogging(*verbose)

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(os.Stdout, status)
	}
	printStatus(os.Stdout, status)
	return 0
}

func printStatus(w io.Writer, s *ipc.StatusData) {
	fmt.Fprintf(w, "daemon_running:    %v\n", s.DaemonRunning)
	fmt.Fprintf(w, "uptime_seconds:    %d\n", s.UptimeSeconds)
	for _, r := range []menubar.Region{menubar.RegionVisible, menubar.RegionHidden, menubar.RegionAlwaysHidden} {
		rs := s.Regions[r.String()]
		fmt.Fprintf(w, "%-18s %d items, %dpx\n", r.String()+":", rs.Count, rs.Width)
	}
	fmt.Fprintf(w, "max_visible_width: %d\n", s.MaxVisibleWidth)
	fmt.Fprintf(w, "hidden_collapsed:  %v\n", s.HiddenCollapsed)
	fmt.Fprintf(w, "expected_hidden:   %d\n", s.LedgerSize)
	fmt.Fprintf(w, "missing:           %d\n", s.MissingCount)
	fmt.Fprintf(w, "recovery:          %s\n", s.RecoveryState)
	if s.LastRecovery != nil {
		fmt.Fprintf(w, "last_recovery:     %s\n", describeRecovery(s.LastRecovery))
	}
}

func describeRecovery(r *recovery.Result) string {
	if r.Skipped {
		return fmt.Sprintf("%s, skipped (%s)", r.Source, r.Reason)
	}
	return fmt.Sprintf("%s, attempted %d, unresolved %d, failed %d, still missing %d",
		r.Source, r.Attempted, r.Unresolved, r.Failed, r.StillMissing)
}

func runList(args []string) int {
	fs, verbose := newFlagSet("list", "tuck list [--json] [--missing] [--refresh]",
		"List status items in bar order. Output is JSON when stdout is not a terminal.")
	jsonOut := fs.Bool("json", false, "Output JSON")
	missingOnly := fs.Bool("missing", false, "Only list expected-hidden items that are not hidden")
	refresh := fs.Bool("refresh", false, "Re-enumerate the bar instead of using the daemon's cache")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "list takes no arguments")
		fs.Usage()
		return 2
	}
	initCLILogging(*verbose)

	data, err := ipc.NewClient().ListItems(*refresh)
	if err != nil {
		return fail(err)
	}
	if wantJSON(*jsonOut) {
		if *missingOnly {
			return writeJSON(os.Stdout, data.Missing)
		}
		return writeJSON(os.Stdout, data)
	}
	if *missingOnly {
		printMissing(os.Stdout, data.Missing)
		return 0
	}
	printItems(os.Stdout, data)
	return 0
}

func printItems(w io.Writer, data *ipc.ItemsData) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tOWNER\tTITLE\tWIDTH\tPID\tEXPECTED")
	for _, it := range data.Items {
		owner, title := it.Owner, it.Title
		if it.Kind != menubar.KindNormal.String() {
			owner, title = "-", "<"+it.Kind+">"
		}
		expected := ""
		if it.Expected {
			expected = "hidden"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", it.Region, owner, title, it.Width, it.PID, expected)
	}
	_ = tw.Flush()
	if len(data.Missing) > 0 {
		fmt.Fprintf(w, "\n%d expected-hidden item(s) not hidden; run 'tuck recover'\n", len(data.Missing))
	}
}

func printMissing(w io.Writer, missing []ipc.ItemRef) {
	if len(missing) == 0 {
		fmt.Fprintln(w, "nothing missing")
		return
	}
	for _, ref := range missing {
		fmt.Fprintf(w, "- %s\n", ref)
	}
}

func runMove(args []string) int {
	fs, verbose := newFlagSet("move", "tuck move ITEM (--to REGION | --left-of ITEM | --right-of ITEM)",
		"Move an item by dragging it on the bar.\n"+itemHelp)
	to := fs.String("to", "", "Destination region: visible, hidden or always-hidden")
	leftOf := fs.String("left-of", "", "Drop the item just left of this item")
	rightOf := fs.String("right-of", "", "Drop the item just right of this item")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "move requires exactly one ITEM")
		fs.Usage()
		return 2
	}
	payload, err := movePayload(fs.Arg(0), *to, *leftOf, *rightOf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return 2
	}
	initCLILogging(*verbose)

	res, err := ipc.NewClient().MoveItem(payload)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("moved %s: %s -> %s\n", res.Item, res.From, res.To)
	return 0
}

// movePayload builds the MOVE_ITEM payload from the move flags. Exactly one
// destination must be given.
func movePayload(item, to, leftOf, rightOf string) (ipc.MoveItemPayload, error) {
	ref, err := parseItemRef(item)
	if err != nil {
		return ipc.MoveItemPayload{}, err
	}
	payload := ipc.MoveItemPayload{Item: ref}
	set := 0
	for _, v := range []string{to, leftOf, rightOf} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return ipc.MoveItemPayload{}, fmt.Errorf("give exactly one of --to, --left-of, --right-of")
	}
	switch {
	case to != "":
		if _, err := menubar.ParseRegion(to); err != nil {
			return ipc.MoveItemPayload{}, err
		}
		payload.To = to
	case leftOf != "":
		anchor, err := parseItemRef(leftOf)
		if err != nil {
			return ipc.MoveItemPayload{}, err
		}
		payload.Anchor, payload.Side = &anchor, menubar.SideLeft.String()
	default:
		anchor, err := parseItemRef(rightOf)
		if err != nil {
			return ipc.MoveItemPayload{}, err
		}
		payload.Anchor, payload.Side = &anchor, menubar.SideRight.String()
	}
	return payload, nil
}

func runClick(args []string) int {
	fs, verbose := newFlagSet("click", "tuck click [--button left|right|middle] ITEM",
		"Click an item. Hidden items are moved next to the hidden control first.\n"+itemHelp)
	button := fs.StringP("button", "b", "left", "Mouse button")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "click requires exactly one ITEM")
		fs.Usage()
		return 2
	}
	ref, err := parseItemRef(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	initCLILogging(*verbose)

	res, err := ipc.NewClient().ClickItem(ref, *button)
	if err != nil {
		return fail(err)
	}
	if res.MenuOpened {
		fmt.Printf("clicked %s, menu window 0x%x opened\n", res.Item, res.MenuWindow)
	} else {
		fmt.Printf("clicked %s\n", res.Item)
	}
	return 0
}

func runRecover(args []string) int {
	fs, verbose := newFlagSet("recover", "tuck recover [--limit N | --one] [--json]",
		"Move expected-hidden items that drifted out of the hidden section back.")
	limit := fs.IntP("limit", "n", 0, "Restore at most N items (0 means all)")
	one := fs.Bool("one", false, "Restore one item (same as --limit 1)")
	jsonOut := fs.Bool("json", false, "Output JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *one {
		*limit = 1
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}
	initCLILogging(*verbose)

	res, err := ipc.NewClient().Recover(*limit)
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(os.Stdout, res)
	}
	fmt.Println(describeRecovery(res))
	if res.StillMissing > 0 {
		return 1
	}
	return 0
}

func runReset(args []string) int {
	fs, verbose := newFlagSet("reset", "tuck reset",
		"Clear the expected-hidden set and rebuild it from the items currently hidden.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	initCLILogging(*verbose)

	n, err := ipc.NewClient().HardReset()
	if err != nil {
		return fail(err)
	}
	fmt.Printf("expected-hidden items: %d\n", n)
	return 0
}

func runReload(args []string) int {
	fs, verbose := newFlagSet("reload", "tuck reload", "Ask the daemon to reload its configuration.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	initCLILogging(*verbose)

	if err := ipc.NewClient().Reload(); err != nil {
		return fail(err)
	}
	fmt.Println("config reloaded")
	return 0
}
