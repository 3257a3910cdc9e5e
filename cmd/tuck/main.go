package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/1broseidon/tuck/internal/config"
	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/logging"
	"github.com/1broseidon/tuck/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "move":
		os.Exit(runMove(os.Args[2:]))
	case "click":
		os.Exit(runClick(os.Args[2:]))
	case "recover":
		os.Exit(runRecover(os.Args[2:]))
	case "reset":
		os.Exit(runReset(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tuck <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the tuck daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  list                List status items by region")
	fmt.Fprintln(w, "  move                Move an item to a region or next to another item")
	fmt.Fprintln(w, "  click               Click an item, revealing it first")
	fmt.Fprintln(w, "  recover             Move items that drifted out of the hidden section back")
	fmt.Fprintln(w, "  reset               Forget expected-hidden items and record the current bar")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'tuck <command> --help' for command-specific options.")
}

// newFlagSet creates a subcommand flag set with the shared --verbose flag.
func newFlagSet(name, usage, summary string) (*pflag.FlagSet, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, summary)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	verbose := fs.BoolP("verbose", "v", false, "Log debug output to stderr")
	return fs, verbose
}

// parseFlags parses args and returns the exit code to use when parsing
// should stop the command.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// initCLILogging installs the stderr logger for client commands. Config
// errors fall back to the defaults so a broken file never hides the real
// command output.
func initCLILogging(verbose bool) {
	cfg := logging.DefaultConfig()
	if loaded, err := config.Load(); err == nil {
		cfg = loaded.Logging
	}
	if _, _, err := logging.Init(cfg, logging.Options{Mode: logging.ModeCLI, Verbose: verbose}); err != nil {
		_, _, _ = logging.Init(logging.DefaultConfig(), logging.Options{Mode: logging.ModeCLI, Verbose: verbose})
	}
}

func runTUI(args []string) int {
	fs, verbose := newFlagSet("tui", "tuck tui [--refresh DURATION] [--recover-interval DURATION]",
		"Interactive view of the bar. Scroll over it to trigger a recovery pass.\n\n"+
			"Keybindings:\n"+
			"  tab, 1-3   Switch region\n"+
			"  j/k, ↑/↓   Select item\n"+
			"  Enter      Click the selected item\n"+
			"  v/h/a      Move to visible / hidden / always-hidden\n"+
			"  r / o      Recover all / recover one\n"+
			"  f          Refresh now\n"+
			"  q, Ctrl+C  Quit")
	refresh := fs.Duration("refresh", tui.DefaultRefreshInterval, "How often to re-read the bar")
	recoverEvery := fs.Duration("recover-interval", tui.DefaultRecoverInterval, "Periodic recovery while open (negative disables)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	initCLILogging(*verbose)

	if err := tui.Run(ipc.NewClient(), tui.Options{RefreshInterval: *refresh, RecoverInterval: *recoverEvery}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
