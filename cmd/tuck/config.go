package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tuck/internal/config"
)

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tuck config validate [--path PATH]")
	fmt.Fprintln(os.Stderr, "  tuck config print [--path PATH] [--defaults]")
	fmt.Fprintln(os.Stderr, "  tuck config explain [--path PATH] <yaml.path>")
	fmt.Fprintln(os.Stderr, "  tuck config init [--path PATH]")
}

func loadConfigResult(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage()
		return 2
	}

	const pathHelp = "Config file path (default: ~/.config/tuck/config.yaml)"

	switch args[0] {
	case "validate":
		fs, _ := newFlagSet("validate", "tuck config validate [--path PATH]", "Load and validate the configuration.")
		path := fs.String("path", "", pathHelp)
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if _, err := loadConfigResult(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs, _ := newFlagSet("print", "tuck config print [--path PATH] [--defaults]", "Print the effective configuration.")
		path := fs.String("path", "", pathHelp)
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfigResult(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs, _ := newFlagSet("explain", "tuck config explain [--path PATH] <yaml.path>",
			"Show a config value and the file line that set it.")
		path := fs.String("path", "", pathHelp)
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfigResult(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	case "init":
		fs, _ := newFlagSet("init", "tuck config init [--path PATH]", "Write the default configuration if no file exists.")
		path := fs.String("path", "", pathHelp)
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		target := *path
		if target == "" {
			p, err := config.DefaultConfigPath()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			target = p
		}
		written, err := config.WriteDefault(target)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if written {
			fmt.Printf("wrote %s\n", target)
		} else {
			fmt.Printf("%s already exists\n", target)
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		printConfigUsage()
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
