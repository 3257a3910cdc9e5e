// Package logging installs the process-wide slog logger. The daemon logs
// JSON to a rotating file; CLI commands log text to stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/1broseidon/tuck/internal/runtimepath"
)

// Mode selects the handler and sink.
type Mode int

const (
	ModeCLI Mode = iota
	ModeDaemon
)

func (m Mode) String() string {
	if m == ModeDaemon {
		return "daemon"
	}
	return "cli"
}

// Config is the logging block of the config file.
type Config struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// Validate checks the level name and rotation limits.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must be >= 0")
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// Options are per-process settings that do not come from the config file.
type Options struct {
	Mode    Mode
	Verbose bool
	// Stderr overrides the CLI sink.
	Stderr io.Writer
}

// Init builds the logger for mode, installs it with slog.SetDefault and
// returns it with a function closing the sink.
func Init(cfg Config, opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	closeFn := func() error { return nil }
	switch opts.Mode {
	case ModeDaemon:
		rot, err := rotatingFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn = rot.Close
		var w io.Writer = rot
		if opts.Verbose {
			w = io.MultiWriter(rot, os.Stderr)
			handlerOpts.Level = slog.LevelDebug
		}
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		// CLI output goes to stdout; only problems reach stderr.
		handlerOpts.Level = slog.LevelWarn
		if opts.Verbose {
			handlerOpts.Level = slog.LevelDebug
		}
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler).With(slog.String("mode", opts.Mode.String()))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func rotatingFile(cfg Config) (*lumberjack.Logger, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		dir, err := runtimepath.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "tuck-daemon.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	def := DefaultConfig()
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, def.MaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, def.MaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, def.MaxAgeDays),
		Compress:   true,
	}, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
