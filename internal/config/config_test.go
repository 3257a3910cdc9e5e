package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.MaxVisibleWidth != 660 {
		t.Fatalf("max_visible_width = %d, want 660", cfg.MaxVisibleWidth)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.DragSteps != DefaultConfig().DragSteps {
		t.Fatalf("drag_steps = %d", res.Config.DragSteps)
	}
	if res.File != "" {
		t.Fatalf("expected no file, got %q", res.File)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.RecoveryDebounceMs != 1500 {
		t.Fatalf("recovery_debounce_ms = %d", res.Config.RecoveryDebounceMs)
	}
}

func TestLoadFromPath_OverridesAndNestedBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"display: \":1\"",
		"max_visible_width: 500",
		"drag_steps: 20",
		"control_items:",
		"  always_hidden: false",
		"logging:",
		"  level: debug",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Display != ":1" || cfg.MaxVisibleWidth != 500 || cfg.DragSteps != 20 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ControlItems.AlwaysHidden {
		t.Fatalf("expected always_hidden false")
	}
	if !cfg.ControlItems.StartCollapsed {
		t.Fatalf("start_collapsed default lost in partial block")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.MaxBackups != 3 {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadFromPath_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "max_visible_widht: 500\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), path) && !strings.Contains(err.Error(), "config.yaml") {
		t.Fatalf("error should name the file: %v", err)
	}
}

func TestLoadFromPath_ValidationErrorCarriesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "drag_steps: 12\nmax_visible_width: 0\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "max_visible_width" {
		t.Fatalf("path = %q", verr.Path)
	}
	if verr.Source.Line != 2 {
		t.Fatalf("line = %d, want 2", verr.Source.Line)
	}
	if !strings.Contains(err.Error(), ":2:") {
		t.Fatalf("error should carry the line: %v", err)
	}
}

func TestLoadFromPath_RecordsNestedKeyPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "drag_steps: 30\ncontrol_items:\n  always_hidden: true\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != path {
		t.Fatalf("file = %q, want %q", res.File, path)
	}
	src, ok := res.Sources["control_items.always_hidden"]
	if !ok || src.Line != 3 || src.Kind != SourceFile {
		t.Fatalf("source = %+v (found %v)", src, ok)
	}
	if _, ok := res.Sources["logging.level"]; ok {
		t.Fatalf("unset keys must not have a file source")
	}
}

func TestLoadFromPath_IncludeIsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "include: conf.d\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected include to be rejected")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"zero freshness", func(c *Config) { c.CacheFreshnessMs = 0 }, "cache_freshness_ms"},
		{"too many steps", func(c *Config) { c.DragSteps = 1000 }, "drag_steps"},
		{"negative settle", func(c *Config) { c.SettleDelayMs = -1 }, "settle_delay_ms"},
		{"popup timeout under poll", func(c *Config) { c.PopupTimeoutMs = 5 }, "popup_timeout_ms"},
		{"same hotkeys", func(c *Config) { c.RecoverOneHotkey = c.RecoverAllHotkey }, "recover_one_hotkey"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			var verr *ValidationError
			if err := cfg.Validate(); !errors.As(err, &verr) || verr.Path != tt.path {
				t.Fatalf("Validate() = %v, want path %q", err, tt.path)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	d := DefaultConfig().Durations()
	if d.CacheFreshness != 500*time.Millisecond {
		t.Fatalf("cache freshness = %s", d.CacheFreshness)
	}
	if d.RecoveryInterval != 30*time.Second {
		t.Fatalf("recovery interval = %s", d.RecoveryInterval)
	}
	if d.ScrollRecovery != 3*time.Second {
		t.Fatalf("scroll recovery = %s", d.ScrollRecovery)
	}
}

func TestExplain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: warn\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	val, src, err := Explain(res, "logging.level")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "warn" || src.Kind != SourceFile || src.Line != 2 {
		t.Fatalf("explain logging.level = %v from %+v", val, src)
	}

	val, src, err = Explain(res, "max_visible_width")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 660 || src.Kind != SourceDefault {
		t.Fatalf("explain max_visible_width = %v from %+v", val, src)
	}

	if _, _, err := Explain(res, "nope.nothing"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuck", "config.yaml")
	wrote, err := WriteDefault(path)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() = %v, %v", wrote, err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res.Config.PopupTimeoutMs != 800 {
		t.Fatalf("popup_timeout_ms = %d", res.Config.PopupTimeoutMs)
	}
	wrote, err = WriteDefault(path)
	if err != nil || wrote {
		t.Fatalf("second WriteDefault() = %v, %v", wrote, err)
	}
}

func TestDefaultConfigPath_HonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	got, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if got != filepath.Join(dir, "tuck", "config.yaml") {
		t.Fatalf("DefaultConfigPath = %q", got)
	}
}
