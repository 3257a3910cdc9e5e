package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tuck/internal/logging"
	"github.com/1broseidon/tuck/internal/runtimepath"
)

// ControlItems configures the boundary items tuck docks into the tray.
type ControlItems struct {
	// AlwaysHidden enables the second, always-collapsed section.
	AlwaysHidden bool `yaml:"always_hidden"`
	// StartCollapsed collapses the hidden section when the daemon starts.
	StartCollapsed bool `yaml:"start_collapsed"`
}

// Config is the effective configuration.
type Config struct {
	Display    string `yaml:"display,omitempty"`
	XAuthority string `yaml:"xauthority,omitempty"`
	TrayScreen int    `yaml:"tray_screen"`

	MaxVisibleWidth int `yaml:"max_visible_width"`

	CacheFreshnessMs    int `yaml:"cache_freshness_ms"`
	ProviderTimeoutMs   int `yaml:"provider_timeout_ms"`
	DragSteps           int `yaml:"drag_steps"`
	DragStepDelayMs     int `yaml:"drag_step_delay_ms"`
	SettleDelayMs       int `yaml:"settle_delay_ms"`
	ClickSettleDelayMs  int `yaml:"click_settle_delay_ms"`
	PopupPollIntervalMs int `yaml:"popup_poll_interval_ms"`
	PopupTimeoutMs      int `yaml:"popup_timeout_ms"`

	RecoveryIntervalSeconds  int `yaml:"recovery_interval_seconds"`
	RecoveryDebounceMs       int `yaml:"recovery_debounce_ms"`
	ScrollRecoveryIntervalMs int `yaml:"scroll_recovery_interval_ms"`

	RecoverAllHotkey string `yaml:"recover_all_hotkey"`
	RecoverOneHotkey string `yaml:"recover_one_hotkey"`

	ControlItems ControlItems   `yaml:"control_items"`
	Logging      logging.Config `yaml:"logging"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxVisibleWidth:          660,
		CacheFreshnessMs:         500,
		ProviderTimeoutMs:        2000,
		DragSteps:                12,
		DragStepDelayMs:          8,
		SettleDelayMs:            150,
		ClickSettleDelayMs:       100,
		PopupPollIntervalMs:      20,
		PopupTimeoutMs:           800,
		RecoveryIntervalSeconds:  30,
		RecoveryDebounceMs:       1500,
		ScrollRecoveryIntervalMs: 3000,
		RecoverAllHotkey:         "Mod4-Mod1-h", // Super+Alt+H
		RecoverOneHotkey:         "Mod4-Mod1-j",
		ControlItems: ControlItems{
			AlwaysHidden:   true,
			StartCollapsed: true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// DefaultConfigPath returns ~/.config/tuck/config.yaml, honouring
// XDG_CONFIG_HOME.
func DefaultConfigPath() (string, error) {
	dir, err := runtimepath.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Timing is the config's durations, ready for the engines.
type Timing struct {
	CacheFreshness    time.Duration
	ProviderTimeout   time.Duration
	DragStepDelay     time.Duration
	SettleDelay       time.Duration
	ClickSettleDelay  time.Duration
	PopupPollInterval time.Duration
	PopupTimeout      time.Duration
	RecoveryInterval  time.Duration
	RecoveryDebounce  time.Duration
	ScrollRecovery    time.Duration
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Durations converts the millisecond and second fields.
func (c *Config) Durations() Timing {
	return Timing{
		CacheFreshness:    ms(c.CacheFreshnessMs),
		ProviderTimeout:   ms(c.ProviderTimeoutMs),
		DragStepDelay:     ms(c.DragStepDelayMs),
		SettleDelay:       ms(c.SettleDelayMs),
		ClickSettleDelay:  ms(c.ClickSettleDelayMs),
		PopupPollInterval: ms(c.PopupPollIntervalMs),
		PopupTimeout:      ms(c.PopupTimeoutMs),
		RecoveryInterval:  time.Duration(c.RecoveryIntervalSeconds) * time.Second,
		RecoveryDebounce:  ms(c.RecoveryDebounceMs),
		ScrollRecovery:    ms(c.ScrollRecoveryIntervalMs),
	}
}

// Validate checks ranges. Errors carry the YAML path of the bad value.
func (c *Config) Validate() error {
	if c.TrayScreen < 0 {
		return &ValidationError{Path: "tray_screen", Err: fmt.Errorf("tray_screen must be >= 0")}
	}
	if c.MaxVisibleWidth <= 0 {
		return &ValidationError{Path: "max_visible_width", Err: fmt.Errorf("max_visible_width must be > 0")}
	}
	if c.CacheFreshnessMs <= 0 {
		return &ValidationError{Path: "cache_freshness_ms", Err: fmt.Errorf("cache_freshness_ms must be > 0")}
	}
	if c.ProviderTimeoutMs <= 0 {
		return &ValidationError{Path: "provider_timeout_ms", Err: fmt.Errorf("provider_timeout_ms must be > 0")}
	}
	if c.DragSteps < 1 || c.DragSteps > 200 {
		return &ValidationError{Path: "drag_steps", Err: fmt.Errorf("drag_steps must be between 1 and 200")}
	}
	nonNegative := []struct {
		path  string
		value int
	}{
		{"drag_step_delay_ms", c.DragStepDelayMs},
		{"settle_delay_ms", c.SettleDelayMs},
		{"click_settle_delay_ms", c.ClickSettleDelayMs},
		{"recovery_interval_seconds", c.RecoveryIntervalSeconds},
		{"recovery_debounce_ms", c.RecoveryDebounceMs},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return &ValidationError{Path: f.path, Err: fmt.Errorf("%s must be >= 0", f.path)}
		}
	}
	if c.PopupPollIntervalMs <= 0 {
		return &ValidationError{Path: "popup_poll_interval_ms", Err: fmt.Errorf("popup_poll_interval_ms must be > 0")}
	}
	if c.PopupTimeoutMs < c.PopupPollIntervalMs {
		return &ValidationError{Path: "popup_timeout_ms", Err: fmt.Errorf("popup_timeout_ms must be >= popup_poll_interval_ms")}
	}
	if c.ScrollRecoveryIntervalMs <= 0 {
		return &ValidationError{Path: "scroll_recovery_interval_ms", Err: fmt.Errorf("scroll_recovery_interval_ms must be > 0")}
	}
	if strings.TrimSpace(c.RecoverAllHotkey) != "" && c.RecoverAllHotkey == c.RecoverOneHotkey {
		return &ValidationError{Path: "recover_one_hotkey", Err: fmt.Errorf("recover_one_hotkey must differ from recover_all_hotkey")}
	}
	if err := c.Logging.Validate(); err != nil {
		return &ValidationError{Path: "logging", Err: err}
	}
	return nil
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default config to path unless a file exists.
func WriteDefault(path string) (bool, error) {
	if exists, err := pathExists(path); err != nil || exists {
		return false, err
	}
	data, err := DefaultConfig().Marshal()
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
