package config

type RawControlItems struct {
	AlwaysHidden   *bool `yaml:"always_hidden"`
	StartCollapsed *bool `yaml:"start_collapsed"`
}

type RawLoggingConfig struct {
	Level      *string `yaml:"level"`
	File       *string `yaml:"file"`
	MaxSizeMB  *int    `yaml:"max_size_mb"`
	MaxBackups *int    `yaml:"max_backups"`
	MaxAgeDays *int    `yaml:"max_age_days"`
}

// RawConfig is one config file as written. Nil fields were not set.
type RawConfig struct {
	Display    *string `yaml:"display"`
	XAuthority *string `yaml:"xauthority"`
	TrayScreen *int    `yaml:"tray_screen"`

	MaxVisibleWidth *int `yaml:"max_visible_width"`

	CacheFreshnessMs    *int `yaml:"cache_freshness_ms"`
	ProviderTimeoutMs   *int `yaml:"provider_timeout_ms"`
	DragSteps           *int `yaml:"drag_steps"`
	DragStepDelayMs     *int `yaml:"drag_step_delay_ms"`
	SettleDelayMs       *int `yaml:"settle_delay_ms"`
	ClickSettleDelayMs  *int `yaml:"click_settle_delay_ms"`
	PopupPollIntervalMs *int `yaml:"popup_poll_interval_ms"`
	PopupTimeoutMs      *int `yaml:"popup_timeout_ms"`

	RecoveryIntervalSeconds  *int `yaml:"recovery_interval_seconds"`
	RecoveryDebounceMs       *int `yaml:"recovery_debounce_ms"`
	ScrollRecoveryIntervalMs *int `yaml:"scroll_recovery_interval_ms"`

	RecoverAllHotkey *string `yaml:"recover_all_hotkey"`
	RecoverOneHotkey *string `yaml:"recover_one_hotkey"`

	ControlItems *RawControlItems  `yaml:"control_items"`
	Logging      *RawLoggingConfig `yaml:"logging"`
}
