package config

import "fmt"

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// BuildEffectiveConfig applies raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	set(&cfg.Display, raw.Display)
	set(&cfg.XAuthority, raw.XAuthority)
	set(&cfg.TrayScreen, raw.TrayScreen)
	set(&cfg.MaxVisibleWidth, raw.MaxVisibleWidth)
	set(&cfg.CacheFreshnessMs, raw.CacheFreshnessMs)
	set(&cfg.ProviderTimeoutMs, raw.ProviderTimeoutMs)
	set(&cfg.DragSteps, raw.DragSteps)
	set(&cfg.DragStepDelayMs, raw.DragStepDelayMs)
	set(&cfg.SettleDelayMs, raw.SettleDelayMs)
	set(&cfg.ClickSettleDelayMs, raw.ClickSettleDelayMs)
	set(&cfg.PopupPollIntervalMs, raw.PopupPollIntervalMs)
	set(&cfg.PopupTimeoutMs, raw.PopupTimeoutMs)
	set(&cfg.RecoveryIntervalSeconds, raw.RecoveryIntervalSeconds)
	set(&cfg.RecoveryDebounceMs, raw.RecoveryDebounceMs)
	set(&cfg.ScrollRecoveryIntervalMs, raw.ScrollRecoveryIntervalMs)
	set(&cfg.RecoverAllHotkey, raw.RecoverAllHotkey)
	set(&cfg.RecoverOneHotkey, raw.RecoverOneHotkey)

	if ci := raw.ControlItems; ci != nil {
		set(&cfg.ControlItems.AlwaysHidden, ci.AlwaysHidden)
		set(&cfg.ControlItems.StartCollapsed, ci.StartCollapsed)
	}
	if lg := raw.Logging; lg != nil {
		set(&cfg.Logging.Level, lg.Level)
		set(&cfg.Logging.File, lg.File)
		set(&cfg.Logging.MaxSizeMB, lg.MaxSizeMB)
		set(&cfg.Logging.MaxBackups, lg.MaxBackups)
		set(&cfg.Logging.MaxAgeDays, lg.MaxAgeDays)
	}
	return cfg
}
