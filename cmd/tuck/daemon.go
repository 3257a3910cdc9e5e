package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/tuck/internal/config"
	"github.com/1broseidon/tuck/internal/hotkeys"
	"github.com/1broseidon/tuck/internal/interact"
	"github.com/1broseidon/tuck/internal/ipc"
	"github.com/1broseidon/tuck/internal/ledger"
	"github.com/1broseidon/tuck/internal/logging"
	"github.com/1broseidon/tuck/internal/manager"
	"github.com/1broseidon/tuck/internal/menubar"
	"github.com/1broseidon/tuck/internal/platform"
	"github.com/1broseidon/tuck/internal/recovery"
	"github.com/1broseidon/tuck/internal/relocate"
	"github.com/1broseidon/tuck/internal/runtimepath"
)

// managerConfig maps the config file onto the engine settings.
func managerConfig(cfg *config.Config, logger *slog.Logger) manager.Config {
	t := cfg.Durations()
	return manager.Config{
		Cache: menubar.CacheConfig{
			Freshness:       t.CacheFreshness,
			ProviderTimeout: t.ProviderTimeout,
		},
		Relocate: relocate.Config{
			MaxVisibleWidth: cfg.MaxVisibleWidth,
			Steps:           cfg.DragSteps,
			StepDelay:       t.DragStepDelay,
			SettleDelay:     t.SettleDelay,
			ProviderTimeout: t.ProviderTimeout,
		},
		Click: interact.Config{
			SettleDelay:     t.ClickSettleDelay,
			PollInterval:    t.PopupPollInterval,
			PopupTimeout:    t.PopupTimeout,
			ProviderTimeout: t.ProviderTimeout,
		},
		Recovery: recovery.Config{
			Debounce:       t.RecoveryDebounce,
			ScrollInterval: t.ScrollRecovery,
			Interval:       t.RecoveryInterval,
		},
		Logger: logger,
	}
}

// controlSpecs lists the control items the daemon docks.
func controlSpecs(cfg *config.Config) []platform.ControlSpec {
	specs := []platform.ControlSpec{{
		Section: platform.SectionHidden,
		Class:   menubar.ControlOwner,
		Title:   menubar.HiddenControlTitle,
	}}
	if cfg.ControlItems.AlwaysHidden {
		specs = append(specs, platform.ControlSpec{
			Section: platform.SectionAlwaysHidden,
			Class:   menubar.ControlOwner,
			Title:   menubar.AlwaysHiddenControlTitle,
		})
	}
	return specs
}

func runDaemon(args []string) int {
	fs, verbose := newFlagSet("daemon", "tuck daemon [--verbose]",
		"Start the tuck daemon in the foreground.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger, closeLog, err := logging.Init(cfg.Logging, logging.Options{Mode: logging.ModeDaemon, Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	if err := serveDaemon(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func serveDaemon(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("configuration loaded",
		"max_visible_width", cfg.MaxVisibleWidth,
		"always_hidden", cfg.ControlItems.AlwaysHidden,
		"recovery_interval_seconds", cfg.RecoveryIntervalSeconds)

	if cfg.XAuthority != "" {
		if err := os.Setenv("XAUTHORITY", cfg.XAuthority); err != nil {
			return fmt.Errorf("set XAUTHORITY: %w", err)
		}
	}

	ledgerPath, err := runtimepath.LedgerPath()
	if err != nil {
		return err
	}
	led, err := ledger.Open(ledgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	logger.Info("ledger loaded", "path", led.Path(), "expected_hidden", led.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The backend is created before the manager, so scroll events reach the
	// manager through this variable once it exists.
	var mgr *manager.Manager
	backend, err := platform.NewLinuxBackend(platform.LinuxOptions{
		Display:    cfg.Display,
		TrayScreen: cfg.TrayScreen,
		Controls:   controlSpecs(cfg),
		OnScroll: func() {
			if mgr != nil {
				mgr.Scroll(ctx)
			}
		},
		Logger: logger.With("component", "x11"),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to display: %w", err)
	}
	defer backend.Disconnect()

	mgr = manager.New(manager.Deps{
		Provider: backend,
		Pointer:  backend,
		Bar:      backend,
		Ledger:   led,
	}, managerConfig(cfg, logger))

	if cfg.ControlItems.StartCollapsed {
		if err := backend.HideSection(platform.SectionHidden); err != nil {
			logger.Warn("collapse hidden section failed", "error", err)
		}
	}
	if cfg.ControlItems.AlwaysHidden {
		if err := backend.HideSection(platform.SectionAlwaysHidden); err != nil {
			logger.Warn("collapse always-hidden section failed", "error", err)
		}
	}

	reloadChan := make(chan struct{}, 1)
	ipcServer, err := ipc.NewServer(cfg, mgr, reloadChan, ipc.ServerOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create IPC server: %w", err)
	}
	if err := ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer ipcServer.Stop()

	hk := hotkeys.NewHandler(backend.XUtil(), mgr, logger)
	if err := hk.Register(hotkeys.Bindings(cfg.RecoverAllHotkey, cfg.RecoverOneHotkey)); err != nil {
		logger.Warn("failed to register hotkeys", "error", err)
	}

	// Run an immediate recovery pass so items that drifted while the daemon
	// was down go back before the first timer tick.
	go func() {
		res := mgr.Recovery().Trigger(ctx, recovery.Request{Source: recovery.SourceStartup})
		logger.Info("startup recovery", "skipped", res.Skipped, "reason", res.Reason, "attempted", res.Attempted)
	}()
	if cfg.RecoveryIntervalSeconds > 0 {
		go mgr.Recovery().Run(ctx)
	}

	applyConfig := func(newCfg *config.Config) {
		ipcServer.UpdateConfig(newCfg)
		mgr.Reconfigure(managerConfig(newCfg, logger))
		if err := hk.Register(hotkeys.Bindings(newCfg.RecoverAllHotkey, newCfg.RecoverOneHotkey)); err != nil {
			logger.Warn("failed to register hotkeys", "error", err)
		}
		logger.Info("config reloaded")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return

			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading config")
					newCfg, err := config.Load()
					if err != nil {
						logger.Error("config reload failed", "error", err)
						continue
					}
					applyConfig(newCfg)
					continue
				}
				logger.Info("shutting down tuck daemon", "signal", sig.String())
				cancel()
				backend.Quit()
				return

			case <-reloadChan:
				// The IPC server already loaded and validated the file.
				applyConfig(ipcServer.GetConfig())
			}
		}
	}()

	logger.Info("tuck daemon started", "socket", ipcServer.SocketPath())
	backend.EventLoop()
	cancel()
	<-done
	return nil
}
