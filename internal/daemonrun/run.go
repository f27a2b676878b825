// Package daemonrun assembles and runs the driftq daemon process: logger,
// store, queue, monitor, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"driftq/internal/config"
	"driftq/internal/daemon"
	"driftq/internal/logging"
	"driftq/internal/network"
	"driftq/internal/offline"
	"driftq/internal/remote"
	"driftq/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the driftq daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "driftq.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "driftq.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	executor := remote.NewExecutor(cfg.Remote)
	q := offline.New(offline.ConfigFrom(cfg.Queue), st, executor, logger)

	source := network.NewLinkSource(logger)
	prober := network.NewHTTPProber(cfg.Network.ProbeURL, time.Duration(cfg.Network.ProbeTimeout)*time.Second)
	monitor := network.NewMonitor(source, prober, st, logger, network.MonitorOptions{
		ProbeInterval:      time.Duration(cfg.Network.ProbeInterval) * time.Second,
		TypeChangeDebounce: time.Duration(cfg.Network.TypeChangeDebounceMs) * time.Millisecond,
	})

	d, err := daemon.New(cfg, st, q, monitor, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and data directory access"),
			logging.String(logging.FieldImpact, "queued operations will not flush"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("driftq daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
