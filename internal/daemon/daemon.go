package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"driftq/internal/config"
	"driftq/internal/logging"
	"driftq/internal/network"
	"driftq/internal/offline"
	"driftq/internal/store"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	queue   *offline.Queue
	monitor *network.Monitor

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	cancel      context.CancelFunc
	unsubscribe func()
	api         *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Online       bool
	StoreDBPath  string
	LockFilePath string
	Queue        offline.Stats
	Network      *network.Quality
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, q *offline.Queue, mon *network.Monitor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || q == nil || mon == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, queue, monitor, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "driftqd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		queue:    q,
		monitor:  mon,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, connects the monitor to the queue, and
// launches the monitor and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another driftq daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// The monitor drives the queue: every quality change re-evaluates
	// whether the backend is reachable, and the disconnected-to-connected
	// transition inside the queue triggers a flush.
	d.unsubscribe = d.monitor.AddListener(func(quality network.Quality) {
		d.queue.NotifyConnectivity(quality.Online())
	})

	if err := d.monitor.Start(runCtx); err != nil {
		d.unsubscribe()
		d.unsubscribe = nil
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start network monitor: %w", err)
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.monitor.Stop()
			d.unsubscribe()
			d.unsubscribe = nil
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("driftq daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.api != nil {
		d.api.stop()
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("driftq daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close stops the daemon and releases the queue's timers. The store is owned
// by the caller and stays open.
func (d *Daemon) Close() error {
	d.Stop()
	d.queue.Close()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	var quality *network.Quality
	if current, ok := d.monitor.CurrentQuality(); ok {
		quality = &current
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Online:       d.queue.Online(),
		StoreDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Queue:        d.queue.Stats(),
		Network:      quality,
	}
}
