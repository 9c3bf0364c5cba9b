package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"dvrmanager/internal/config"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/notifications"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/watchfolder"
	"dvrmanager/internal/workflow"
)

// State describes where the daemon is in its lifecycle.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateReloading State = "reloading"
	StateDraining  State = "draining"
	StateStopped   State = "stopped"
)

// logSweepInterval is how often a running daemon re-applies log retention.
const logSweepInterval = 24 * time.Hour

// Daemon owns the long-running services and enforces single-instance
// execution through a lock file next to the database.
type Daemon struct {
	configPath string
	store      *queue.Store
	logger     *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	cfg       *config.Config
	manager   *workflow.Manager
	tracker   *watchfolder.Tracker
	notifier  notifications.Service
	state     State
	cancel    context.CancelFunc
	trackerWG sync.WaitGroup
}

// New constructs a daemon with initialized dependencies. configPath is the
// resolved configuration file, re-read on SIGHUP.
func New(cfg *config.Config, configPath string, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "dvr-manager.lock")
	d := &Daemon{
		configPath: configPath,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		cfg:        cfg,
		state:      StateStopped,
	}
	d.buildServices()
	return d, nil
}

// buildServices constructs the components that depend on configuration.
// Called at startup and again after a successful reload, with d.mu held.
func (d *Daemon) buildServices() {
	d.manager = workflow.NewManager(d.cfg, d.store, d.logger)
	d.tracker = watchfolder.NewTracker(d.cfg, d.store, d.logger)
	d.notifier = notifications.NewService(d.cfg)
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// LockPath returns the single-instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Start acquires the instance lock and launches the tracker and workflow
// lanes.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRunning || d.state == StateStarting {
		return errors.New("daemon already running")
	}
	d.state = StateStarting

	ok, err := d.lock.TryLock()
	if err != nil {
		d.state = StateStopped
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		d.state = StateStopped
		return errors.New("another dvr-manager instance is already running")
	}

	if err := d.startServices(ctx); err != nil {
		_ = d.lock.Unlock()
		d.state = StateStopped
		return err
	}

	d.state = StateRunning
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	if err := d.notifier.NotifyDaemonStarted(ctx); err != nil {
		d.logger.Warn("start notification failed", logging.Error(err))
	}
	return nil
}

// startServices launches the workflow manager and the watch-folder tracker.
// Also prunes aged log files, once immediately and then daily, so retention
// keeps up across reloads. Caller holds d.mu.
func (d *Daemon) startServices(ctx context.Context) error {
	d.pruneLogs()

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.trackerWG.Add(1)
	go func() {
		defer d.trackerWG.Done()
		ticker := time.NewTicker(logSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.pruneLogs()
			}
		}
	}()

	tracker := d.tracker
	logger := d.logger
	d.trackerWG.Add(1)
	go func() {
		defer d.trackerWG.Done()
		if err := tracker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watch folder tracker stopped", logging.Error(err))
		}
	}()
	return nil
}

// pruneLogs removes aged files from the log directory, sparing the active
// log. Runs with services stopped or from the sweep goroutine, which exits
// before any config swap, so reading d.cfg here is safe.
func (d *Daemon) pruneLogs() {
	cfg := d.cfg
	logging.CleanupOldLogs(d.logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "dvr-manager*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, "dvr-manager.log")},
		},
	)
}

// stopServices drains the tracker and workflow lanes. Caller holds d.mu.
func (d *Daemon) stopServices() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	d.trackerWG.Wait()
}

// Stop drains in-flight work and releases the instance lock.
func (d *Daemon) Stop(reason string) {
	d.mu.Lock()
	if d.state != StateRunning && d.state != StateReloading {
		d.mu.Unlock()
		return
	}
	d.state = StateDraining
	d.mu.Unlock()

	d.logger.Info("daemon draining", logging.String("reason", reason))

	d.mu.Lock()
	d.stopServices()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.state = StateStopped
	notifier := d.notifier
	d.mu.Unlock()

	if err := notifier.NotifyDaemonStopped(context.Background(), reason); err != nil {
		d.logger.Warn("stop notification failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Reload re-reads the configuration file and restarts services with the new
// settings. A configuration that fails to parse or validate leaves the
// daemon running on its previous config.
func (d *Daemon) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateRunning {
		return fmt.Errorf("cannot reload in state %q", d.state)
	}
	d.state = StateReloading

	cfg, _, exists, err := config.Load(d.configPath)
	if err != nil || !exists {
		d.state = StateRunning
		if err == nil {
			err = fmt.Errorf("config file %s no longer exists", d.configPath)
		}
		d.logger.Error("reload rejected, keeping previous configuration", logging.Error(err))
		return err
	}
	if queue.DatabasePath(cfg) != queue.DatabasePath(d.cfg) {
		d.state = StateRunning
		err := errors.New("paths.log_dir changed; restart the daemon to move the database")
		d.logger.Error("reload rejected, keeping previous configuration", logging.Error(err))
		return err
	}

	d.stopServices()
	d.cfg = cfg
	d.buildServices()
	if err := d.startServices(ctx); err != nil {
		d.state = StateStopped
		_ = d.lock.Unlock()
		return fmt.Errorf("restart after reload: %w", err)
	}

	d.state = StateRunning
	d.logger.Info("configuration reloaded")
	return nil
}

// Close stops the daemon and the underlying store.
func (d *Daemon) Close() error {
	d.Stop("shutdown")
	return d.store.Close()
}
