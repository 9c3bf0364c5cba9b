package workflow

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"dvrmanager/internal/config"
	"dvrmanager/internal/identify"
	"dvrmanager/internal/mover"
	"dvrmanager/internal/notifications"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/stage"
)

// Quarantiner parks a recording's file for manual review once the workflow
// gives up on it.
type Quarantiner interface {
	Quarantine(ctx context.Context, rec *queue.Recording, reason string) error
}

// lane binds one stage handler to the status transitions it owns and the
// number of workers allowed to run it concurrently.
type lane struct {
	name       string
	handler    stage.Handler
	start      queue.Status
	processing queue.Status
	done       queue.Status
	workers    int
	logger     *slog.Logger
}

// Manager coordinates the resolve and move lanes over the shared queue.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	heartbeat   *HeartbeatMonitor
	quarantiner Quarantiner
	lanes       []*lane

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager with the default resolver and
// mover stages.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	resolver := identify.NewResolver(cfg, logger, identify.NewIdentityCache())
	mov := mover.NewMover(cfg, store, logger)
	return NewManagerWithHandlers(cfg, store, logger, resolver, mov, mov, notifications.NewService(cfg))
}

// NewManagerWithHandlers allows injecting stage handlers and collaborators
// (used in tests).
func NewManagerWithHandlers(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	resolver stage.Handler,
	placer stage.Handler,
	quarantiner Quarantiner,
	notifier notifications.Service,
) *Manager {
	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		notifier: notifier,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		quarantiner: quarantiner,
	}
	m.lanes = []*lane{
		{
			name:       "resolve",
			handler:    resolver,
			start:      queue.StatusStable,
			processing: queue.StatusResolving,
			done:       queue.StatusResolved,
			workers:    max(1, cfg.Mover.ResolveWorkers),
		},
		{
			name:       "move",
			handler:    placer,
			start:      queue.StatusResolved,
			processing: queue.StatusMoving,
			done:       queue.StatusMoved,
			workers:    max(1, cfg.Mover.MoveWorkers),
		},
	}
	return m
}

// Health reports per-stage readiness for status output.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.lanes))
	for _, ln := range m.lanes {
		checks = append(checks, ln.handler.HealthCheck(ctx))
	}
	return checks
}

// LastError returns the most recent orchestration error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
