package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
)

// Start begins background processing. Recordings left in a processing state
// by an unclean shutdown are rolled back first so no work is stranded.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	reset, err := m.store.ResetStuckProcessing(runCtx)
	if err != nil {
		m.Stop()
		return err
	}
	if reset > 0 && m.logger != nil {
		m.logger.Info("rolled back interrupted recordings", logging.Int64("count", reset))
	}

	for _, ln := range m.lanes {
		ln.logger = m.laneLogger(ln)
		m.wg.Add(1)
		go m.runLane(runCtx, ln)
	}

	m.wg.Add(1)
	go m.runReclaimer(runCtx)

	return nil
}

// Stop terminates background processing and waits for in-flight stages to
// finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) laneLogger(ln *lane) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(m.logger, "workflow-"+ln.name)
}

// runLane claims recordings for one lane and fans them out to its workers.
// Claiming happens in a single goroutine so a recording is never handed to
// two workers.
func (m *Manager) runLane(ctx context.Context, ln *lane) {
	defer m.wg.Done()

	work := make(chan *queue.Recording)
	var workers sync.WaitGroup
	for i := 0; i < ln.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for rec := range work {
				m.processRecording(ctx, ln, rec)
			}
		}()
	}
	defer func() {
		close(work)
		workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := m.claimNext(ctx, ln)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			ln.logger.Error("failed to fetch next recording", logging.Error(err))
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if rec == nil {
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.QueuePollInterval)*time.Second)
			continue
		}

		select {
		case work <- rec:
		case <-ctx.Done():
			return
		}
	}
}

// claimNext pulls the oldest eligible recording for a lane and transitions
// it into the lane's processing status before any worker touches it.
func (m *Manager) claimNext(ctx context.Context, ln *lane) (*queue.Recording, error) {
	rec, err := m.store.NextForStatuses(ctx, ln.start)
	if err != nil || rec == nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.Status = ln.processing
	rec.ErrorMessage = ""
	rec.ErrorKind = ""
	rec.LastHeartbeat = &now
	if err := m.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// runReclaimer periodically returns recordings whose worker stopped
// heartbeating to their lane's start status.
func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()

	interval := m.heartbeat.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow-reclaim")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && ctx.Err() == nil {
				logger.Warn("reclaim stale recordings failed", logging.Error(err))
			}
		}
	}
}
