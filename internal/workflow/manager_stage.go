package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"log/slog"

	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/services"
)

// processRecording runs one recording through a lane's stage. The recording
// has already been transitioned to the lane's processing status by the
// claimer.
func (m *Manager) processRecording(ctx context.Context, ln *lane, rec *queue.Recording) {
	stageCtx := services.WithRequestID(ctx, uuid.NewString())
	stageCtx = services.WithRecordingID(stageCtx, rec.ID)
	stageCtx = services.WithStage(stageCtx, ln.name)
	stageCtx = services.WithLane(stageCtx, ln.name)
	logger := logging.WithContext(stageCtx, ln.logger).With(logging.String("file", rec.FileName))

	start := time.Now()
	logger.Info("stage started", logging.String("status", string(rec.Status)))

	if err := ln.handler.Prepare(stageCtx, rec); err != nil {
		m.handleStageFailure(stageCtx, logger, ln, rec, err)
		return
	}
	if err := m.store.Update(stageCtx, rec); err != nil {
		m.persistFailure(logger, err)
		return
	}

	execErr := m.executeWithHeartbeat(stageCtx, ln, rec)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return
		}
		m.handleStageFailure(stageCtx, logger, ln, rec, execErr)
		return
	}

	// Handlers may land on a terminal status themselves (duplicate
	// quarantine); otherwise the lane's done status applies.
	if rec.Status == ln.processing {
		rec.Status = ln.done
	}
	rec.LastHeartbeat = nil
	rec.NextRetryAt = nil
	if rec.Status == queue.StatusMoved {
		rec.Attempts = 0
	}
	if err := m.store.Update(stageCtx, rec); err != nil {
		m.persistFailure(logger, err)
		return
	}

	logger.Info(
		"stage completed",
		logging.String("next_status", string(rec.Status)),
		logging.Duration("stage_duration", time.Since(start)),
	)
}

// executeWithHeartbeat runs the handler while a background loop keeps the
// recording's heartbeat fresh so the reclaimer leaves it alone.
func (m *Manager) executeWithHeartbeat(ctx context.Context, ln *lane, rec *queue.Recording) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, rec.ID)

	execErr := ln.handler.Execute(ctx, rec)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) persistFailure(logger *slog.Logger, err error) {
	wrapped := fmt.Errorf("persist stage result: %w", err)
	logger.Error("failed to persist stage result", logging.Error(wrapped))
	m.setLastError(wrapped)
}
