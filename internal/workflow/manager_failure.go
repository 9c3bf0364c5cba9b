package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/services"
)

// verificationAttemptLimit caps verification mismatches at the initial
// attempt plus a single retry.
const verificationAttemptLimit = 2

// handleStageFailure decides what happens to a recording whose stage errored:
// permanent failures stop immediately, transient ones are rescheduled with
// exponential backoff, and recordings that exhaust the retry budget are
// quarantined for manual review.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, ln *lane, rec *queue.Recording, stageErr error) {
	m.setLastError(stageErr)

	message := failureMessage(ln.name, stageErr)
	kind := services.Kind(stageErr)
	rec.Attempts++

	// A verification mismatch means the copy itself corrupted the bytes;
	// one retry covers a flaky read, anything more is a hardware problem.
	limit := m.cfg.Mover.MaxAttempts
	if errors.Is(stageErr, services.ErrVerification) && limit > verificationAttemptLimit {
		limit = verificationAttemptLimit
	}

	switch {
	case !services.Retryable(stageErr):
		rec.SetFailed(message, kind)
		logger.Error(
			"stage failed permanently",
			logging.Error(stageErr),
			logging.String("error_kind", kind),
		)
	case rec.Attempts >= limit:
		m.quarantineExhausted(ctx, logger, rec, message, kind, stageErr)
	default:
		delay := m.retryDelay(rec.Attempts)
		retryAt := time.Now().UTC().Add(delay)
		rec.Status = ln.start
		rec.ErrorMessage = message
		rec.ErrorKind = kind
		rec.NextRetryAt = &retryAt
		rec.LastHeartbeat = nil
		logger.Warn(
			"stage failed, retry scheduled",
			logging.Error(stageErr),
			logging.String("error_kind", kind),
			logging.Int("attempt", rec.Attempts),
			logging.Duration("retry_in", delay),
		)
	}

	if err := m.store.Update(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if m.notifier != nil {
		if err := m.notifier.NotifyError(ctx, stageErr, ln.name); err != nil {
			logger.Warn("error notification failed", logging.Error(err))
		}
	}
}

// quarantineExhausted parks a recording that has used up its attempts. When
// the file itself cannot be moved aside, the recording falls back to the
// failed state so an operator can still act on it.
func (m *Manager) quarantineExhausted(ctx context.Context, logger *slog.Logger, rec *queue.Recording, message, kind string, stageErr error) {
	reason := "retry budget exhausted: " + message
	if m.quarantiner != nil {
		if err := m.quarantiner.Quarantine(ctx, rec, reason); err == nil {
			logger.Warn(
				"recording quarantined after repeated failures",
				logging.Error(stageErr),
				logging.Int("attempts", rec.Attempts),
			)
			return
		} else if !errors.Is(err, context.Canceled) {
			logger.Error("quarantine failed", logging.Error(err))
		}
	}
	rec.SetFailed(reason, kind)
}

// retryDelay doubles the base backoff per attempt, capped by configuration.
func (m *Manager) retryDelay(attempts int) time.Duration {
	base := time.Duration(m.cfg.Mover.RetryBackoff) * time.Second
	if base <= 0 {
		base = 30 * time.Second
	}
	ceiling := time.Duration(m.cfg.Mover.RetryBackoffCap) * time.Second
	if ceiling <= 0 {
		ceiling = 30 * time.Minute
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageName + " failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		return stageName + " failed"
	}
	return message
}
