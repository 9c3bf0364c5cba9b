package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckProcessing resets recordings in processing states back to the
// start of their current stage. Called once at daemon startup to recover
// from a previous unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusResolving, StatusStable,
		StatusMoving, StatusResolved,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusResolving,
		StatusMoving,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck recordings: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight recording.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns recordings stuck in processing back to the
// start of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE recordings
        SET status = CASE status
            WHEN ? THEN ?
            WHEN ? THEN ?
            ELSE status
        END,
            last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusResolving, StatusStable,
		StatusMoving, StatusResolved,
		now.Format(time.RFC3339Nano),
		StatusResolving,
		StatusMoving,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale recordings: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed recordings back to stable for reprocessing.
// A manual retry resets the attempt counter so the recording gets a full
// set of retries again.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE recordings
            SET status = ?, error_message = NULL, error_kind = NULL,
                attempts = 0, next_retry_at = NULL, updated_at = ?
            WHERE status = ?`,
			StatusStable,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed recordings: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusStable, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE recordings
        SET status = ?, error_message = NULL, error_kind = NULL,
            attempts = 0, next_retry_at = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected recordings: %w", err)
	}
	return res.RowsAffected()
}

// RetryQuarantined moves quarantined recordings back to stable. The source
// path is rewritten to the quarantine location recorded in final_path so the
// file is picked up from where it actually lives.
func (s *Store) RetryQuarantined(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	for _, id := range ids {
		rec, err := s.GetByID(ctx, id)
		if err != nil {
			return total, err
		}
		if rec == nil || rec.Status != StatusQuarantined {
			continue
		}
		if rec.FinalPath != "" {
			rec.SourcePath = rec.FinalPath
		}
		rec.Status = StatusStable
		rec.FinalPath = ""
		rec.ErrorMessage = ""
		rec.ErrorKind = ""
		rec.Attempts = 0
		rec.NextRetryAt = nil
		if err := s.Update(ctx, rec); err != nil {
			return total, err
		}
		total++
	}
	return total, nil
}

// MarkDisappeared fails a recording whose source file vanished before it
// could be processed.
func (s *Store) MarkDisappeared(ctx context.Context, id int64) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rec.SetFailed("source file disappeared", "permanent")
	rec.NextRetryAt = nil
	return s.Update(ctx, rec)
}
