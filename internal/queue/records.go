package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendMoveRecord writes one row of the placement audit trail. Records are
// never updated or deleted by the workflow; clearing recordings leaves their
// history intact.
func (s *Store) AppendMoveRecord(ctx context.Context, record *MoveRecord) error {
	if record == nil {
		return errors.New("move record is nil")
	}
	record.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO move_records (
            recording_id, source_path, dest_path, outcome, detail,
            attempt, bytes_copied, checksum, duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RecordingID,
		record.SourcePath,
		nullableString(record.DestPath),
		record.Outcome,
		nullableString(record.Detail),
		record.Attempt,
		record.BytesCopied,
		nullableString(record.Checksum),
		record.DurationMs,
		record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert move record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// MoveRecordsForRecording returns the audit trail for one recording, oldest first.
func (s *Store) MoveRecordsForRecording(ctx context.Context, recordingID int64) ([]*MoveRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+moveRecordColumns+` FROM move_records WHERE recording_id = ? ORDER BY id`,
		recordingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query move records: %w", err)
	}
	defer rows.Close()
	return collectMoveRecords(rows)
}

// RecentMoveRecords returns the newest audit rows across all recordings.
func (s *Store) RecentMoveRecords(ctx context.Context, limit int) ([]*MoveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+moveRecordColumns+` FROM move_records ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent move records: %w", err)
	}
	defer rows.Close()
	return collectMoveRecords(rows)
}

const moveRecordColumns = "id, recording_id, source_path, dest_path, outcome, detail, attempt, bytes_copied, checksum, duration_ms, created_at"

func collectMoveRecords(rows *sql.Rows) ([]*MoveRecord, error) {
	var records []*MoveRecord
	for rows.Next() {
		var (
			id          int64
			recordingID int64
			sourcePath  string
			destPath    sql.NullString
			outcome     string
			detail      sql.NullString
			attempt     sql.NullInt64
			bytesCopied sql.NullInt64
			checksum    sql.NullString
			durationMs  sql.NullInt64
			createdRaw  sql.NullString
		)
		if err := rows.Scan(
			&id,
			&recordingID,
			&sourcePath,
			&destPath,
			&outcome,
			&detail,
			&attempt,
			&bytesCopied,
			&checksum,
			&durationMs,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		record := &MoveRecord{
			ID:          id,
			RecordingID: recordingID,
			SourcePath:  sourcePath,
			DestPath:    destPath.String,
			Outcome:     MoveOutcome(outcome),
			Detail:      detail.String,
			Attempt:     int(attempt.Int64),
			BytesCopied: bytesCopied.Int64,
			Checksum:    checksum.String,
			DurationMs:  durationMs.Int64,
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			record.CreatedAt = created
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
