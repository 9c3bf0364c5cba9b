package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recording.
type Status string

const (
	StatusWriting     Status = "writing"
	StatusStable      Status = "stable"
	StatusResolving   Status = "resolving"
	StatusResolved    Status = "resolved"
	StatusMoving      Status = "moving"
	StatusMoved       Status = "moved"
	StatusFailed      Status = "failed"
	StatusQuarantined Status = "quarantined"
)

var allStatuses = []Status{
	StatusWriting,
	StatusStable,
	StatusResolving,
	StatusResolved,
	StatusMoving,
	StatusMoved,
	StatusFailed,
	StatusQuarantined,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusResolving: {},
	StatusMoving:    {},
}

// MoveOutcome labels a row in the move_records audit trail.
type MoveOutcome string

const (
	OutcomeMoved               MoveOutcome = "moved"
	OutcomeDuplicateDeleted    MoveOutcome = "duplicate_deleted"
	OutcomeDuplicateQuarantine MoveOutcome = "duplicate_quarantined"
	OutcomeQuarantined         MoveOutcome = "quarantined"
	OutcomeFailed              MoveOutcome = "failed"
)

// DatabaseHealth captures diagnostic information about the recordings database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalRecordings  int
	Error            string
}

// HealthSummary describes aggregated recording counts per lifecycle bucket.
type HealthSummary struct {
	Total       int
	Writing     int
	Pending     int
	Processing  int
	Failed      int
	Moved       int
	Quarantined int
}

// Recording represents a tracked recording persisted in SQLite.
type Recording struct {
	ID             int64
	SourcePath     string
	FileName       string
	Fingerprint    string
	Status         Status
	SizeBytes      int64
	IdentityJSON   string
	Confidence     float64
	IdentitySource string
	PlannedPath    string
	FinalPath      string
	ErrorMessage   string
	ErrorKind      string
	Attempts       int
	NextRetryAt    *time.Time
	LastHeartbeat  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MoveRecord is one row of the append-only placement audit trail.
type MoveRecord struct {
	ID          int64
	RecordingID int64
	SourcePath  string
	DestPath    string
	Outcome     MoveOutcome
	Detail      string
	Attempt     int
	BytesCopied int64
	Checksum    string
	DurationMs  int64
	CreatedAt   time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// SetFailed marks the recording as failed with the given error message and
// classification. The heartbeat is cleared so the recording is not reclaimed
// as stale.
func (r *Recording) SetFailed(message, kind string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ErrorKind = kind
	r.LastHeartbeat = nil
}

// SetQuarantined marks the recording as quarantined at the given path.
func (r *Recording) SetQuarantined(path, reason string) {
	r.Status = StatusQuarantined
	r.FinalPath = path
	r.ErrorMessage = reason
	r.LastHeartbeat = nil
	r.NextRetryAt = nil
}
