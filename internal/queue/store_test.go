package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dvrmanager/internal/queue"
	"dvrmanager/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec, err := store.NewRecording(ctx, "/recordings/show.ts", 1024)
	if err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected recording ID to be assigned")
	}
	if rec.Status != queue.StatusWriting {
		t.Fatalf("expected new recording in writing state, got %s", rec.Status)
	}
	if rec.FileName != "show.ts" {
		t.Fatalf("unexpected file name: %q", rec.FileName)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourcePath != "/recordings/show.ts" {
		t.Fatalf("unexpected fetched recording: %#v", fetched)
	}

	found, err := store.FindBySourcePath(ctx, "/recordings/show.ts")
	if err != nil {
		t.Fatalf("FindBySourcePath failed: %v", err)
	}
	if found == nil || found.ID != rec.ID {
		t.Fatalf("expected to find inserted recording, got %#v", found)
	}
}

func TestNewRecordingRejectsDuplicateSourcePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewRecording(ctx, "/recordings/dup.ts", 1); err != nil {
		t.Fatalf("NewRecording failed: %v", err)
	}
	if _, err := store.NewRecording(ctx, "/recordings/dup.ts", 1); err == nil {
		t.Fatal("expected error for duplicate source path")
	}
}

func TestUpdateRoundTripsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, "/recordings/update.ts", 10)
	retryAt := time.Now().Add(time.Minute).UTC()
	rec.Status = queue.StatusFailed
	rec.Fingerprint = "abc123"
	rec.IdentityJSON = `{"title":"Example"}`
	rec.Confidence = 0.92
	rec.IdentitySource = "tmdb"
	rec.PlannedPath = "/tv/Example/Season 01/Example - S01E02 - Pilot.ts"
	rec.ErrorMessage = "boom"
	rec.ErrorKind = "transient"
	rec.Attempts = 2
	rec.NextRetryAt = &retryAt
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.Attempts != 2 {
		t.Fatalf("unexpected recording: %#v", fetched)
	}
	if fetched.NextRetryAt == nil || !fetched.NextRetryAt.Equal(retryAt) {
		t.Fatalf("unexpected next retry: %v", fetched.NextRetryAt)
	}
	if fetched.Confidence != 0.92 || fetched.IdentitySource != "tmdb" {
		t.Fatalf("identity fields not persisted: %#v", fetched)
	}
}

func TestNextForStatusesSkipsPendingRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	waiting := testsupport.NewRecording(t, store, "/recordings/waiting.ts", 1)
	future := time.Now().Add(time.Hour).UTC()
	waiting.Status = queue.StatusStable
	waiting.NextRetryAt = &future
	if err := store.Update(ctx, waiting); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusStable)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no eligible recording, got %#v", next)
	}

	past := time.Now().Add(-time.Minute).UTC()
	waiting.NextRetryAt = &past
	if err := store.Update(ctx, waiting); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusStable)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != waiting.ID {
		t.Fatalf("expected recording after retry elapsed, got %#v", next)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"resolving", queue.StatusResolving, queue.StatusStable},
		{"moving", queue.StatusMoving, queue.StatusResolved},
	}
	var ids []int64
	for i, tc := range cases {
		rec := testsupport.NewRecording(t, store, fmt.Sprintf("/recordings/reset-%d.ts", i), 1)
		rec.Status = tc.initialStatus
		if err := store.Update(ctx, rec); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if affected != int64(len(cases)) {
		t.Fatalf("expected %d recordings reset, got %d", len(cases), affected)
	}

	for i, tc := range cases {
		rec, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if rec.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, rec.Status)
		}
	}
}

func TestReclaimStaleProcessingHonorsHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewRecording(t, store, "/recordings/stale.ts", 1)
	staleBeat := time.Now().Add(-10 * time.Minute).UTC()
	stale.Status = queue.StatusResolving
	stale.LastHeartbeat = &staleBeat
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewRecording(t, store, "/recordings/fresh.ts", 1)
	freshBeat := time.Now().UTC()
	fresh.Status = queue.StatusMoving
	fresh.LastHeartbeat = &freshBeat
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cutoff := time.Now().Add(-5 * time.Minute)
	affected, err := store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 recording reclaimed, got %d", affected)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusStable {
		t.Fatalf("expected reclaimed recording stable, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on reclaim")
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusMoving {
		t.Fatalf("expected fresh recording untouched, got %s", untouched.Status)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, "/recordings/failed.ts", 1)
	rec.SetFailed("verification mismatch", "verification")
	rec.Attempts = 3
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := store.RetryFailed(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 recording retried, got %d", affected)
	}

	retried, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retried.Status != queue.StatusStable {
		t.Fatalf("expected stable after retry, got %s", retried.Status)
	}
	if retried.Attempts != 0 || retried.ErrorMessage != "" {
		t.Fatalf("expected attempts and error cleared: %#v", retried)
	}
}

func TestRetryQuarantinedRewritesSourcePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, "/recordings/parked.ts", 1)
	rec.SetQuarantined("/quarantine/parked.ts", "retries exhausted")
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := store.RetryQuarantined(ctx, rec.ID)
	if err != nil {
		t.Fatalf("RetryQuarantined failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 recording released, got %d", affected)
	}

	released, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if released.Status != queue.StatusStable {
		t.Fatalf("expected stable after release, got %s", released.Status)
	}
	if released.SourcePath != "/quarantine/parked.ts" {
		t.Fatalf("expected source rewritten to quarantine path, got %q", released.SourcePath)
	}
	if released.FinalPath != "" {
		t.Fatalf("expected final path cleared, got %q", released.FinalPath)
	}
}

func TestStatsAndHealthBuckets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusWriting,
		queue.StatusStable,
		queue.StatusResolving,
		queue.StatusMoved,
		queue.StatusFailed,
		queue.StatusQuarantined,
	}
	for i, status := range statuses {
		rec := testsupport.NewRecording(t, store, fmt.Sprintf("/recordings/h-%d.ts", i), 1)
		rec.Status = status
		if err := store.Update(ctx, rec); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != len(statuses) {
		t.Fatalf("expected total %d, got %d", len(statuses), health.Total)
	}
	if health.Writing != 1 || health.Pending != 1 || health.Processing != 1 {
		t.Fatalf("unexpected buckets: %#v", health)
	}
	if health.Moved != 1 || health.Failed != 1 || health.Quarantined != 1 {
		t.Fatalf("unexpected buckets: %#v", health)
	}
}

func TestMoveRecordsAppendOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	rec := testsupport.NewRecording(t, store, "/recordings/audit.ts", 1)

	first := &queue.MoveRecord{
		RecordingID: rec.ID,
		SourcePath:  rec.SourcePath,
		Outcome:     queue.OutcomeFailed,
		Detail:      "destination filesystem full",
		Attempt:     1,
	}
	if err := store.AppendMoveRecord(ctx, first); err != nil {
		t.Fatalf("AppendMoveRecord failed: %v", err)
	}
	second := &queue.MoveRecord{
		RecordingID: rec.ID,
		SourcePath:  rec.SourcePath,
		DestPath:    "/tv/Example/Season 01/Example - S01E01 - Pilot.ts",
		Outcome:     queue.OutcomeMoved,
		Attempt:     2,
		BytesCopied: 1024,
		Checksum:    "deadbeef",
	}
	if err := store.AppendMoveRecord(ctx, second); err != nil {
		t.Fatalf("AppendMoveRecord failed: %v", err)
	}

	records, err := store.MoveRecordsForRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("MoveRecordsForRecording failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Outcome != queue.OutcomeFailed || records[1].Outcome != queue.OutcomeMoved {
		t.Fatalf("unexpected record order: %#v", records)
	}

	// Clearing recordings must leave the audit trail intact.
	if _, err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	records, err = store.MoveRecordsForRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("MoveRecordsForRecording failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected audit trail to survive clear, got %d records", len(records))
	}

	recent, err := store.RecentMoveRecords(ctx, 1)
	if err != nil {
		t.Fatalf("RecentMoveRecords failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != queue.OutcomeMoved {
		t.Fatalf("unexpected recent records: %#v", recent)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Moved "); !ok || status != queue.StatusMoved {
		t.Fatalf("unexpected parse result: %v %v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
