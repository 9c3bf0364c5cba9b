package mover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"dvrmanager/internal/config"
	"dvrmanager/internal/fileutil"
	"dvrmanager/internal/identify"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/notifications"
	"dvrmanager/internal/plex"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/services"
	"dvrmanager/internal/testsupport"
)

func newMover(cfg *config.Config, store *queue.Store) *Mover {
	return NewMoverWithDependencies(cfg, store, logging.NewNop(), notifications.NewService(cfg), plex.NewService(cfg))
}

func seedRecording(t *testing.T, cfg *config.Config, store *queue.Store, name string, content []byte) *queue.Recording {
	t.Helper()

	src := filepath.Join(cfg.Paths.WatchDir, name)
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir watch dir: %v", err)
	}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	rec := testsupport.NewRecording(t, store, src, int64(len(content)))
	identity := identify.MediaIdentity{
		Title:      "Known Show",
		Season:     1,
		Episode:    2,
		Confidence: 0.95,
		Source:     identify.SourceLocal,
	}
	payload, err := identity.Marshal()
	if err != nil {
		t.Fatalf("marshal identity: %v", err)
	}
	rec.IdentityJSON = payload
	rec.Status = queue.StatusResolved
	if err := store.Update(context.Background(), rec); err != nil {
		t.Fatalf("update recording: %v", err)
	}
	return rec
}

func TestTransferRefusesOccupiedDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newMover(cfg, store)

	src := filepath.Join(cfg.Paths.WatchDir, "race.ts")
	if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("challenger content"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(cfg.Paths.TVDir, "Known Show", "Season 01", "Known Show - S01E02.ts")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("settled content - different"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.transfer(src, dest); !errors.Is(err, errDestinationOccupied) {
		t.Fatalf("expected occupied destination error, got %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "settled content - different" {
		t.Fatalf("destination clobbered, now holds %q", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should be untouched: %v", err)
	}
}

func TestMoverReplansWhenDestinationTaken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newMover(cfg, store)

	// Simulate a concurrent worker landing its file at the planned path in
	// the window between planning and reservation.
	raced := false
	m.reserve = func(dest string) (func(), error) {
		if !raced {
			raced = true
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(dest, []byte("winner"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return reserveDestination(dest)
	}

	rec := seedRecording(t, cfg, store, "Known Show - S01E02.ts", []byte("challenger bytes, longer"))
	if err := m.Execute(context.Background(), rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	season := filepath.Join(cfg.Paths.TVDir, "Known Show", "Season 01")
	wantDest := filepath.Join(season, "Known Show - S01E02-2.ts")
	if rec.FinalPath != wantDest {
		t.Fatalf("FinalPath = %q, want %q", rec.FinalPath, wantDest)
	}

	winner, err := os.ReadFile(filepath.Join(season, "Known Show - S01E02.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if string(winner) != "winner" {
		t.Fatalf("first file clobbered, now holds %q", winner)
	}
	moved, err := os.ReadFile(wantDest)
	if err != nil {
		t.Fatal(err)
	}
	if string(moved) != "challenger bytes, longer" {
		t.Fatalf("moved content = %q", moved)
	}
}

func TestMoverVerificationMismatchRetryThenSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newMover(cfg, store)

	failed := false
	m.transferFile = func(src, dest string) (string, error) {
		if !failed {
			failed = true
			return "", wrapCopyError(fmt.Errorf("file corrupted during copy: %w", fileutil.ErrChecksumMismatch))
		}
		return m.transfer(src, dest)
	}

	rec := seedRecording(t, cfg, store, "Known Show - S01E02.ts", []byte("sixty four bytes of payload"))
	ctx := context.Background()

	err := m.Execute(ctx, rec)
	if !errors.Is(err, services.ErrVerification) {
		t.Fatalf("expected verification error, got %v", err)
	}
	if kind := services.Kind(err); kind != "verification" {
		t.Fatalf("kind = %q", kind)
	}

	// The workflow increments the attempt counter when it schedules the
	// retry; mirror that before running the stage again.
	rec.Attempts = 1
	if err := m.Execute(ctx, rec); err != nil {
		t.Fatalf("retry Execute: %v", err)
	}

	records, err := store.MoveRecordsForRecording(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(records))
	}
	var failedAttempt, movedAttempt int
	for _, record := range records {
		switch record.Outcome {
		case queue.OutcomeFailed:
			failedAttempt = record.Attempt
		case queue.OutcomeMoved:
			movedAttempt = record.Attempt
		default:
			t.Fatalf("unexpected outcome %q", record.Outcome)
		}
	}
	if failedAttempt != 1 {
		t.Fatalf("failed row attempt = %d, want 1", failedAttempt)
	}
	if movedAttempt != 2 {
		t.Fatalf("moved row attempt = %d, want 2", movedAttempt)
	}
}

func TestWrapCopyErrorClassifiesMismatch(t *testing.T) {
	mismatch := wrapCopyError(fmt.Errorf("copy: %w", fileutil.ErrChecksumMismatch))
	if !errors.Is(mismatch, services.ErrVerification) {
		t.Fatalf("expected verification classification, got %v", mismatch)
	}
	other := wrapCopyError(errors.New("device unplugged"))
	if !errors.Is(other, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", other)
	}
}

func TestQuarantineFailsOnUnreadableCandidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := newMover(cfg, store)

	rec := seedRecording(t, cfg, store, "stuck.ts", []byte("payload"))

	// A self-referential symlink makes every stat of the candidate fail
	// with ELOOP rather than not-exist.
	link := filepath.Join(cfg.Paths.QuarantineDir, "stuck.ts")
	if err := os.Symlink(link, link); err != nil {
		t.Fatal(err)
	}

	if err := m.Quarantine(context.Background(), rec, "because"); err == nil {
		t.Fatal("expected error when quarantine candidate cannot be probed")
	}
	if rec.Status == queue.StatusQuarantined {
		t.Fatalf("recording should not be marked quarantined, status = %q", rec.Status)
	}
}
