package watchfolder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/testsupport"
)

// fakeClock lets scans advance tracker time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *queue.Store, *fakeClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Tracker.StabilityInterval = 30
	cfg.Tracker.StableObservations = 2
	if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	clock := &fakeClock{now: time.Now()}
	tracker := NewTracker(cfg, store, logging.NewNop())
	tracker.now = func() time.Time { return clock.now }
	return tracker, store, clock
}

func mustStatus(t *testing.T, store *queue.Store, path string) queue.Status {
	t.Helper()
	rec, err := store.FindBySourcePath(context.Background(), path)
	if err != nil {
		t.Fatalf("FindBySourcePath: %v", err)
	}
	if rec == nil {
		t.Fatalf("no recording for %s", path)
	}
	return rec.Status
}

func TestScanPromotesFileAfterStableObservations(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	path := filepath.Join(tracker.cfg.Paths.WatchDir, "show.ts")
	testsupport.WriteFile(t, path, 100)

	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusWriting {
		t.Fatalf("status after first sighting = %q", got)
	}

	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusWriting {
		t.Fatalf("status after one stable observation = %q", got)
	}

	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusStable {
		t.Fatalf("status after two stable observations = %q", got)
	}
}

func TestScanNeverPromotesGrowingFile(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	path := filepath.Join(tracker.cfg.Paths.WatchDir, "live.ts")
	testsupport.WriteFile(t, path, 100)

	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// Recorder keeps writing: the counter must reset.
	testsupport.WriteFile(t, path, 200)
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusWriting {
		t.Fatalf("growing file reached %q, want writing", got)
	}

	// One more quiet interval completes the count.
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusStable {
		t.Fatalf("quiet file stuck at %q", got)
	}
}

func TestScanRespectsObservationSpacing(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	path := filepath.Join(tracker.cfg.Paths.WatchDir, "burst.ts")
	testsupport.WriteFile(t, path, 100)

	// Rapid scans without the clock moving must not count as proof the
	// recorder finished.
	for i := 0; i < 5; i++ {
		if err := tracker.Scan(ctx); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	if got := mustStatus(t, store, path); got != queue.StatusWriting {
		t.Fatalf("status after burst scans = %q, want writing", got)
	}
}

func TestScanIgnoresFilteredFiles(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	tracker.cfg.Tracker.MinFileSizeBytes = 1024
	ctx := context.Background()

	tmp := filepath.Join(tracker.cfg.Paths.WatchDir, "partial.tmp")
	testsupport.WriteFile(t, tmp, 4096)
	small := filepath.Join(tracker.cfg.Paths.WatchDir, "tiny.ts")
	testsupport.WriteFile(t, small, 10)

	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, path := range []string{tmp, small} {
		rec, err := store.FindBySourcePath(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if rec != nil {
			t.Fatalf("filtered file %s was queued", path)
		}
	}
}

func TestScanMarksDisappearedSources(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	path := filepath.Join(tracker.cfg.Paths.WatchDir, "gone.ts")
	testsupport.WriteFile(t, path, 100)

	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}

	rec, err := store.FindBySourcePath(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Status != queue.StatusFailed {
		t.Fatalf("rec = %+v, want failed", rec)
	}
}

func TestScanFindsFilesInSubdirectories(t *testing.T) {
	tracker, store, clock := newTestTracker(t)
	ctx := context.Background()

	path := filepath.Join(tracker.cfg.Paths.WatchDir, "Channel 5", "nested.ts")
	testsupport.WriteFile(t, path, 100)

	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	clock.advance(time.Minute)
	if err := tracker.Scan(ctx); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := mustStatus(t, store, path); got != queue.StatusStable {
		t.Fatalf("nested file status = %q", got)
	}
}
