package watchfolder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"dvrmanager/internal/config"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/stage"
)

// observation tracks one in-flight file between scans.
type observation struct {
	size     int64
	modTime  time.Time
	seenAt   time.Time
	stable   int
	recordID int64
}

// Tracker watches the recording folder and promotes files to the queue once
// they stop growing. A recorder writes for the length of a broadcast, so a
// file only counts as done after consecutive unchanged observations spaced
// far enough apart.
type Tracker struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger

	// now is swappable so tests can step time instead of sleeping.
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*observation
}

// NewTracker constructs a tracker over the configured watch directory.
func NewTracker(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Tracker {
	if logger != nil {
		logger = logging.NewComponentLogger(logger, "watchfolder")
	}
	return &Tracker{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		pending: make(map[string]*observation),
	}
}

// Scan walks the watch directory once, updating stability state for every
// candidate file and flagging queued files whose source disappeared. It is
// called at startup to prime existing contents, then on every poll tick and
// filesystem event.
func (t *Tracker) Scan(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]struct{})
	err := filepath.WalkDir(t.cfg.Paths.WatchDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		if !t.eligible(path) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			// File vanished mid-walk; the disappearance sweep handles it.
			return nil
		}
		seen[path] = struct{}{}
		t.observe(ctx, path, info)
		return nil
	})
	if err != nil {
		return err
	}

	// Drop tracking state for files that vanished before reaching stable.
	for path := range t.pending {
		if _, ok := seen[path]; !ok {
			delete(t.pending, path)
		}
	}

	return t.sweepDisappeared(ctx)
}

// observe advances the stability state machine for one file.
func (t *Tracker) observe(ctx context.Context, path string, info fs.FileInfo) {
	logger := logging.WithContext(ctx, t.logger)
	now := t.now()

	obs, ok := t.pending[path]
	if !ok {
		rec, err := t.ensureRecording(ctx, path, info.Size())
		if err != nil {
			logger.Warn("track new file failed", logging.String("path", path), logging.Error(err))
			return
		}
		if rec == nil {
			return
		}
		t.pending[path] = &observation{
			size:     info.Size(),
			modTime:  info.ModTime(),
			seenAt:   now,
			recordID: rec.ID,
		}
		logger.Info("tracking new recording", logging.String("path", path), logging.Int64("size", info.Size()))
		return
	}

	if info.Size() != obs.size || !info.ModTime().Equal(obs.modTime) {
		obs.size = info.Size()
		obs.modTime = info.ModTime()
		obs.seenAt = now
		obs.stable = 0
		return
	}

	interval := time.Duration(t.cfg.Tracker.StabilityInterval) * time.Second
	if now.Sub(obs.seenAt) < interval {
		return
	}
	obs.seenAt = now
	obs.stable++
	if obs.stable < t.cfg.Tracker.StableObservations {
		return
	}

	if err := t.promote(ctx, obs.recordID, info.Size()); err != nil {
		logger.Warn("promote recording failed", logging.String("path", path), logging.Error(err))
		return
	}
	delete(t.pending, path)
	logger.Info("recording fully written", logging.String("path", path), logging.Int64("size", info.Size()))
}

// ensureRecording returns the queue row for a path, inserting one in the
// writing state on first sighting. Returns nil when the row is already past
// the tracker's responsibility.
func (t *Tracker) ensureRecording(ctx context.Context, path string, size int64) (*queue.Recording, error) {
	rec, err := t.store.FindBySourcePath(ctx, path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return t.store.NewRecording(ctx, path, size)
	}
	if rec.Status == queue.StatusWriting {
		return rec, nil
	}
	return nil, nil
}

func (t *Tracker) promote(ctx context.Context, id int64, size int64) error {
	rec, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != queue.StatusWriting {
		return nil
	}
	rec.Status = queue.StatusStable
	rec.SizeBytes = size
	return t.store.Update(ctx, rec)
}

// sweepDisappeared fails queue rows whose source file no longer exists.
// Only pre-processing rows are swept; later stages check the source
// themselves.
func (t *Tracker) sweepDisappeared(ctx context.Context) error {
	logger := logging.WithContext(ctx, t.logger)
	recs, err := t.store.List(ctx, queue.StatusWriting, queue.StatusStable)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, err := os.Stat(rec.SourcePath); err == nil || !os.IsNotExist(err) {
			continue
		}
		if err := t.store.MarkDisappeared(ctx, rec.ID); err != nil {
			logger.Warn("mark disappeared failed", logging.Int64("id", rec.ID), logging.Error(err))
			continue
		}
		delete(t.pending, rec.SourcePath)
		logger.Info("source file disappeared", logging.String("path", rec.SourcePath))
	}
	return nil
}

// eligible applies the extension and size filters from configuration.
func (t *Tracker) eligible(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, ignored := range t.cfg.Tracker.IgnoreExtensions {
		if ext == ignored {
			return false
		}
	}
	if t.cfg.Tracker.MinFileSizeBytes > 0 {
		info, err := os.Stat(path)
		if err != nil || info.Size() < t.cfg.Tracker.MinFileSizeBytes {
			return false
		}
	}
	return true
}

// HealthCheck verifies the watch directory is readable.
func (t *Tracker) HealthCheck(ctx context.Context) stage.Health {
	if _, err := os.ReadDir(t.cfg.Paths.WatchDir); err != nil {
		return stage.Unhealthy("watchfolder", err.Error())
	}
	return stage.Healthy("watchfolder")
}
