package mover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"dvrmanager/internal/config"
	"dvrmanager/internal/identify"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/notifications"
	"dvrmanager/internal/planner"
	"dvrmanager/internal/plex"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/services"
	"dvrmanager/internal/stage"
)

// maxReplanAttempts bounds how often Execute replans after losing a
// destination race to a concurrent worker.
const maxReplanAttempts = 10

// Mover places resolved recordings into the library tree.
type Mover struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	planner  *planner.Planner
	notifier notifications.Service
	plex     plex.Service

	// Seams for tests; production wiring is set in the constructor.
	reserve      func(dest string) (func(), error)
	transferFile func(src, dest string) (string, error)
}

// NewMover constructs the mover stage handler using default dependencies.
func NewMover(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Mover {
	return NewMoverWithDependencies(cfg, store, logger, notifications.NewService(cfg), plex.NewService(cfg))
}

// NewMoverWithDependencies allows injecting collaborators (used in tests).
func NewMoverWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, plexSvc plex.Service) *Mover {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = logging.NewComponentLogger(stageLogger, "mover")
	}
	m := &Mover{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		planner:  planner.New(cfg),
		notifier: notifier,
		plex:     plexSvc,
	}
	m.reserve = reserveDestination
	m.transferFile = m.transfer
	return m
}

// Prepare validates the source still exists and records the planned
// destination so operators can see where a recording is headed.
func (m *Mover) Prepare(ctx context.Context, rec *queue.Recording) error {
	if _, err := os.Stat(rec.SourcePath); err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrPermanent, "moving", "stat source", "Source file disappeared before move", err)
		}
		return services.Wrap(services.ErrTransient, "moving", "stat source", "Cannot inspect source file", err)
	}

	identity, err := identify.ParseIdentity(rec.IdentityJSON)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "moving", "load identity", "Recording has no usable identity; resolve it first", err)
	}

	plan, err := m.planner.Plan(rec.SourcePath, identity)
	if err != nil {
		return err
	}
	rec.PlannedPath = plan.DestPath
	return nil
}

// Execute moves the recording into the library, replanning first so
// collision and duplicate state reflect the library as it is right now.
// Every attempt, successful or not, lands one row in the audit trail.
func (m *Mover) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, m.logger)
	attempt := rec.Attempts + 1
	start := time.Now()

	identity, err := identify.ParseIdentity(rec.IdentityJSON)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "moving", "load identity", "Recording has no usable identity; resolve it first", err)
	}

	var plan *planner.Plan
	var method string
	for tries := 0; ; tries++ {
		plan, err = m.planner.Plan(rec.SourcePath, identity)
		if err != nil {
			m.record(ctx, rec, &queue.MoveRecord{
				Outcome: queue.OutcomeFailed,
				Detail:  err.Error(),
				Attempt: attempt,
			}, start)
			return err
		}
		rec.PlannedPath = plan.DestPath

		if plan.Duplicate {
			return m.handleDuplicate(ctx, rec, identity, plan, attempt, start)
		}

		if err := m.preflightFreeSpace(plan.DestDir, rec.SizeBytes); err != nil {
			m.record(ctx, rec, &queue.MoveRecord{
				Outcome:  queue.OutcomeFailed,
				DestPath: plan.DestPath,
				Detail:   err.Error(),
				Attempt:  attempt,
			}, start)
			return err
		}

		method, err = m.transferFile(rec.SourcePath, plan.DestPath)
		if errors.Is(err, errDestinationOccupied) && tries < maxReplanAttempts {
			// Another worker landed a file here between planning and
			// commit; the next plan sees it and picks a fresh name.
			logger.Info("destination taken, replanning", logging.String("dest", plan.DestPath))
			continue
		}
		if err != nil {
			m.record(ctx, rec, &queue.MoveRecord{
				Outcome:  queue.OutcomeFailed,
				DestPath: plan.DestPath,
				Detail:   err.Error(),
				Attempt:  attempt,
			}, start)
			return err
		}
		break
	}

	checksum, sumErr := checksumDestination(plan.DestPath)
	if sumErr != nil {
		logger.Warn("checksum after move failed", logging.Error(sumErr))
	}

	detail := method
	if identity.Ambiguity != "" {
		detail = fmt.Sprintf("%s; %s", method, identity.Ambiguity)
	}
	m.record(ctx, rec, &queue.MoveRecord{
		Outcome:     queue.OutcomeMoved,
		DestPath:    plan.DestPath,
		Detail:      detail,
		Attempt:     attempt,
		BytesCopied: rec.SizeBytes,
		Checksum:    checksum,
	}, start)

	rec.FinalPath = plan.DestPath
	rec.ErrorMessage = ""
	rec.ErrorKind = ""
	logger.Info(
		"recording moved",
		logging.String("title", identity.Describe()),
		logging.String("dest", plan.DestPath),
		logging.String("method", method),
	)

	if err := m.notifier.NotifyMoveCompleted(ctx, identity.Describe(), plan.DestPath); err != nil {
		logger.Warn("move notification failed", logging.Error(err))
	}
	m.refreshLibrary(ctx, logger, identity)
	return nil
}

// handleDuplicate disposes of a recording whose byte-identical copy is
// already in the library, per the configured policy.
func (m *Mover) handleDuplicate(ctx context.Context, rec *queue.Recording, identity identify.MediaIdentity, plan *planner.Plan, attempt int, start time.Time) error {
	logger := logging.WithContext(ctx, m.logger)

	switch m.cfg.Mover.DuplicatePolicy {
	case config.DuplicatePolicyQuarantine:
		qpath, err := m.moveToQuarantine(rec.SourcePath)
		if err != nil {
			m.record(ctx, rec, &queue.MoveRecord{
				Outcome: queue.OutcomeFailed,
				Detail:  err.Error(),
				Attempt: attempt,
			}, start)
			return err
		}
		reason := "duplicate of " + plan.DuplicateOf
		rec.SetQuarantined(qpath, reason)
		m.record(ctx, rec, &queue.MoveRecord{
			Outcome:  queue.OutcomeDuplicateQuarantine,
			DestPath: qpath,
			Detail:   reason,
			Attempt:  attempt,
		}, start)
		logger.Info("duplicate quarantined", logging.String("existing", plan.DuplicateOf), logging.String("quarantine", qpath))
		if err := m.notifier.NotifyQuarantined(ctx, rec.FileName, reason); err != nil {
			logger.Warn("quarantine notification failed", logging.Error(err))
		}
		return nil
	default:
		if err := os.Remove(rec.SourcePath); err != nil {
			wrapped := services.Wrap(services.ErrTransient, "moving", "delete duplicate", "Cannot remove duplicate source", err)
			m.record(ctx, rec, &queue.MoveRecord{
				Outcome: queue.OutcomeFailed,
				Detail:  wrapped.Error(),
				Attempt: attempt,
			}, start)
			return wrapped
		}
		rec.FinalPath = plan.DuplicateOf
		rec.ErrorMessage = ""
		rec.ErrorKind = ""
		m.record(ctx, rec, &queue.MoveRecord{
			Outcome:  queue.OutcomeDuplicateDeleted,
			DestPath: plan.DuplicateOf,
			Detail:   "source deleted",
			Attempt:  attempt,
		}, start)
		logger.Info("duplicate deleted", logging.String("existing", plan.DuplicateOf))
		if err := m.notifier.NotifyDuplicate(ctx, identity.Describe(), plan.DuplicateOf); err != nil {
			logger.Warn("duplicate notification failed", logging.Error(err))
		}
		return nil
	}
}

// Quarantine parks a recording's file for manual review and marks the row
// accordingly. Used by the workflow when a recording exhausts its retry
// budget or cannot be identified at all.
func (m *Mover) Quarantine(ctx context.Context, rec *queue.Recording, reason string) error {
	logger := logging.WithContext(ctx, m.logger)

	qpath, err := m.moveToQuarantine(rec.SourcePath)
	if err != nil {
		return err
	}
	rec.SetQuarantined(qpath, reason)
	m.record(ctx, rec, &queue.MoveRecord{
		Outcome:  queue.OutcomeQuarantined,
		DestPath: qpath,
		Detail:   reason,
		Attempt:  rec.Attempts,
	}, time.Now())
	logger.Info("recording quarantined", logging.String("path", qpath), logging.String("reason", reason))
	if err := m.notifier.NotifyQuarantined(ctx, rec.FileName, reason); err != nil {
		logger.Warn("quarantine notification failed", logging.Error(err))
	}
	return nil
}

// moveToQuarantine relocates a file into the quarantine directory under a
// collision-safe name and returns the new path.
func (m *Mover) moveToQuarantine(sourcePath string) (string, error) {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dest := filepath.Join(m.cfg.Paths.QuarantineDir, base)
	for n := 2; ; n++ {
		_, err := os.Stat(dest)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "moving", "quarantine", "Cannot probe quarantine path", err)
		}
		dest = filepath.Join(m.cfg.Paths.QuarantineDir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}

	if _, err := m.transfer(sourcePath, dest); err != nil {
		return "", services.Wrap(services.ErrTransient, "moving", "quarantine", "Cannot move file into quarantine", err)
	}
	return dest, nil
}

func (m *Mover) refreshLibrary(ctx context.Context, logger *slog.Logger, identity identify.MediaIdentity) {
	var err error
	if identity.Movie {
		err = m.plex.RefreshMovies(ctx)
	} else {
		err = m.plex.RefreshTV(ctx)
	}
	if err != nil {
		logger.Warn("plex refresh failed", logging.Error(err), logging.Bool("movie", identity.Movie))
	}
}

// record appends one audit row, filling in the recording identifiers and
// elapsed time. Audit failures are logged but never fail the move itself.
func (m *Mover) record(ctx context.Context, rec *queue.Recording, record *queue.MoveRecord, start time.Time) {
	record.RecordingID = rec.ID
	record.SourcePath = rec.SourcePath
	record.DurationMs = time.Since(start).Milliseconds()
	if err := m.store.AppendMoveRecord(ctx, record); err != nil && m.logger != nil {
		m.logger.Warn("append move record failed", logging.Error(err))
	}
}

// HealthCheck verifies the library roots are reachable.
func (m *Mover) HealthCheck(ctx context.Context) stage.Health {
	for _, dir := range []string{m.cfg.Paths.TVDir, m.cfg.Paths.MoviesDir, m.cfg.Paths.QuarantineDir} {
		if _, err := os.Stat(dir); err != nil {
			return stage.Unhealthy("mover", fmt.Sprintf("library directory unavailable: %s", dir))
		}
	}
	return stage.Healthy("mover")
}
