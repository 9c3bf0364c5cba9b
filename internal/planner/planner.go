package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dvrmanager/internal/config"
	"dvrmanager/internal/fileutil"
	"dvrmanager/internal/identify"
	"dvrmanager/internal/services"
	"dvrmanager/internal/textutil"
)

// maxCollisionAttempts bounds the suffix scan so a pathological directory
// cannot loop forever.
const maxCollisionAttempts = 100

// Plan describes where a recording belongs in the library and whether an
// identical copy already lives there.
type Plan struct {
	// DestDir is the library directory the file belongs in.
	DestDir string
	// FileName is the final basename, including any collision suffix.
	FileName string
	// DestPath is filepath.Join(DestDir, FileName).
	DestPath string
	// Duplicate reports that a byte-identical file already exists in the
	// library. DuplicateOf names it.
	Duplicate   bool
	DuplicateOf string
}

// Planner maps resolved identities onto library paths.
type Planner struct {
	cfg *config.Config
}

// New constructs a planner over the configured library roots.
func New(cfg *config.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan computes the destination for sourcePath given its resolved identity.
// The returned plan is deterministic for a given identity and library state:
// the first file for an identity gets the bare name, and later files with
// differing content get -2, -3, and so on.
func (p *Planner) Plan(sourcePath string, identity identify.MediaIdentity) (*Plan, error) {
	title := strings.TrimSpace(identity.Title)
	if title == "" {
		return nil, services.Wrap(
			services.ErrPermanent,
			"planning",
			"validate identity",
			"Identity has no title to place by",
			nil,
		)
	}

	ext := filepath.Ext(sourcePath)
	destDir, stem, err := p.layout(identity)
	if err != nil {
		return nil, err
	}

	plan := &Plan{DestDir: destDir}
	if err := p.resolveCollision(sourcePath, plan, stem, ext); err != nil {
		return nil, err
	}
	return plan, nil
}

// layout returns the destination directory and filename stem for an identity,
// before collision handling.
func (p *Planner) layout(identity identify.MediaIdentity) (string, string, error) {
	title := textutil.SanitizeFileName(identity.Title)

	if identity.Movie {
		folder := title
		if identity.Year > 0 {
			folder = fmt.Sprintf("%s (%d)", title, identity.Year)
		}
		return filepath.Join(p.cfg.Paths.MoviesDir, folder), folder, nil
	}

	switch {
	case identity.Season > 0 && identity.Episode > 0:
		dir := filepath.Join(p.cfg.Paths.TVDir, title, fmt.Sprintf("Season %02d", identity.Season))
		stem := fmt.Sprintf("%s - S%02dE%02d", title, identity.Season, identity.Episode)
		if episodeTitle := textutil.SanitizeFileName(identity.EpisodeTitle); episodeTitle != "" {
			stem = stem + " - " + episodeTitle
		}
		return dir, stem, nil
	case identity.AirDate != "":
		year := identity.AirDate
		if len(year) > 4 {
			year = year[:4]
		}
		dir := filepath.Join(p.cfg.Paths.TVDir, title, "Season "+year)
		stem := fmt.Sprintf("%s - %s", title, identity.AirDate)
		return dir, stem, nil
	default:
		// A bare title with no episodic structure places like a movie so it
		// stays findable instead of stranding under an invented season.
		folder := title
		if identity.Year > 0 {
			folder = fmt.Sprintf("%s (%d)", title, identity.Year)
		}
		return filepath.Join(p.cfg.Paths.MoviesDir, folder), folder, nil
	}
}

// resolveCollision walks the -2/-3 suffix sequence until it finds either a
// free slot or a byte-identical existing file.
func (p *Planner) resolveCollision(sourcePath string, plan *Plan, stem, ext string) error {
	for n := 1; n <= maxCollisionAttempts; n++ {
		name := stem + ext
		if n > 1 {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		candidate := filepath.Join(plan.DestDir, name)
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			plan.FileName = name
			plan.DestPath = candidate
			return nil
		}
		if err != nil {
			return services.Wrap(services.ErrTransient, "planning", "stat destination", "Cannot inspect library destination", err)
		}
		same, err := fileutil.SameContent(sourcePath, candidate)
		if err != nil {
			return services.Wrap(services.ErrTransient, "planning", "compare destination", "Cannot compare recording against existing library file", err)
		}
		if same {
			plan.FileName = name
			plan.DestPath = candidate
			plan.Duplicate = true
			plan.DuplicateOf = candidate
			return nil
		}
	}
	return services.Wrap(
		services.ErrPermanent,
		"planning",
		"resolve collision",
		fmt.Sprintf("Gave up after %d collision suffixes in %s", maxCollisionAttempts, plan.DestDir),
		nil,
	)
}
