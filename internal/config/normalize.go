package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracker()
	c.normalizeIdentity()
	c.normalizeMover()
	if err := c.normalizePlex(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.TVDir, err = expandPath(c.Paths.TVDir); err != nil {
		return fmt.Errorf("paths.tv_dir: %w", err)
	}
	if c.Paths.MoviesDir, err = expandPath(c.Paths.MoviesDir); err != nil {
		return fmt.Errorf("paths.movies_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QuarantineDir) == "" {
		c.Paths.QuarantineDir = defaultQuarantineDir
	}
	if c.Paths.QuarantineDir, err = expandPath(c.Paths.QuarantineDir); err != nil {
		return fmt.Errorf("paths.quarantine_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracker() {
	if len(c.Tracker.IgnoreExtensions) == 0 {
		return
	}
	exts := make([]string, 0, len(c.Tracker.IgnoreExtensions))
	seen := make(map[string]struct{}, len(c.Tracker.IgnoreExtensions))
	for _, ext := range c.Tracker.IgnoreExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Tracker.IgnoreExtensions = exts
}

func (c *Config) normalizeIdentity() {
	if c.Identity.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.Identity.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.Identity.TMDB.BaseURL = strings.TrimSpace(c.Identity.TMDB.BaseURL)
	if c.Identity.TMDB.BaseURL == "" {
		c.Identity.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.Identity.TMDB.Language = strings.TrimSpace(c.Identity.TMDB.Language)
	if c.Identity.TMDB.Language == "" {
		c.Identity.TMDB.Language = defaultTMDBLanguage
	}
	if c.Identity.TMDB.RateLimitMs <= 0 {
		c.Identity.TMDB.RateLimitMs = defaultTMDBRateLimitMs
	}
}

func (c *Config) normalizeMover() {
	c.Mover.DuplicatePolicy = strings.ToLower(strings.TrimSpace(c.Mover.DuplicatePolicy))
	if c.Mover.DuplicatePolicy == "" {
		c.Mover.DuplicatePolicy = defaultDuplicatePolicy
	}
	if c.Mover.ResolveWorkers <= 0 {
		c.Mover.ResolveWorkers = 1
	}
	if c.Mover.MoveWorkers <= 0 {
		c.Mover.MoveWorkers = 1
	}
}

func (c *Config) normalizePlex() error {
	if c.Plex.Token == "" {
		if value, ok := os.LookupEnv("PLEX_TOKEN"); ok {
			c.Plex.Token = strings.TrimSpace(value)
		}
	}
	c.Plex.URL = strings.TrimSpace(c.Plex.URL)
	if c.Plex.URL == "" {
		c.Plex.URL = defaultPlexURL
	}
	c.Plex.PrefsPath = strings.TrimSpace(c.Plex.PrefsPath)
	if c.Plex.PrefsPath == "" {
		c.Plex.PrefsPath = defaultPlexPrefsPath
	}
	// Preferences.xml lives at an absolute container path by convention, but
	// allow a ~ override for bare-metal installs.
	if strings.HasPrefix(c.Plex.PrefsPath, "~") {
		expanded, err := expandPath(c.Plex.PrefsPath)
		if err != nil {
			return fmt.Errorf("plex.prefs_path: %w", err)
		}
		c.Plex.PrefsPath = expanded
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
