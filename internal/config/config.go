package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir      string `toml:"watch_dir"`
	TVDir         string `toml:"tv_dir"`
	MoviesDir     string `toml:"movies_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	LogDir        string `toml:"log_dir"`
}

// Tracker contains configuration for stability detection in the watch directory.
type Tracker struct {
	// StabilityInterval is the minimum number of seconds between the two
	// observations that prove a file has stopped growing.
	StabilityInterval int `toml:"stability_interval"`
	// StableObservations is how many consecutive unchanged observations are
	// required before a file is considered fully written.
	StableObservations int      `toml:"stable_observations"`
	PollInterval       int      `toml:"poll_interval"`
	MinFileSizeBytes   int64    `toml:"min_file_size_bytes"`
	IgnoreExtensions   []string `toml:"ignore_extensions"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	Language    string `toml:"language"`
	RateLimitMs int    `toml:"rate_limit_ms"`
}

// Identity contains configuration for metadata resolution.
type Identity struct {
	// ConfidenceThreshold is the minimum local-parse confidence below which
	// the resolver consults TMDB.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// MinConfidence is the floor under which a candidate is rejected outright.
	MinConfidence float64 `toml:"min_confidence"`
	TMDB          TMDB    `toml:"tmdb"`
}

// Duplicate policies accepted for mover.duplicate_policy.
const (
	DuplicatePolicyDelete     = "delete"
	DuplicatePolicyQuarantine = "quarantine"
)

// Mover contains configuration for library placement and retries.
type Mover struct {
	// DuplicatePolicy selects how byte-identical destinations are handled:
	// "delete" removes the source, "quarantine" parks it for review.
	DuplicatePolicy   string `toml:"duplicate_policy"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryBackoff      int    `toml:"retry_backoff"`
	RetryBackoffCap   int    `toml:"retry_backoff_cap"`
	ResolveWorkers    int    `toml:"resolve_workers"`
	MoveWorkers       int    `toml:"move_workers"`
	MinFreeSpaceBytes int64  `toml:"min_free_space_bytes"`
}

// Plex contains configuration for media server library refresh integration.
type Plex struct {
	Enabled        bool   `toml:"enabled"`
	URL            string `toml:"url"`
	PrefsPath      string `toml:"prefs_path"`
	Token          string `toml:"token"`
	TVSectionID    string `toml:"tv_section_id"`
	MovieSectionID string `toml:"movie_section_id"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Moves          bool   `toml:"moves"`
	Quarantine     bool   `toml:"quarantine"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for dvr-manager.
//
// Configuration sections by subsystem:
//   - Paths: watch directory, library tree, quarantine, and logs
//   - Tracker: stability detection intervals and filters
//   - Identity: local-parse thresholds and TMDB lookup settings
//   - Mover: duplicate policy, retry ceilings, worker counts
//   - Plex: library refresh integration
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tracker       Tracker       `toml:"tracker"`
	Identity      Identity      `toml:"identity"`
	Mover         Mover         `toml:"mover"`
	Plex          Plex          `toml:"plex"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dvr-manager/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dvr-manager.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Library directories are created on a best-effort basis so the daemon can
// run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.QuarantineDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.TVDir, c.Paths.MoviesDir} {
		if strings.TrimSpace(dir) != "" {
			// Best-effort to avoid failing config load when storage is offline.
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
