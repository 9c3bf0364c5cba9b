package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateMover(); err != nil {
		return err
	}
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchDir == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if c.Paths.TVDir == "" {
		return errors.New("paths.tv_dir must be set")
	}
	if c.Paths.MoviesDir == "" {
		return errors.New("paths.movies_dir must be set")
	}
	return nil
}

func (c *Config) validateTracker() error {
	if err := ensurePositiveMap(map[string]int{
		"tracker.stability_interval":  c.Tracker.StabilityInterval,
		"tracker.stable_observations": c.Tracker.StableObservations,
		"tracker.poll_interval":       c.Tracker.PollInterval,
	}); err != nil {
		return err
	}
	if c.Tracker.MinFileSizeBytes < 0 {
		return errors.New("tracker.min_file_size_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if c.Identity.ConfidenceThreshold < 0 || c.Identity.ConfidenceThreshold > 1 {
		return errors.New("identity.confidence_threshold must be between 0 and 1")
	}
	if c.Identity.MinConfidence < 0 || c.Identity.MinConfidence > 1 {
		return errors.New("identity.min_confidence must be between 0 and 1")
	}
	if c.Identity.MinConfidence > c.Identity.ConfidenceThreshold {
		return errors.New("identity.min_confidence must not exceed identity.confidence_threshold")
	}
	if c.Identity.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/dvr-manager/config.toml"
		}
		return fmt.Errorf("identity.tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'dvr-manager config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateMover() error {
	switch c.Mover.DuplicatePolicy {
	case DuplicatePolicyDelete, DuplicatePolicyQuarantine:
	default:
		return fmt.Errorf("mover.duplicate_policy must be \"delete\" or \"quarantine\", got %q", c.Mover.DuplicatePolicy)
	}
	if err := ensurePositiveMap(map[string]int{
		"mover.max_attempts":      c.Mover.MaxAttempts,
		"mover.retry_backoff":     c.Mover.RetryBackoff,
		"mover.retry_backoff_cap": c.Mover.RetryBackoffCap,
	}); err != nil {
		return err
	}
	if c.Mover.RetryBackoffCap < c.Mover.RetryBackoff {
		return errors.New("mover.retry_backoff_cap must be >= mover.retry_backoff")
	}
	if c.Mover.MinFreeSpaceBytes < 0 {
		return errors.New("mover.min_free_space_bytes must be >= 0")
	}
	return nil
}

func (c *Config) validatePlex() error {
	if !c.Plex.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Plex.URL) == "" {
		return errors.New("plex.url must be set when plex.enabled is true")
	}
	if c.Plex.RequestTimeout <= 0 {
		return errors.New("plex.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
