package config

const (
	defaultWatchDir          = "/recordings"
	defaultTVDir             = "/library/tv"
	defaultMoviesDir         = "/library/movies"
	defaultQuarantineDir     = "~/.local/share/dvr-manager/quarantine"
	defaultLogDir            = "~/.local/share/dvr-manager/logs"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultTMDBLanguage      = "en-US"
	defaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	defaultTMDBRateLimitMs   = 250
	defaultPlexPrefsPath     = "/config/Library/Application Support/Plex Media Server/Preferences.xml"
	defaultPlexURL           = "http://127.0.0.1:32400"
	defaultDuplicatePolicy   = "delete"
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:      defaultWatchDir,
			TVDir:         defaultTVDir,
			MoviesDir:     defaultMoviesDir,
			QuarantineDir: defaultQuarantineDir,
			LogDir:        defaultLogDir,
		},
		Tracker: Tracker{
			StabilityInterval:  30,
			StableObservations: 2,
			PollInterval:       10,
			MinFileSizeBytes:   1 << 20,
			IgnoreExtensions:   []string{".tmp", ".part", ".grab"},
		},
		Identity: Identity{
			ConfidenceThreshold: 0.8,
			MinConfidence:       0.3,
			TMDB: TMDB{
				BaseURL:     defaultTMDBBaseURL,
				Language:    defaultTMDBLanguage,
				RateLimitMs: defaultTMDBRateLimitMs,
			},
		},
		Mover: Mover{
			DuplicatePolicy: defaultDuplicatePolicy,
			MaxAttempts:     4,
			RetryBackoff:    30,
			RetryBackoffCap: 1800,
			ResolveWorkers:  2,
			MoveWorkers:     1,
		},
		Plex: Plex{
			URL:            defaultPlexURL,
			PrefsPath:      defaultPlexPrefsPath,
			RequestTimeout: 10,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Moves:          true,
			Quarantine:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
