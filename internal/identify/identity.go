package identify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Source labels where an identity came from.
const (
	SourceLocal = "local"
	SourceTMDB  = "tmdb"
)

// MediaIdentity is the resolved identity attached to a recording. It is
// persisted as JSON on the recording row.
type MediaIdentity struct {
	Title        string  `json:"title"`
	Season       int     `json:"season,omitempty"`
	Episode      int     `json:"episode,omitempty"`
	EpisodeTitle string  `json:"episode_title,omitempty"`
	AirDate      string  `json:"air_date,omitempty"`
	Year         int     `json:"year,omitempty"`
	Movie        bool    `json:"movie,omitempty"`
	TMDBID       int64   `json:"tmdb_id,omitempty"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
	Ambiguity    string  `json:"ambiguity,omitempty"`
}

// Episodic reports whether the identity carries enough structure to be
// placed as a TV episode.
func (m MediaIdentity) Episodic() bool {
	return !m.Movie && ((m.Season > 0 && m.Episode > 0) || m.AirDate != "")
}

// Describe returns a short human-readable summary for logs and tables.
func (m MediaIdentity) Describe() string {
	switch {
	case m.Movie:
		if m.Year > 0 {
			return fmt.Sprintf("%s (%d)", m.Title, m.Year)
		}
		return m.Title
	case m.Season > 0 && m.Episode > 0:
		return fmt.Sprintf("%s S%02dE%02d", m.Title, m.Season, m.Episode)
	case m.AirDate != "":
		return fmt.Sprintf("%s %s", m.Title, m.AirDate)
	default:
		return m.Title
	}
}

// Marshal serializes the identity for storage on a recording.
func (m MediaIdentity) Marshal() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}
	return string(data), nil
}

// ParseIdentity deserializes a stored identity.
func ParseIdentity(raw string) (MediaIdentity, error) {
	var identity MediaIdentity
	if strings.TrimSpace(raw) == "" {
		return identity, fmt.Errorf("identity payload empty")
	}
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return identity, fmt.Errorf("parse identity: %w", err)
	}
	return identity, nil
}
