// Package identify resolves show/season/episode or movie identity for
// recordings.
//
// Local filename heuristics run first: SxxEyy and NxM episode markers, air
// dates for daily shows, year tokens for movies, and junk-token stripping for
// the common release-name noise. When the local parse scores below the
// configured confidence threshold the resolver consults TMDB through a
// rate-limited, cached search. Resolved identities are cached process-wide by
// normalized-filename fingerprint so re-scans of the same recording never
// repeat an external lookup.
package identify
