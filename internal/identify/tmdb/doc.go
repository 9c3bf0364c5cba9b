// Package tmdb provides the minimal TMDB API client used during recording
// identification.
//
// It authenticates requests and exposes movie and TV search with an optional
// year filter plus season detail lookups for episode titles. Responses are
// strongly typed so the resolver can score them. Options allow tests to
// supply custom HTTP clients without modifying production code.
package tmdb
