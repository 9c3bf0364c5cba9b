// Package notifications delivers recording lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-category toggles (moves, quarantine, errors) let operators silence
// the chatter they do not care about without disabling the rest.
package notifications
