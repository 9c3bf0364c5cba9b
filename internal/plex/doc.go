// Package plex triggers Plex library section scans after recordings land in
// the library tree. The token comes from config, the PLEX_TOKEN environment
// variable, or the server's own Preferences.xml; section keys are discovered
// from the server when not pinned in config.
package plex
