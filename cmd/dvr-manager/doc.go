// Package main hosts the dvr-manager CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the long-running daemon, queue
// inspection and maintenance, move history, dry-run identification, and
// configuration scaffolding. It centralizes configuration resolution and
// database access so subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
