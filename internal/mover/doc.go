// Package mover executes the final library placement for resolved
// recordings. It prefers an atomic rename, falls back to a verified copy
// across filesystems, enforces a free-space floor, and leaves one audit row
// per attempt. Byte-identical duplicates are deleted or quarantined per the
// configured policy.
package mover
