// Package textutil provides filename sanitization and normalization helpers
// shared by the resolver and the placement planner.
package textutil
