// Package planner maps resolved media identities onto library destinations.
// It owns the naming templates for episodes, date-based airings, and movies,
// and decides how filename collisions and byte-identical duplicates resolve.
package planner
