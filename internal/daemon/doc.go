// Package daemon wires the watch-folder tracker and workflow manager into a
// single long-running process. A flock-based lock file enforces one instance
// per database; SIGHUP reloads configuration in place and SIGTERM drains
// in-flight stages before exit.
package daemon
