// Package services provides shared error classification and context
// plumbing used by the pipeline stages and the workflow manager.
package services
