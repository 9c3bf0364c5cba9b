// Package workflow orchestrates the recording pipeline. Two lanes share the
// queue: resolve turns stable files into identified recordings, move places
// identified recordings into the library. Each lane claims work in a single
// goroutine and fans it out to a bounded worker pool; heartbeats and a
// reclaim sweeper make sure a crashed worker never strands a recording in a
// processing state.
package workflow
