// Package task manages the background task ledger and its execution.
// It provides the submission service that atomically records a task and
// enqueues its job, a handler registry keyed by job name, and the
// fixed-size worker pool that processes jobs, governs the retry policy for
// transient failures, and publishes progress events to the owning client.
package task
