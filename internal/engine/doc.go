// Package engine is the device-side job execution engine. Client sessions
// create jobs, parameterize them, and submit them to a single pending queue
// ordered by job id. One worker goroutine drains the queue, runs each job on
// the configured executor with the registry lock released, decodes the
// response into a histogram and publishes completion. Clients poll with
// Check, block with Wait, or Cancel at any time; a job canceled while it runs
// keeps its Canceled status and the late executor response is discarded.
package engine
