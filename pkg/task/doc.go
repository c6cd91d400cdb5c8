// Package task provides the categorized executors and the cancellable
// background loop that the rest of the control point runs on.
//
// # Executors
//
// An engine owns one Executors set with four members:
//   - Callback: a single worker. User callbacks observe one serialized order
//     and never run concurrently with each other.
//   - IO: a bounded, self-tuning pool. A task is queued only when a worker is
//     idle and waiting for work; otherwise the pool grows up to its maximum.
//     Once the maximum is reached, tasks are re-queued instead of rejected.
//   - Manager and Server: hand-off executors without a queue. A task either
//     reaches an idle worker immediately or gets a new goroutine, so registry
//     and listener loops are never starved behind unrelated work.
//
// Execute never panics; it returns false when the task was not scheduled
// because the executor has been terminated. Terminate is idempotent.
//
// # Loops
//
// Loop wraps a long-lived body with Start/Stop control. The body receives a
// context that is cancelled by Stop and must return promptly once it is done.
// Start blocks until the body reports readiness, bounded by ReadyTimeout.
package task
