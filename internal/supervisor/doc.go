// Package supervisor owns the lifecycle of the single llama-server worker
// process. It is structured into small files by concern:
//
//   - supervisor.go: core Supervisor type; Start/Stop/Status and the orphan
//     sweep. One mutex serializes every lifecycle transition, so at most one
//     worker handle exists at any time.
//   - launch.go: LaunchConfig (opaque launch parameters) and argv assembly.
//   - logstream.go: LogStreamer; captures worker stdout/stderr into a
//     bounded history ring and a drain-once delivery queue.
//   - config.go: SupervisorConfig and package defaults.
//   - errors.go: error types and predicates (IsModelRequired, IsSpawnFailed,
//     IsExitedEarly).
//   - events.go: lifecycle events and the EventPublisher hook.
//   - metrics.go: prometheus counters for starts, early exits and stops.
//
// The worker is spawned as the leader of its own process group so the whole
// group can be signaled on stop. Stop escalates SIGTERM to SIGKILL with
// bounded waits and finishes with a process-table sweep for orphans; a worker
// that survives all of that (usually stuck in uninterruptible sleep after a
// GPU memory crash) degrades the stop result instead of failing it.
package supervisor
