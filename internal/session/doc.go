// Package session is the model session controller: it owns the load state of
// one model and the lifecycle of poem generations. It is structured into small
// files by concern:
//
//   - session.go: Controller type, Config and package defaults.
//   - types.go: LoadState (Idle | Loaded) and the State snapshot.
//   - ensure.go: EnsureLoaded, local lookup or hub snapshot, then runtime load.
//   - generate.go: Generate/Start, per-token publication cadence, throughput.
//   - events.go, broadcast.go: Event, EventPublisher and in-process subscribers.
//   - status_report.go: Snapshot/Status reporting helpers.
//   - metrics.go: Prometheus collectors.
//
// At most one generation runs at a time; a call made while one is in flight is
// dropped. Generation errors never escape the controller: they are rendered
// into the output text.
package session
