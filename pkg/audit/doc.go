// Package audit implements the consensus audit: a per-node passive observer
// of Raft leader/commit events or PBFT primary/commit/failure-detected
// events. It detects safety violations (conflicting leader/primary or
// commit observations), detects liveness failures (missing heartbeats, a
// leader that stops advancing its commit index), emits statsd-style counter
// metrics, and retains a bounded in-memory history.
//
// The audit never participates in consensus and never persists state. It
// consumes decoded events through a delivery.Node collaborator and reports
// through a Coordinator's Logger and, optionally, a metrics.Registry and a
// UDP monitor endpoint.
package audit
