// Package metrics provides the pull-based observability surface for ward:
// a Prometheus registry of the audit's internal counters (error_count,
// current_memory_size, per-history sizes, dead-counts) for scraping, and an
// HTTP liveness/readiness/health handler set reporting the status of the
// audit's collaborators. This complements, rather than replaces, the
// push-based UDP counter-line stream the audit emits directly — the audit
// itself never reads from this package, it only feeds it.
package metrics
