package audit

import (
	"fmt"
	"net"

	"github.com/cuemby/ward/pkg/metrics"
	"github.com/rs/zerolog"
)

// Known metric-suffix names. Callers must only ever emit from this set.
const (
	metricLeaderNoLeader      = "audit.leader.no_leader"
	metricLeaderConflict      = "audit.leader.conflict"
	metricLeaderNew           = "audit.leader.new"
	metricLeaderStuck         = "audit.leader.stuck"
	metricRaftCommit          = "audit.raft.commit"
	metricRaftCommitConflict  = "audit.raft.commit_conflict"
	metricPrimaryNoPrimary    = "audit.primary.no_primary"
	metricPrimaryConflict     = "audit.primary.conflict"
	metricPrimaryHeard        = "audit.primary.heard"
	metricPBFTCommit          = "audit.pbft.commit"
	metricPBFTCommitConflict  = "audit.pbft.commit_conflict"
	metricPBFTFailureDetected = "audit.pbft.failure_detected"
)

// emitter formats and fire-and-forget sends statsd-style counter lines to an
// optional monitor endpoint. No statsd client library is wired elsewhere in
// this module's dependency stack, so this talks raw UDP directly.
type emitter struct {
	prefix string
	conn   net.Conn // nil when no monitor endpoint is configured
	logger zerolog.Logger
	reg    *metrics.Registry
}

// newEmitter dials the monitor endpoint once, up front, if one is
// configured. With an empty addr emit never sends anything; it still counts
// each suffix in the metrics registry when one is set.
func newEmitter(nodeID, addr string, logger zerolog.Logger, reg *metrics.Registry) (*emitter, error) {
	e := &emitter{
		prefix: "com.bluzelle.swarm.singleton.node." + nodeID + ".",
		logger: logger,
		reg:    reg,
	}
	if addr == "" {
		return e, nil
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("audit: dial monitor endpoint: %w", err)
	}
	e.conn = conn
	return e, nil
}

// emit composes "<prefix><suffix>|c" and sends it fire-and-forget. The send
// runs on its own goroutine so a slow or failing socket can never hold the
// coordinator's mutex. Each send outcome also drives the "audit" component's
// reported health, so a monitor endpoint that has gone dark surfaces on
// /healthz without waiting for the next manual restart.
func (e *emitter) emit(suffix string) {
	if e.reg != nil {
		e.reg.ObserveEmit(suffix)
	}
	if e.conn == nil {
		return
	}

	line := e.prefix + suffix + "|c"
	conn := e.conn
	logger := e.logger
	go func() {
		if _, err := conn.Write([]byte(line)); err != nil {
			logger.Error().Err(err).Str("metric", suffix).Msg("audit: metric send failed")
			metrics.UpdateComponent("audit", false, "monitor socket: "+err.Error())
			return
		}
		metrics.UpdateComponent("audit", true, "")
	}()
}

// Close releases the monitor socket, if one was dialed.
func (e *emitter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
