package audit

import (
	"github.com/cuemby/ward/pkg/delivery"
	"github.com/cuemby/ward/pkg/metrics"
	"github.com/cuemby/ward/pkg/wire"
)

// dispatch decodes one Session's envelope and routes it to the
// mode-appropriate handler. It is registered with the delivery collaborator
// under the "audit" message kind by Start, and always closes the session
// once dispatch completes.
func (c *Coordinator) dispatch(sess delivery.Session) {
	defer sess.Close()

	timer := metrics.NewTimer()
	if c.metricsReg != nil {
		defer timer.ObserveDuration(c.metricsReg.DispatchDuration)
	}

	event, err := wire.DecodeEnvelope(sess.Body())
	if err != nil {
		c.logger.Error().Err(err).Msg("audit: envelope decode failed")
		return
	}

	switch event.Variant {
	case wire.VariantRaftCommit:
		if !c.requireMode(ModeRaft, "raft_commit") {
			return
		}
		c.handleRaftCommit(event.RaftCommit.LogIndex, event.RaftCommit.Operation)

	case wire.VariantLeaderStatus:
		if !c.requireMode(ModeRaft, "leader_status") {
			return
		}
		s := event.LeaderStatus
		c.handleLeaderStatus(s.Term, s.Leader, s.CurrentLogIndex, s.CurrentCommitIndex)

	case wire.VariantPBFTCommit:
		if !c.requireMode(ModePBFT, "pbft_commit") {
			return
		}
		c.handlePBFTCommit(event.PBFTCommit.SequenceNumber, event.PBFTCommit.RequestHash)

	case wire.VariantPrimaryStatus:
		if !c.requireMode(ModePBFT, "primary_status") {
			return
		}
		s := event.PrimaryStatus
		c.handlePrimaryStatus(s.View, s.Primary)

	case wire.VariantFailureDetected:
		if !c.requireMode(ModePBFT, "failure_detected") {
			return
		}
		c.handleFailureDetected()

	default:
		c.logger.Error().Msg("audit: unknown event variant, discarded")
	}
}

// requireMode reports whether kind is valid for the coordinator's current
// mode, logging at debug and returning false for a mode-alien event so a
// mixed-mode cluster of observers cannot interfere with one another.
func (c *Coordinator) requireMode(want Mode, kind string) bool {
	if c.mode == want {
		return true
	}
	c.logger.Debug().Str("event", kind).Str("mode", c.mode.String()).Msg("audit: mode-alien event dropped")
	return false
}
