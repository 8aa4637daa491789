package audit

import "fmt"

// handlePrimaryStatus records the (view, primary) observation and re-arms
// the primary-alive timer.
func (c *Coordinator) handlePrimaryStatus(view uint64, primary string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordHistory(c.primaryHistory, view, primary, "primary", metricPrimaryHeard, metricPrimaryConflict)

	c.primaryAliveTimer.arm(c.primaryAliveDuration, c.onPrimaryAliveExpiry)
	c.primaryDeadCount = 0
	if c.metricsReg != nil {
		c.metricsReg.PrimaryDeadCount.Set(0)
	}
}

// handlePBFTCommit records the committed request at sequence. The commit
// counter is emitted once per received event, ahead of the record step.
func (c *Coordinator) handlePBFTCommit(sequence uint64, requestHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emitter.emit(metricPBFTCommit)
	c.recordHistory(c.pbftCommits, sequence, requestHash, "pbft commit", "", metricPBFTCommitConflict)
}

// handleFailureDetected emits the bare counter. The variant carries no
// discriminating fields at this revision, so there is no further
// processing.
func (c *Coordinator) handleFailureDetected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emitter.emit(metricPBFTFailureDetected)
}

func (c *Coordinator) onPrimaryAliveExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.primaryDeadCount++
	if c.metricsReg != nil {
		c.metricsReg.PrimaryDeadCount.Set(float64(c.primaryDeadCount))
	}
	c.reportError(metricPrimaryNoPrimary, fmt.Sprintf("no primary heartbeat observed, primary_dead_count=%d", c.primaryDeadCount))

	c.primaryAliveTimer.arm(c.primaryAliveDuration, c.onPrimaryAliveExpiry)
}
