package audit

import "fmt"

// handleLeaderStatus records the (term, leader) observation, re-arms the
// leader-alive timer, and drives the leader-progress state machine.
func (c *Coordinator) handleLeaderStatus(term uint64, leader string, currentLogIndex, currentCommitIndex uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordHistory(c.leaderHistory, term, leader, "leader", metricLeaderNew, metricLeaderConflict)

	c.leaderAliveTimer.arm(c.leaderAliveDuration, c.onLeaderAliveExpiry)
	c.leaderDeadCount = 0
	if c.metricsReg != nil {
		c.metricsReg.LeaderDeadCount.Set(0)
	}

	c.driveLeaderProgress(leader, currentLogIndex, currentCommitIndex)
}

// driveLeaderProgress implements the leader-progress state machine. It
// deliberately does not detect cross-leader livelock: each leader change
// resets the watch, so a cluster where leadership keeps changing before
// any leader catches up produces no error (a known, accepted limitation).
func (c *Coordinator) driveLeaderProgress(leader string, currentLogIndex, currentCommitIndex uint64) {
	madeProgress := false

	switch {
	case leader != c.lastLeader:
		c.lastLeader = leader
		madeProgress = true
	case currentCommitIndex > c.lastLeaderCommitIndex:
		madeProgress = true
	case currentLogIndex > currentCommitIndex && !c.leaderHasUncommittedEntries:
		c.leaderProgressTimer.arm(c.leaderProgressDuration, c.onLeaderProgressExpiry)
		c.leaderHasUncommittedEntries = true
	}

	if madeProgress {
		c.applyMadeProgress(currentLogIndex, currentCommitIndex)
	}

	c.lastLeaderCommitIndex = currentCommitIndex
}

func (c *Coordinator) applyMadeProgress(currentLogIndex, currentCommitIndex uint64) {
	c.leaderStuckCount = 0
	if c.metricsReg != nil {
		c.metricsReg.LeaderStuckCount.Set(0)
	}
	if currentCommitIndex == currentLogIndex {
		c.leaderProgressTimer.cancel()
		c.leaderHasUncommittedEntries = false
		return
	}
	c.leaderProgressTimer.arm(c.leaderProgressDuration, c.onLeaderProgressExpiry)
	c.leaderHasUncommittedEntries = true
}

// handleRaftCommit records the committed operation at log_index. The commit
// counter is emitted once per received event, ahead of the record step, so
// recordHistory is given no new-key metric of its own.
func (c *Coordinator) handleRaftCommit(logIndex uint64, operation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emitter.emit(metricRaftCommit)
	c.recordHistory(c.raftCommits, logIndex, operation, "raft commit", "", metricRaftCommitConflict)
}

func (c *Coordinator) onLeaderAliveExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.leaderDeadCount++
	if c.metricsReg != nil {
		c.metricsReg.LeaderDeadCount.Set(float64(c.leaderDeadCount))
	}
	c.reportError(metricLeaderNoLeader, fmt.Sprintf("no leader heartbeat observed, leader_dead_count=%d", c.leaderDeadCount))

	c.leaderProgressTimer.cancel()
	c.leaderHasUncommittedEntries = false

	c.leaderAliveTimer.arm(c.leaderAliveDuration, c.onLeaderAliveExpiry)
}

func (c *Coordinator) onLeaderProgressExpiry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.leaderStuckCount++
	if c.metricsReg != nil {
		c.metricsReg.LeaderStuckCount.Set(float64(c.leaderStuckCount))
	}
	c.reportError(metricLeaderStuck, fmt.Sprintf("leader has not advanced its commit index, leader_stuck_count=%d", c.leaderStuckCount))

	c.leaderProgressTimer.arm(c.leaderProgressDuration, c.onLeaderProgressExpiry)
}
