// Package raftobserver bridges a real hashicorp/raft node's Observer
// notifications into the audit's wire format, so the audit's Raft mode can
// be driven by an actual consensus engine instead of only synthetic test
// events.
package raftobserver

import (
	"strconv"

	"github.com/cuemby/ward/pkg/delivery"
	"github.com/cuemby/ward/pkg/metrics"
	"github.com/cuemby/ward/pkg/wire"
	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
)

const observationBuffer = 64

// Bridge registers an Observer against a raft.Raft instance and translates
// every observation made while a leader is known into a leader_status
// audit_event submitted to the delivery collaborator; observations with no
// known leader submit nothing. It does not inspect the observation's payload
// type: any observation (leadership change, heartbeat, state transition) is
// a fine trigger to resubmit the node's current leader and log position.
// For an unchanged observation the audit records nothing new; it only
// re-arms its leader-alive timer, so each submission counts as a heartbeat.
type Bridge struct {
	raft   *raft.Raft
	node   delivery.Submitter
	logger zerolog.Logger

	observer *raft.Observer
	ch       chan raft.Observation
	stopCh   chan struct{}
}

// New registers a new Observer against r. Call Start to begin translating
// observations and Close to deregister and stop.
func New(r *raft.Raft, node delivery.Submitter, logger zerolog.Logger) *Bridge {
	ch := make(chan raft.Observation, observationBuffer)
	observer := raft.NewObserver(ch, false, nil)

	b := &Bridge{
		raft:     r,
		node:     node,
		logger:   logger,
		observer: observer,
		ch:       ch,
		stopCh:   make(chan struct{}),
	}
	r.RegisterObserver(observer)
	return b
}

// Start begins translating observations in its own goroutine and registers
// the "raftobserver" component as healthy.
func (b *Bridge) Start() {
	metrics.RegisterComponent("raftobserver", true, "")
	go b.run()
}

// Close deregisters the observer and stops the translation goroutine.
func (b *Bridge) Close() {
	b.raft.DeregisterObserver(b.observer)
	close(b.stopCh)
}

func (b *Bridge) run() {
	for {
		select {
		case <-b.ch:
			b.submitLeaderStatus()
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bridge) submitLeaderStatus() {
	leader := string(b.raft.Leader())
	if leader == "" {
		return
	}

	stats := b.raft.Stats()
	term, err := strconv.ParseUint(stats["term"], 10, 64)
	if err != nil {
		b.logger.Error().Err(err).Msg("raftobserver: malformed term in raft stats")
		metrics.UpdateComponent("raftobserver", false, "malformed term: "+err.Error())
		return
	}
	logIndex, err := strconv.ParseUint(stats["last_log_index"], 10, 64)
	if err != nil {
		b.logger.Error().Err(err).Msg("raftobserver: malformed last_log_index in raft stats")
		metrics.UpdateComponent("raftobserver", false, "malformed last_log_index: "+err.Error())
		return
	}
	commitIndex, err := strconv.ParseUint(stats["commit_index"], 10, 64)
	if err != nil {
		b.logger.Error().Err(err).Msg("raftobserver: malformed commit_index in raft stats")
		metrics.UpdateComponent("raftobserver", false, "malformed commit_index: "+err.Error())
		return
	}

	event := wire.EncodeLeaderStatus(wire.LeaderStatus{
		Term:               term,
		Leader:             leader,
		CurrentLogIndex:    logIndex,
		CurrentCommitIndex: commitIndex,
	})

	envelope, err := wire.EncodeEnvelope(event)
	if err != nil {
		b.logger.Error().Err(err).Msg("raftobserver: envelope encode failed")
		metrics.UpdateComponent("raftobserver", false, "envelope encode: "+err.Error())
		return
	}

	metrics.UpdateComponent("raftobserver", true, "")
	b.node.Submit("audit", envelope)
}
