// Package wire implements the binary audit_event codec and the inbound
// JSON+base64 envelope that carries it. The wire encoding is a
// length-delimited, field-tagged scheme built directly on
// google.golang.org/protobuf's low-level protowire primitives rather than on
// generated message code: field identities just need to be preserved across
// encode/decode, and protowire gives that without a protoc/generator step.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the audit_event oneof. Exactly one is populated per
// encoded event, mirroring the original protobuf oneof.
const (
	fieldRaftCommit    = protowire.Number(1)
	fieldLeaderStatus  = protowire.Number(2)
	fieldPBFTCommit    = protowire.Number(3)
	fieldPrimaryStatus = protowire.Number(4)
	fieldFailureDetect = protowire.Number(5)
)

// Sub-message field numbers, scoped per variant.
const (
	subLogIndex      = protowire.Number(1) // raft_commit.log_index
	subOperation     = protowire.Number(2) // raft_commit.operation
	subTerm          = protowire.Number(1) // leader_status.term
	subLeader        = protowire.Number(2) // leader_status.leader
	subCurrentLog    = protowire.Number(3) // leader_status.current_log_index
	subCurrentCommit = protowire.Number(4) // leader_status.current_commit_index
	subSequence      = protowire.Number(1) // pbft_commit.sequence_number
	subRequestHash   = protowire.Number(2) // pbft_commit.request_hash
	subView          = protowire.Number(1) // primary_status.view
	subPrimary       = protowire.Number(2) // primary_status.primary
)

// Variant identifies which of the five audit_event branches is populated.
type Variant int

const (
	VariantNone Variant = iota
	VariantRaftCommit
	VariantLeaderStatus
	VariantPBFTCommit
	VariantPrimaryStatus
	VariantFailureDetected
)

// RaftCommit is the raft_commit variant payload.
type RaftCommit struct {
	LogIndex  uint64
	Operation string
}

// LeaderStatus is the leader_status variant payload.
type LeaderStatus struct {
	Term               uint64
	Leader             string
	CurrentLogIndex    uint64
	CurrentCommitIndex uint64
}

// PBFTCommit is the pbft_commit variant payload.
type PBFTCommit struct {
	SequenceNumber uint64
	RequestHash    string
}

// PrimaryStatus is the primary_status variant payload.
type PrimaryStatus struct {
	View    uint64
	Primary string
}

// FailureDetected is the failure_detected variant. It carries no
// discriminating fields at this revision.
type FailureDetected struct{}

// Event is the decoded audit_event: exactly one of the pointer fields below
// is non-nil, selected by Variant.
type Event struct {
	Variant         Variant
	RaftCommit      *RaftCommit
	LeaderStatus    *LeaderStatus
	PBFTCommit      *PBFTCommit
	PrimaryStatus   *PrimaryStatus
	FailureDetected *FailureDetected
}

// EncodeRaftCommit encodes a raft_commit audit_event.
func EncodeRaftCommit(c RaftCommit) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, subLogIndex, protowire.VarintType)
	sub = protowire.AppendVarint(sub, c.LogIndex)
	sub = protowire.AppendTag(sub, subOperation, protowire.BytesType)
	sub = protowire.AppendString(sub, c.Operation)
	return appendMessageField(nil, fieldRaftCommit, sub)
}

// EncodeLeaderStatus encodes a leader_status audit_event.
func EncodeLeaderStatus(s LeaderStatus) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, subTerm, protowire.VarintType)
	sub = protowire.AppendVarint(sub, s.Term)
	sub = protowire.AppendTag(sub, subLeader, protowire.BytesType)
	sub = protowire.AppendString(sub, s.Leader)
	sub = protowire.AppendTag(sub, subCurrentLog, protowire.VarintType)
	sub = protowire.AppendVarint(sub, s.CurrentLogIndex)
	sub = protowire.AppendTag(sub, subCurrentCommit, protowire.VarintType)
	sub = protowire.AppendVarint(sub, s.CurrentCommitIndex)
	return appendMessageField(nil, fieldLeaderStatus, sub)
}

// EncodePBFTCommit encodes a pbft_commit audit_event.
func EncodePBFTCommit(c PBFTCommit) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, subSequence, protowire.VarintType)
	sub = protowire.AppendVarint(sub, c.SequenceNumber)
	sub = protowire.AppendTag(sub, subRequestHash, protowire.BytesType)
	sub = protowire.AppendString(sub, c.RequestHash)
	return appendMessageField(nil, fieldPBFTCommit, sub)
}

// EncodePrimaryStatus encodes a primary_status audit_event.
func EncodePrimaryStatus(s PrimaryStatus) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, subView, protowire.VarintType)
	sub = protowire.AppendVarint(sub, s.View)
	sub = protowire.AppendTag(sub, subPrimary, protowire.BytesType)
	sub = protowire.AppendString(sub, s.Primary)
	return appendMessageField(nil, fieldPrimaryStatus, sub)
}

// EncodeFailureDetected encodes a failure_detected audit_event. The payload
// carries no fields at this revision.
func EncodeFailureDetected() []byte {
	return appendMessageField(nil, fieldFailureDetect, nil)
}

func appendMessageField(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, sub)
	return b
}

// Decode parses a length-delimited audit_event, returning the first
// recognised variant encountered (the wire format carries exactly one, per
// the oneof contract). Unknown top-level fields are skipped.
func Decode(b []byte) (Event, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, fmt.Errorf("wire: malformed tag (code %d)", n)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Event{}, fmt.Errorf("wire: malformed field %d (code %d)", num, m)
			}
			b = b[m:]
			continue
		}

		sub, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return Event{}, fmt.Errorf("wire: malformed bytes field %d (code %d)", num, m)
		}
		b = b[m:]

		switch num {
		case fieldRaftCommit:
			c, err := decodeRaftCommit(sub)
			if err != nil {
				return Event{}, err
			}
			return Event{Variant: VariantRaftCommit, RaftCommit: &c}, nil
		case fieldLeaderStatus:
			s, err := decodeLeaderStatus(sub)
			if err != nil {
				return Event{}, err
			}
			return Event{Variant: VariantLeaderStatus, LeaderStatus: &s}, nil
		case fieldPBFTCommit:
			c, err := decodePBFTCommit(sub)
			if err != nil {
				return Event{}, err
			}
			return Event{Variant: VariantPBFTCommit, PBFTCommit: &c}, nil
		case fieldPrimaryStatus:
			s, err := decodePrimaryStatus(sub)
			if err != nil {
				return Event{}, err
			}
			return Event{Variant: VariantPrimaryStatus, PrimaryStatus: &s}, nil
		case fieldFailureDetect:
			return Event{Variant: VariantFailureDetected, FailureDetected: &FailureDetected{}}, nil
		}
	}

	return Event{Variant: VariantNone}, nil
}

func decodeRaftCommit(b []byte) (RaftCommit, error) {
	var c RaftCommit
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("wire: malformed raft_commit tag (code %d)", n)
		}
		b = b[n:]
		switch num {
		case subLogIndex:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed raft_commit.log_index")
			}
			c.LogIndex = v
			b = b[m:]
		case subOperation:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed raft_commit.operation")
			}
			c.Operation = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed raft_commit field %d", num)
			}
			b = b[m:]
		}
	}
	return c, nil
}

func decodeLeaderStatus(b []byte) (LeaderStatus, error) {
	var s LeaderStatus
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("wire: malformed leader_status tag (code %d)", n)
		}
		b = b[n:]
		switch num {
		case subTerm:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed leader_status.term")
			}
			s.Term = v
			b = b[m:]
		case subLeader:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed leader_status.leader")
			}
			s.Leader = v
			b = b[m:]
		case subCurrentLog:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed leader_status.current_log_index")
			}
			s.CurrentLogIndex = v
			b = b[m:]
		case subCurrentCommit:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed leader_status.current_commit_index")
			}
			s.CurrentCommitIndex = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed leader_status field %d", num)
			}
			b = b[m:]
		}
	}
	return s, nil
}

func decodePBFTCommit(b []byte) (PBFTCommit, error) {
	var c PBFTCommit
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("wire: malformed pbft_commit tag (code %d)", n)
		}
		b = b[n:]
		switch num {
		case subSequence:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed pbft_commit.sequence_number")
			}
			c.SequenceNumber = v
			b = b[m:]
		case subRequestHash:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed pbft_commit.request_hash")
			}
			c.RequestHash = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return c, fmt.Errorf("wire: malformed pbft_commit field %d", num)
			}
			b = b[m:]
		}
	}
	return c, nil
}

func decodePrimaryStatus(b []byte) (PrimaryStatus, error) {
	var s PrimaryStatus
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("wire: malformed primary_status tag (code %d)", n)
		}
		b = b[n:]
		switch num {
		case subView:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed primary_status.view")
			}
			s.View = v
			b = b[m:]
		case subPrimary:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed primary_status.primary")
			}
			s.Primary = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return s, fmt.Errorf("wire: malformed primary_status field %d", num)
			}
			b = b[m:]
		}
	}
	return s, nil
}
