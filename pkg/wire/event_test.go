package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripRaftCommit(t *testing.T) {
	in := RaftCommit{LogIndex: 42, Operation: "put"}
	out, err := Decode(EncodeRaftCommit(in))
	require.NoError(t, err)
	assert.Equal(t, VariantRaftCommit, out.Variant)
	assert.Equal(t, in, *out.RaftCommit)
}

func TestRoundTripLeaderStatus(t *testing.T) {
	in := LeaderStatus{Term: 7, Leader: "node-2", CurrentLogIndex: 100, CurrentCommitIndex: 98}
	out, err := Decode(EncodeLeaderStatus(in))
	require.NoError(t, err)
	assert.Equal(t, VariantLeaderStatus, out.Variant)
	assert.Equal(t, in, *out.LeaderStatus)
}

func TestRoundTripPBFTCommit(t *testing.T) {
	in := PBFTCommit{SequenceNumber: 55, RequestHash: "deadbeef"}
	out, err := Decode(EncodePBFTCommit(in))
	require.NoError(t, err)
	assert.Equal(t, VariantPBFTCommit, out.Variant)
	assert.Equal(t, in, *out.PBFTCommit)
}

func TestRoundTripPrimaryStatus(t *testing.T) {
	in := PrimaryStatus{View: 3, Primary: "node-1"}
	out, err := Decode(EncodePrimaryStatus(in))
	require.NoError(t, err)
	assert.Equal(t, VariantPrimaryStatus, out.Variant)
	assert.Equal(t, in, *out.PrimaryStatus)
}

func TestRoundTripFailureDetected(t *testing.T) {
	out, err := Decode(EncodeFailureDetected())
	require.NoError(t, err)
	assert.Equal(t, VariantFailureDetected, out.Variant)
}

func TestDecodeEmptyIsNone(t *testing.T) {
	out, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, VariantNone, out.Variant)
}

func TestDecodeMalformedTag(t *testing.T) {
	// A lone continuation-bit varint byte with nothing following is an
	// incomplete tag.
	_, err := Decode([]byte{0x80})
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	event := EncodeRaftCommit(RaftCommit{LogIndex: 9, Operation: "delete"})

	enc, err := EncodeEnvelope(event)
	require.NoError(t, err)

	out, err := DecodeEnvelope(enc)
	require.NoError(t, err)
	assert.Equal(t, VariantRaftCommit, out.Variant)
	assert.Equal(t, uint64(9), out.RaftCommit.LogIndex)
	assert.Equal(t, "delete", out.RaftCommit.Operation)
}

func TestEnvelopeRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"audit-data": `))
	assert.Error(t, err)
}

func TestEnvelopeRejectsMalformedBase64(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"audit-data": "not-valid-base64!!"}`))
	assert.Error(t, err)
}
