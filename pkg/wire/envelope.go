package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// envelope is the inbound wire shape: a JSON object carrying the binary
// audit_event, base64-encoded under the "audit-data" key.
type envelope struct {
	AuditData string `json:"audit-data"`
}

// EncodeEnvelope wraps an encoded audit_event in the JSON+base64 envelope.
func EncodeEnvelope(event []byte) ([]byte, error) {
	e := envelope{AuditData: base64.StdEncoding.EncodeToString(event)}
	return json.Marshal(e)
}

// DecodeEnvelope unwraps a JSON+base64 envelope and decodes the audit_event
// it carries. Malformed JSON or base64 is reported as an error rather than
// a panic; callers treat this as a taxonomy-6 malformed-message error.
func DecodeEnvelope(b []byte) (Event, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("wire: malformed envelope: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(e.AuditData)
	if err != nil {
		return Event{}, fmt.Errorf("wire: malformed audit-data: %w", err)
	}

	return Decode(data)
}
