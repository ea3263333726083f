// Package kafka carries finalized mapping sessions from the API server to
// the dictionary worker.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// Topic constants.
const (
	TopicMappingSessions = "lightmap.mapping.sessions"
)

// Event types.
const (
	EventTypeSessionFinalized = "mapping.session.finalized"
)

const schemaVersion = "1.0"

// EventEnvelope standardizes event messages on the wire.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SessionFinalizedPayload is the payload for EventTypeSessionFinalized.
type SessionFinalizedPayload struct {
	SessionID   string                       `json:"session_id"`
	Events      []*mappingtypes.SessionEvent `json:"events"`
	FinalizedAt time.Time                    `json:"finalized_at"`
}

// NewEventEnvelope wraps a payload in a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       raw,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload")
	}
	return nil
}
