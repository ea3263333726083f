package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeWriter struct {
	messages []kafkago.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	queue     []kafkago.Message
	committed []kafkago.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.queue) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func envelopeMessage(t *testing.T, payload *SessionFinalizedPayload) kafkago.Message {
	t.Helper()
	envelope, err := NewEventEnvelope(EventTypeSessionFinalized, "test", payload)
	require.NoError(t, err)
	value, err := json.Marshal(envelope)
	require.NoError(t, err)
	return kafkago.Message{Topic: TopicMappingSessions, Key: []byte(payload.SessionID), Value: value}
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer
// ─────────────────────────────────────────────────────────────────────────────

func TestProducer_PublishSessionFinalized(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, nil)

	payload := &SessionFinalizedPayload{
		SessionID:   "sess-42",
		FinalizedAt: time.Now().UTC(),
		Events: []*mappingtypes.SessionEvent{
			{SessionID: "sess-42", SourceName: "Mega Tree", DestName: "MT 360"},
		},
	}
	require.NoError(t, producer.PublishSessionFinalized(context.Background(), TopicMappingSessions, payload))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, TopicMappingSessions, msg.Topic)
	assert.Equal(t, "sess-42", string(msg.Key))

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.Equal(t, EventTypeSessionFinalized, envelope.EventType)
	assert.NotEmpty(t, envelope.EventID)

	var decoded SessionFinalizedPayload
	require.NoError(t, envelope.DecodePayload(&decoded))
	assert.Equal(t, "sess-42", decoded.SessionID)
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "Mega Tree", decoded.Events[0].SourceName)
}

func TestProducer_ClosedRejectsPublish(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, nil)
	require.NoError(t, producer.Close())
	require.NoError(t, producer.Close(), "close is idempotent")

	err := producer.PublishSessionFinalized(context.Background(), TopicMappingSessions, &SessionFinalizedPayload{SessionID: "s"})
	assert.ErrorIs(t, err, ErrProducerClosed)
	assert.True(t, writer.closed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Consumer
// ─────────────────────────────────────────────────────────────────────────────

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafkago.Message{
		envelopeMessage(t, &SessionFinalizedPayload{SessionID: "a"}),
		envelopeMessage(t, &SessionFinalizedPayload{SessionID: "b"}),
	}}

	var seen []string
	consumer := NewConsumerWithReader(reader, func(_ context.Context, envelope *EventEnvelope) error {
		var payload SessionFinalizedPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return err
		}
		seen = append(seen, payload.SessionID)
		return nil
	}, nil)

	err := consumer.Run(context.Background())
	require.Error(t, err, "loop ends when the fake reader drains")

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Len(t, reader.committed, 2)
	handled, failed := consumer.Counts()
	assert.Equal(t, int64(2), handled)
	assert.Equal(t, int64(0), failed)
}

func TestConsumer_HandlerErrorStillCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafkago.Message{
		envelopeMessage(t, &SessionFinalizedPayload{SessionID: "bad"}),
		envelopeMessage(t, &SessionFinalizedPayload{SessionID: "good"}),
	}}

	consumer := NewConsumerWithReader(reader, func(_ context.Context, envelope *EventEnvelope) error {
		var payload SessionFinalizedPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return err
		}
		if payload.SessionID == "bad" {
			return errors.New("store rejected event")
		}
		return nil
	}, nil)

	_ = consumer.Run(context.Background())

	assert.Len(t, reader.committed, 2, "failed events are committed, not retried")
	handled, failed := consumer.Counts()
	assert.Equal(t, int64(1), handled)
	assert.Equal(t, int64(1), failed)
}

func TestConsumer_DropsUndecodableMessage(t *testing.T) {
	reader := &fakeReader{queue: []kafkago.Message{
		{Topic: TopicMappingSessions, Value: []byte("{not json")},
	}}

	consumer := NewConsumerWithReader(reader, func(context.Context, *EventEnvelope) error {
		t.Fatal("handler must not run for undecodable messages")
		return nil
	}, nil)

	_ = consumer.Run(context.Background())

	assert.Len(t, reader.committed, 1)
	_, failed := consumer.Counts()
	assert.Equal(t, int64(1), failed)
}
