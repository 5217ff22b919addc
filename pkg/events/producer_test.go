package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := newKafkaProducer(writer, "verifications", "verification-api", zap.NewNop())

	err := p.Publish(context.Background(), TypeVerificationFinalized, "rec-1", map[string]interface{}{"status": "approved"})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "rec-1", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, TypeVerificationFinalized, string(msg.Headers[0].Value))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "verification-api", event.Source)
	assert.Equal(t, "approved", event.Data["status"])
	assert.NotEmpty(t, event.ID)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestKafkaProducer_PublishError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaProducer(writer, "verifications", "verification-api", zap.NewNop())

	err := p.Publish(context.Background(), TypeVerificationSubmitted, "rec-1", nil)
	assert.EqualError(t, err, "broker down")
}
