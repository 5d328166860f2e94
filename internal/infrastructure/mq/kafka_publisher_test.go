package mq

import (
	"context"
	"encoding/json"
	"testing"

	myconfig "snack_chat_server/internal/config"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisherKeysByChannel(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	p.Publish(context.Background(), ActivityEvent{Type: ActivityMessageCreated, ChannelID: 12, MessageID: 99})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "12", string(w.msgs[0].Key))

	var got ActivityEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ActivityMessageCreated, got.Type)
	assert.EqualValues(t, 99, got.MessageID)
	assert.False(t, got.At.IsZero())
}

func TestNewPublisherDisabledIsNop(t *testing.T) {
	p := NewPublisher(myconfig.KafkaConfig{Enabled: false})
	_, ok := p.(NopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}
