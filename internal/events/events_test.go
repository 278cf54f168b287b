package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaPublisher{w: fw}

	env, err := NewEnvelope("transaction.paid", map[string]string{"id": "tx1"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "item-1", env))

	require.Len(t, fw.msgs, 1)
	m := fw.msgs[0]
	require.Equal(t, "item-1", string(m.Key))
	require.Equal(t, "event_type", m.Headers[0].Key)
	require.Equal(t, "transaction.paid", string(m.Headers[0].Value))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(m.Value, &got))
	require.Equal(t, "transaction.paid", got["event_type"])
	require.Equal(t, Producer, got["producer"])
	require.EqualValues(t, 1, got["event_version"])
	require.NotEmpty(t, got["event_id"])
	require.Equal(t, "tx1", got["payload"].(map[string]interface{})["id"])
}

func TestKafkaPublisher_Error(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{w: fw}
	env, err := NewEnvelope("x", nil)
	require.NoError(t, err)
	require.ErrorIs(t, p.Publish(context.Background(), "k", env), fw.err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NoError(t, p.Publish(context.Background(), "k", Envelope{}))
	require.NoError(t, p.Close())
}
