package bridge

import (
	"encoding/json"
	"testing"

	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	destination string
	frame       *stomp.Frame
}

type mockTarget struct {
	received []published
}

func (m *mockTarget) Publish(destination string, frame *stomp.Frame) int {
	m.received = append(m.received, published{destination: destination, frame: frame})
	return 1
}

func newTestBridge(t *testing.T, target BroadcastTarget) *RedisBridge {
	b := NewRedisBridge(config.Default().Redis, target)
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func TestRedisEnvelopeCarriesMessage(t *testing.T) {
	b := newTestBridge(t, &mockTarget{})
	frame := stomp.Message("/topic/x", "hello")
	frame.Headers.Set(stomp.HeaderContentType, "text/plain")

	data, err := b.encode("/topic/x", frame)
	require.NoError(t, err)

	var env redisEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, b.InstanceID(), env.InstanceID)
	assert.Equal(t, "/topic/x", env.Destination)
	assert.Equal(t, "text/plain", env.ContentType)
	assert.Equal(t, "hello", env.Body)
}

func TestHandlePayloadPublishesRemoteMessages(t *testing.T) {
	target := &mockTarget{}
	b := newTestBridge(t, target)

	data, err := json.Marshal(redisEnvelope{InstanceID: "other-node", Destination: "/topic/x", ContentType: "application/json", Body: "{}"})
	require.NoError(t, err)
	b.handlePayload(string(data))

	require.Len(t, target.received, 1)
	got := target.received[0]
	assert.Equal(t, "/topic/x", got.destination)
	assert.Equal(t, stomp.CommandMessage, got.frame.Command)
	assert.Equal(t, "{}", got.frame.Body)
	assert.Equal(t, "application/json", got.frame.Headers.Value(stomp.HeaderContentType))
	assert.Equal(t, "/topic/x", got.frame.Headers.Value(stomp.HeaderDestination))
}

func TestHandlePayloadSkipsOwnAndInvalidMessages(t *testing.T) {
	target := &mockTarget{}
	b := newTestBridge(t, target)

	own, err := b.encode("/topic/x", stomp.Message("/topic/x", "mine"))
	require.NoError(t, err)
	b.handlePayload(string(own))
	b.handlePayload("not json")

	assert.Empty(t, target.received)
}

func TestRedisBridgeInactiveBeforeStart(t *testing.T) {
	b := newTestBridge(t, &mockTarget{})
	assert.False(t, b.Available())
	// Relaying while inactive must not try to reach Redis.
	b.Relay("/topic/x", stomp.Message("/topic/x", "dropped"))
}

func TestDefaultRedisPrefix(t *testing.T) {
	b := newTestBridge(t, &mockTarget{})
	assert.Equal(t, "stomp:broker:broadcast", b.channel)
}
