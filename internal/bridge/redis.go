package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-stomp-broker/internal/stomp"
	"github.com/redis/go-redis/v9"
)

// redisEnvelope tags a message with the instance that published it so an
// instance can skip its own messages.
type redisEnvelope struct {
	InstanceID  string `json:"instance_id"`
	Destination string `json:"destination"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
}

var _ Bridge = (*RedisBridge)(nil)

// RedisBridge relays messages through a Redis pub/sub channel.
type RedisBridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	target     BroadcastTarget

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

func NewRedisBridge(cfg config.RedisConfig, target BroadcastTarget) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		channel:    cfg.Prefix + "broadcast",
		instanceID: uuid.New().String(),
		target:     target,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (b *RedisBridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to the broadcast channel and begins relaying messages.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	sub := b.client.Subscribe(b.ctx, b.channel)
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	logger.InfoF("Redis bridge %s started on channel %s", b.instanceID, b.channel)
	return nil
}

// Relay publishes frame to the other instances. Failures are logged since
// delivery to remote subscribers is best effort.
func (b *RedisBridge) Relay(destination string, frame *stomp.Frame) {
	if !b.Available() {
		return
	}
	data, err := b.encode(destination, frame)
	if err != nil {
		logger.ErrorF("Fail to encode relayed message, details: %v", err)
		return
	}
	if err := b.client.Publish(b.ctx, b.channel, data).Err(); err != nil {
		logger.WarnF("Fail to relay message to %s, details: %v", destination, err)
	}
}

func (b *RedisBridge) encode(destination string, frame *stomp.Frame) ([]byte, error) {
	return json.Marshal(redisEnvelope{
		InstanceID:  b.instanceID,
		Destination: destination,
		ContentType: frame.Headers.Value(stomp.HeaderContentType),
		Body:        frame.Body,
	})
}

func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Invoke stops the bridge on shutdown.
func (b *RedisBridge) Invoke(_ context.Context) error {
	logger.InfoF("Stopping redis bridge")
	return b.Stop()
}

func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handlePayload(msg.Payload)
		case <-b.ctx.Done():
			return
		}
	}
}

// handlePayload publishes a message from another instance to local subscribers.
func (b *RedisBridge) handlePayload(payload string) {
	var env redisEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.ErrorF("Fail to decode redis message, details: %v", err)
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	message := stomp.Message(env.Destination, env.Body)
	if env.ContentType != "" {
		message.Headers.Set(stomp.HeaderContentType, env.ContentType)
	}
	delivered := b.target.Publish(env.Destination, message)
	logger.DebugF("Relayed message from %s to %d local subscribers of %s", env.InstanceID, delivered, env.Destination)
}
