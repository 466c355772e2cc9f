package signal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DeliverFunc получает сообщение, опубликованное в топик.
type DeliverFunc func(topic string, payload []byte)

// Bus шина публикаций между экземплярами signaling-сервера.
// Один экземпляр обходится MemoryBus; несколько экземпляров за балансировщиком
// связываются через RedisBus.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, deliver DeliverFunc) error
	Close() error
}

// MemoryBus шина внутри одного процесса.
type MemoryBus struct {
	deliver DeliverFunc
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryBus создает шину внутри процесса.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish сразу доставляет сообщение подписчику.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	deliver, closed := b.deliver, b.closed
	b.mu.RUnlock()

	if closed {
		return ErrBusClosed
	}
	if deliver != nil {
		deliver(topic, payload)
	}
	return nil
}

// Subscribe задает получателя сообщений.
func (b *MemoryBus) Subscribe(_ context.Context, deliver DeliverFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deliver = deliver
	return nil
}

// Close закрывает шину.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.deliver = nil
	return nil
}

// RedisChannelPrefix префикс каналов redis для топиков
const RedisChannelPrefix = "mathroom:signal:"

// RedisBus шина поверх redis pub/sub.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
	pubsub *redis.PubSub
	done   chan struct{}
	mu     sync.Mutex
}

// NewRedisBus создает шину поверх redis и проверяет соединение.
func NewRedisBus(ctx context.Context, addr string, logger *slog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}

	return &RedisBus{
		client: client,
		logger: logger,
	}, nil
}

// Publish публикует сообщение в канал топика.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, channelFor(topic), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe подписывается на все топики и доставляет сообщения в deliver,
// пока шина не закрыта.
func (b *RedisBus) Subscribe(ctx context.Context, deliver DeliverFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return fmt.Errorf("redis bus already subscribed")
	}

	pubsub := b.client.PSubscribe(ctx, RedisChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		for msg := range pubsub.Channel() {
			topic, ok := topicFor(msg.Channel)
			if !ok {
				continue
			}
			deliver(topic, []byte(msg.Payload))
		}
		b.logger.Debug("Redis subscription finished")
	}()

	return nil
}

// Close закрывает подписку и соединение.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			b.logger.Warn("Failed to close redis subscription", "error", err)
		}
		<-done
	}
	return b.client.Close()
}

func channelFor(topic string) string {
	return RedisChannelPrefix + topic
}

func topicFor(channel string) (string, bool) {
	topic, ok := strings.CutPrefix(channel, RedisChannelPrefix)
	if !ok || topic == "" {
		return "", false
	}
	return topic, true
}
