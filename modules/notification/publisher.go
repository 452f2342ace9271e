package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// LocalPublisher - 같은 프로세스의 Hub 로 직접 방송
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(ctx context.Context, userID string, payload any) error {
	env, err := NewEnvelope(userID, payload)
	if err != nil {
		return err
	}
	p.hub.Broadcast(env)
	return nil
}

// RedisPublisher - Redis Pub/Sub 로 발행 (모든 서버 프로세스의 Hub 가 구독)
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: GroupName}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID string, payload any) error {
	env, err := NewEnvelope(userID, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// RelayFrom - Redis 채널 구독 → Hub 방송 (ctx 종료까지 블록)
func (h *Hub) RelayFrom(ctx context.Context, rdb *redis.Client) error {
	sub := rdb.Subscribe(ctx, h.group)
	defer sub.Close()

	// 구독 확인
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe failed: %w", err)
	}
	log.Printf("👂 Relaying notifications from Redis channel: %s", h.group)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warnf("⚠️  Dropping malformed notification: %v", err)
				continue
			}
			h.Broadcast(env)
		}
	}
}
