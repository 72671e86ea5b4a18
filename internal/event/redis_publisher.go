package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"presence-auth/internal/domain"
)

// RedisPublisher publica eventos como JSON en canales pub/sub de redis,
// un canal por tipo de evento bajo el prefijo events:.
type RedisPublisher struct {
	client redisPublisher
	prefix string
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	if client == nil {
		return nil
	}
	return &RedisPublisher{
		client: client,
		prefix: "events:",
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return p.client.Publish(ctx, p.prefix+string(ev.Type), payload).Err()
}
