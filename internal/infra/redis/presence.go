package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks active session codes with a TTL so sibling instances (or
// an operator poking at redis) can see which codes are live. The session
// state itself stays in process memory; redis carries only liveness.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Mark(ctx context.Context, code string) error {
	return p.client.Set(ctx, p.key(code), "1", p.ttl).Err()
}

func (p *Presence) Clear(ctx context.Context, code string) error {
	return p.client.Del(ctx, p.key(code)).Err()
}

func (p *Presence) key(code string) string {
	return "session:live:" + code
}
