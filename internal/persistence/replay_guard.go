package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard is a best-effort duplicate-scan filter backed by Redis SETNX.
// It lets concurrent scanners fail fast before reaching the database, but the
// conditional update in the token store remains the authority on consumption.
type ReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayGuard builds a guard over an existing Redis wrapper. Returns nil
// when Redis is not configured; callers treat a nil guard as always-allow.
func NewReplayGuard(r *Redis, ttl time.Duration) *ReplayGuard {
	if r == nil || r.Client == nil {
		return nil
	}
	return &ReplayGuard{client: r.Client, ttl: ttl}
}

// Reserve marks a signature as in-flight. The first caller gets true; anyone
// racing the same signature within the TTL gets false. Errors are reported as
// allow so a Redis outage never blocks redemption.
func (g *ReplayGuard) Reserve(ctx context.Context, signature string) (bool, error) {
	if g == nil {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, replayKey(signature), 1, g.ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Release drops a reservation after a failed consumption so a later retry of
// a still-valid token is not shadow-blocked until the TTL expires.
func (g *ReplayGuard) Release(ctx context.Context, signature string) {
	if g == nil {
		return
	}
	g.client.Del(ctx, replayKey(signature))
}

func replayKey(signature string) string {
	return "qr:scan:" + signature
}
