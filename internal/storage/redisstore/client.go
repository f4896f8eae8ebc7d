// Package redisstore keeps sessions, transcripts and drafts in Redis and
// provides a distributed submission lock for multi-worker deployments.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "coach:"

// Connect creates a Redis client from a URL and verifies it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func sessionKey(id string) string    { return keyPrefix + "session:" + id }
func transcriptKey(id string) string { return keyPrefix + "transcript:" + id }
func lockKey(key string) string      { return keyPrefix + "lock:" + key }

const (
	sessionIndexKey = keyPrefix + "sessions"
	draftsKey       = keyPrefix + "drafts"
)
