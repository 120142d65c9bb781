package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every set in a shared Redis database.
const keyPrefix = "scrapecast:"

// Redis stores each set as a Redis set. Redis sets are unordered, so Members
// returns them sorted.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis store: empty address")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Redis{client: rdb}, nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{client: rdb} }

func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	out, err := r.client.SMembers(ctx, keyPrefix+key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("listing %s: %w", key, err)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Redis) Add(ctx context.Context, key, member string) (bool, error) {
	if err := checkArgs(key, member); err != nil {
		return false, err
	}
	n, err := r.client.SAdd(ctx, keyPrefix+key, member).Result()
	if err != nil {
		return false, fmt.Errorf("adding to %s: %w", key, err)
	}
	return n == 1, nil
}

func (r *Redis) Remove(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SRem(ctx, keyPrefix+key, member).Result()
	if err != nil {
		return false, fmt.Errorf("removing from %s: %w", key, err)
	}
	return n == 1, nil
}

func (r *Redis) Contains(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, keyPrefix+key, member).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return ok, nil
}

func (r *Redis) Close() error { return r.client.Close() }
