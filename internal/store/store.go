// Package store keeps small named sets of strings (subscriptions, favourites)
// across runs.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// SubscriptionsKey holds the subscribed Invidious channel IDs.
const SubscriptionsKey = "invidious_subs"

// Store is a persisted map of string sets.
type Store interface {
	// Members returns the set under key in insertion order. A missing key is
	// an empty set.
	Members(ctx context.Context, key string) ([]string, error)
	// Add inserts member and reports whether it was new.
	Add(ctx context.Context, key, member string) (bool, error)
	// Remove deletes member and reports whether it was present.
	Remove(ctx context.Context, key, member string) (bool, error)
	Contains(ctx context.Context, key, member string) (bool, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver    string // sqlite, redis or memory
	Path      string // sqlite database file
	RedisAddr string
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, opts.Path)
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

func checkArgs(key, member string) error {
	if key == "" {
		return errors.New("store: empty key")
	}
	if member == "" {
		return errors.New("store: empty member")
	}
	return nil
}
