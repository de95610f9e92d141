// Package cache provides the persistent key/value stores backing the metal
// rate cache.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when the key has no value.
var ErrMiss = errors.New("cache: miss")

// Store is a string key/value store that survives process restarts.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
