package store

import (
	"context"
	"errors"
)

// Keys under which the session persists its state.
const (
	KeyHourlyRate = "hourlyRate"
	KeyWorkDays   = "workDays"
)

var ErrClosed = errors.New("store closed")

// Ports for outbound adapters.
type (
	// Store is durable key-value storage that survives process restarts.
	Store interface {
		// Get returns the value stored under key. ok is false when the key
		// is absent; that is not an error.
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key, value string) error
		Remove(ctx context.Context, key string) error
	}
)
