package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by Put when the stored version no longer
	// matches the version the caller read.
	ErrVersionConflict = errors.New("record version conflict")
)

// Store is the durable persistence interface for holdfast.
// Defined at the consumer side per Go conventions.
type Store interface {
	// Records
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, r *Record) error
	Delete(ctx context.Context, key string) error

	AlarmStore

	Close() error
}

// AlarmStore persists scheduler wake-ups so they survive restarts.
type AlarmStore interface {
	SaveAlarm(ctx context.Context, a Alarm) error
	DeleteAlarm(ctx context.Context, label string) error
	// ClearAlarm deletes the alarm only if it still fires at the given time.
	ClearAlarm(ctx context.Context, label string, fireAt time.Time) error
	ListAlarms(ctx context.Context) ([]Alarm, error)
}

// Record is a versioned JSON snapshot stored under a stable key.
// Version 0 means "not yet stored"; Put increments it on every write.
type Record struct {
	Key       string
	Data      []byte
	Version   int64
	UpdatedAt time.Time
}

// Alarm is a persisted wake-up request.
type Alarm struct {
	Label  string
	FireAt time.Time
}
