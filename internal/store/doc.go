package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btouchard/holdfast/internal/fault"
)

// Doc binds one record key to a Go type. Each engine owns exactly one Doc
// per record and is its sole writer.
//
// Mutations are serialised by an in-process mutex, and every write is a
// compare-and-swap on the version read at the start of the mutation, so a
// concurrent writer in another process produces ErrVersionConflict instead
// of a silent lost update. Nothing is retried.
type Doc[T any] struct {
	store    Store
	key      string
	defaults func() T

	mu sync.Mutex
}

// NewDoc returns a Doc for key. defaults builds the value used when the
// record is absent or unreadable.
func NewDoc[T any](s Store, key string, defaults func() T) *Doc[T] {
	return &Doc[T]{store: s, key: key, defaults: defaults}
}

// Key returns the record key.
func (d *Doc[T]) Key() string { return d.key }

// Get returns the stored value. Missing records yield the defaults; store or
// decoding errors are logged and also yield the defaults, so a corrupt record
// never crashes a reader.
func (d *Doc[T]) Get(ctx context.Context) T {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, _, err := d.load(ctx)
	if err != nil {
		slog.Warn("reading record failed, using defaults", "key", d.key, "error", err)
		return d.defaults()
	}
	return v
}

// Update applies fn to the current value and writes the result. If fn
// returns an error nothing is written and that error is returned as is.
// Store failures are wrapped with fault.ErrStore.
func (d *Doc[T]) Update(ctx context.Context, fn func(*T) error) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, version, err := d.load(ctx)
	if err != nil {
		var decodeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &decodeErr) && !errors.As(err, &syntaxErr) {
			var zero T
			return zero, fault.Store("reading "+d.key, err)
		}
		slog.Warn("record is corrupt, overwriting with defaults", "key", d.key, "error", err)
		v = d.defaults()
	}

	if err := fn(&v); err != nil {
		return v, err
	}

	if err := d.save(ctx, v, version); err != nil {
		slog.Error("writing record failed", "key", d.key, "error", err)
		return v, fault.Store("writing "+d.key, err)
	}
	return v, nil
}

// Sweep is the read-with-maintenance path: fn may repair the value (expire
// timers, roll counters) and reports whether it changed anything. A changed
// value is written back; a failed write is logged and the repaired value is
// still returned.
func (d *Doc[T]) Sweep(ctx context.Context, fn func(*T) bool) T {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, version, err := d.load(ctx)
	if err != nil {
		slog.Warn("reading record failed, using defaults", "key", d.key, "error", err)
		v = d.defaults()
		fn(&v)
		return v
	}

	if fn(&v) {
		if err := d.save(ctx, v, version); err != nil {
			slog.Warn("writing repaired record failed", "key", d.key, "error", err)
		}
	}
	return v
}

func (d *Doc[T]) load(ctx context.Context) (T, int64, error) {
	rec, err := d.store.Get(ctx, d.key)
	if errors.Is(err, ErrNotFound) {
		return d.defaults(), 0, nil
	}
	if err != nil {
		return d.defaults(), 0, err
	}

	v := d.defaults()
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return d.defaults(), rec.Version, fmt.Errorf("decoding %s: %w", d.key, err)
	}
	return v, rec.Version, nil
}

func (d *Doc[T]) save(ctx context.Context, v T, version int64) error {
	data, err := json.Marshal(&v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.key, err)
	}
	return d.store.Put(ctx, &Record{Key: d.key, Data: data, Version: version})
}
