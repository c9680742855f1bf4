// Package ring implements a fixed-capacity FIFO buffer that drops its oldest
// element on overflow and serialises as a plain JSON array.
package ring

import "encoding/json"

// Ring keeps at most Cap items in insertion order.
type Ring[T any] struct {
	items []T
	cap   int
}

// New returns an empty ring holding at most capacity items (minimum 1).
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity}
}

// Push appends v, evicting the oldest items beyond capacity.
func (r *Ring[T]) Push(v T) {
	r.items = append(r.items, v)
	if over := len(r.items) - r.cap; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Ring[T]) Len() int { return len(r.items) }
func (r *Ring[T]) Cap() int { return r.cap }

// SetCap changes the capacity, trimming the oldest items if needed.
func (r *Ring[T]) SetCap(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	r.cap = capacity
	if over := len(r.items) - r.cap; over > 0 {
		r.items = append(r.items[:0:0], r.items[over:]...)
	}
}

func (r Ring[T]) MarshalJSON() ([]byte, error) {
	if r.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.items)
}

// UnmarshalJSON restores items; the capacity is left unchanged and must be
// re-applied with SetCap by the owner.
func (r *Ring[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	r.items = items
	if r.cap == 0 {
		r.cap = len(items)
		if r.cap == 0 {
			r.cap = 1
		}
	}
	return nil
}
