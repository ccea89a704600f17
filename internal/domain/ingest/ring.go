package ingest

// Ring is a fixed-capacity buffer over a preallocated slot array. Pushing
// into a full ring overwrites the oldest entry.
type Ring[T any] struct {
	data    []T
	head    int // index of the oldest entry
	size    int
	evicted uint64
}

// NewRing creates a Ring holding up to capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v and reports whether the oldest entry was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size == len(r.data) {
		r.data[r.head] = v
		r.head = (r.head + 1) % len(r.data)
		r.evicted++
		return true
	}
	r.data[(r.head+r.size)%len(r.data)] = v
	r.size++
	return false
}

// Len returns the number of buffered entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the slot count.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Evicted returns how many entries were overwritten since creation.
func (r *Ring[T]) Evicted() uint64 { return r.evicted }

// At returns the i-th entry, oldest first.
func (r *Ring[T]) At(i int) T {
	return r.data[(r.head+i)%len(r.data)]
}

// Newest returns the most recent entry.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.At(r.size - 1), true
}

// DropOldest discards the n oldest entries.
func (r *Ring[T]) DropOldest(n int) {
	var zero T
	if n > r.size {
		n = r.size
	}
	for i := 0; i < n; i++ {
		r.data[r.head] = zero
		r.head = (r.head + 1) % len(r.data)
	}
	r.size -= n
	if r.size == 0 {
		r.head = 0
	}
}

// Clear empties the ring without releasing its slots.
func (r *Ring[T]) Clear() { r.DropOldest(r.size) }

// Slice copies the entries in insertion order.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}
