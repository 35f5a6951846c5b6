// Package queue provides the work queues mappers and reducers race over. A
// claim hands one item to exactly one worker; the cursor behind it is never
// exposed and never rewinds.
package queue

import "sync"

// ClaimObserver is notified after every successful claim, outside the queue
// lock. worker is the id the caller passed to Claim.
type ClaimObserver[T any] func(worker int, item T)

// ClaimQueue hands out the items of a fixed slice in order, each exactly once.
type ClaimQueue[T any] struct {
	mu       sync.Mutex
	items    []T
	next     int
	observer ClaimObserver[T]
}

// New creates a queue over items. The slice is not copied and must not be
// modified afterwards.
func New[T any](items []T, observer ClaimObserver[T]) *ClaimQueue[T] {
	return &ClaimQueue[T]{items: items, observer: observer}
}

// Claim returns the next unclaimed item, or false once the queue is exhausted.
func (q *ClaimQueue[T]) Claim(worker int) (T, bool) {
	q.mu.Lock()
	if q.next >= len(q.items) {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	item := q.items[q.next]
	q.next++
	q.mu.Unlock()

	if q.observer != nil {
		q.observer(worker, item)
	}
	return item, true
}

// Remaining returns how many items have not been claimed yet.
func (q *ClaimQueue[T]) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.next
}

// Len returns the total number of items.
func (q *ClaimQueue[T]) Len() int {
	return len(q.items)
}

// NewFileQueue returns a queue over the file indices [0, total).
func NewFileQueue(total int, observer ClaimObserver[int]) *ClaimQueue[int] {
	indices := make([]int, total)
	for i := range indices {
		indices[i] = i
	}
	return New(indices, observer)
}

// Alphabet is the fixed letter order reducers claim in.
const Alphabet = "abcdefghijklmnopqrstuvwxyz"

// NewLetterQueue returns a queue over the letters a..z.
func NewLetterQueue(observer ClaimObserver[byte]) *ClaimQueue[byte] {
	return New([]byte(Alphabet), observer)
}

// Recorder is a ClaimObserver that keeps the full claim history.
type Recorder[T comparable] struct {
	mu     sync.Mutex
	claims []Claim[T]
}

// Claim is one recorded (worker, item) assignment.
type Claim[T comparable] struct {
	Worker int
	Item   T
}

func (r *Recorder[T]) Observe(worker int, item T) {
	r.mu.Lock()
	r.claims = append(r.claims, Claim[T]{Worker: worker, Item: item})
	r.mu.Unlock()
}

// Claims returns a copy of the history.
func (r *Recorder[T]) Claims() []Claim[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Claim[T](nil), r.claims...)
}

// Counts returns how many times each item was claimed.
func (r *Recorder[T]) Counts() map[T]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[T]int, len(r.claims))
	for _, c := range r.claims {
		counts[c.Item]++
	}
	return counts
}
