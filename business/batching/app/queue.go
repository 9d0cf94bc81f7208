package app

import (
	"sync"

	"github.com/fd1az/multicall-batcher/business/batching/domain"
)

// CallQueue holds calls waiting for a batch cycle. It is safe for concurrent use.
type CallQueue struct {
	mu     sync.Mutex
	nextID uint64
	calls  []domain.QueuedCall
}

// NewCallQueue creates an empty queue.
func NewCallQueue() *CallQueue {
	return &CallQueue{}
}

// Enqueue appends calls and returns their assigned ids.
func (q *CallQueue) Enqueue(calls ...domain.Call) []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]uint64, len(calls))
	for i, c := range calls {
		q.nextID++
		q.calls = append(q.calls, domain.QueuedCall{ID: q.nextID, Call: c})
		ids[i] = q.nextID
	}
	return ids
}

// Snapshot returns the queued calls in insertion order.
func (q *CallQueue) Snapshot() []domain.QueuedCall {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedCall, len(q.calls))
	copy(out, q.calls)
	return out
}

// Remove deletes the calls with the given ids in one mutation and returns how
// many were removed. Unknown ids are ignored.
func (q *CallQueue) Remove(ids ...uint64) int {
	if len(ids) == 0 {
		return 0
	}

	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.calls[:0]
	for _, c := range q.calls {
		if _, ok := drop[c.ID]; !ok {
			kept = append(kept, c)
		}
	}
	removed := len(q.calls) - len(kept)

	// clear the tail so removed calldata can be collected
	clear(q.calls[len(kept):])
	q.calls = kept

	return removed
}

// Len returns the number of queued calls.
func (q *CallQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}
