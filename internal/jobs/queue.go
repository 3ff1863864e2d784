package jobs

import (
	"context"
	"fmt"
	"sync"
)

// CandidateQueue hands candidate identifiers from the listing scanner to the
// detail fetcher pool. Close signals that no more candidates will arrive;
// consumers block on Next and observe the close instead of polling. Close
// waits for in-flight pushes to finish, so a racing Push either lands before
// the close or reports an error, never a panic.
type CandidateQueue struct {
	ch     chan CandidateID
	mu     sync.RWMutex
	closed bool
}

// NewCandidateQueue constructs a bounded queue with the provided capacity.
func NewCandidateQueue(capacity int) *CandidateQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &CandidateQueue{ch: make(chan CandidateID, capacity)}
}

// Push enqueues a candidate or returns if the context ends. Pushing to a
// closed queue returns an error rather than panicking.
func (q *CandidateQueue) Push(ctx context.Context, id CandidateID) error {
	// The read lock is held across the send; Close cannot close the channel
	// under a blocked push.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("push to closed candidate queue")
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("push canceled: %w", ctx.Err())
	case q.ch <- id:
		return nil
	}
}

// Next blocks for the next candidate. ok is false once the queue is closed
// and drained, which is the workers' signal to exit.
func (q *CandidateQueue) Next(ctx context.Context) (id CandidateID, ok bool, err error) {
	select {
	case <-ctx.Done():
		return "", false, fmt.Errorf("next canceled: %w", ctx.Err())
	case id, ok := <-q.ch:
		return id, ok, nil
	}
}

// Close marks the producer as finished. Safe to call more than once; blocks
// until in-flight pushes have completed.
func (q *CandidateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
