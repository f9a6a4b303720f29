// Package buildhook coalesces site-rebuild requests and turns them into
// GitHub repository-dispatch events.
package buildhook

import "sync"

// Queue buffers rebuild requests between cron drains. Rebuilds are
// idempotent, so only the most recent request matters; the rest exist
// to report how many were coalesced.
type Queue struct {
	mu     sync.Mutex
	events []string
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push records a rebuild request with the given workflow event type.
func (q *Queue) Push(eventType string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, eventType)
}

// DrainLatest removes every queued request and returns the most recent
// event type together with the number of requests it coalesced. The
// bool is false when the queue was empty.
func (q *Queue) DrainLatest() (string, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := len(q.events)
	if count == 0 {
		return "", 0, false
	}

	latest := q.events[count-1]
	q.events = nil
	return latest, count, true
}

// Snapshot returns a copy of the queued event types.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.events))
	copy(out, q.events)
	return out
}

// Len reports the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
