// Package queue buffers public booking submissions in memory and drains them
// strictly in FIFO order with a bounded retry budget. It decouples "the
// customer pressed submit" from "the store accepted the booking" so bursts on
// the unauthenticated booking endpoint degrade into queue wait, not errors.
//
// The queue is ephemeral by design: items do not survive a process restart.
// Customers whose submission was in flight during a restart see an unknown
// status and resubmit.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Payload is the booking request as submitted by the customer.
type Payload struct {
	BusinessID    string
	ServiceID     string
	StaffID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	EndTime       time.Time
	Notes         string
}

// Booking is one queued submission.
type Booking struct {
	ID         string
	Payload    Payload
	EnqueuedAt time.Time
	Attempts   int
}

type State int

const (
	StatePending State = iota
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is what the polling endpoint reports for a submission.
type Status struct {
	State         State
	Position      int // 1-based position while pending, 0 otherwise
	Attempts      int
	AppointmentID string
	Reason        string
}

const defaultResultCap = 1024

// Queue holds pending submissions plus a bounded table of terminal results so
// status lookups keep answering after an item has left the queue.
type Queue struct {
	mu        sync.Mutex
	items     []*Booking
	results   map[string]Status
	resultIDs []string
	resultCap int
}

func New() *Queue {
	return &Queue{
		results:   make(map[string]Status),
		resultCap: defaultResultCap,
	}
}

// Enqueue appends to the tail and always succeeds; there is no backpressure
// signal beyond the returned queue position.
func (q *Queue) Enqueue(p Payload) (id string, position int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := &Booking{
		ID:         uuid.NewString(),
		Payload:    p,
		EnqueuedAt: time.Now(),
	}
	q.items = append(q.items, b)
	return b.ID, len(q.items)
}

// Status reports the state of a submission. The second return is false when
// the id was never seen or its terminal result has been evicted.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, b := range q.items {
		if b.ID == id {
			return Status{State: StatePending, Position: i + 1, Attempts: b.Attempts}, true
		}
	}
	st, ok := q.results[id]
	return st, ok
}

// Len returns the number of pending submissions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// bumpAttempts increments a booking's attempt counter under the queue lock,
// since Status reads the counter concurrently, and returns the new value.
func (q *Queue) bumpAttempts(b *Booking) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	b.Attempts++
	return b.Attempts
}

// head returns the front item without removing it.
func (q *Queue) head() *Booking {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// popHead removes the front item if it is still the given booking and records
// its terminal status.
func (q *Queue) popHead(b *Booking, st Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0] != b {
		return
	}
	q.items = q.items[1:]
	q.recordLocked(b.ID, st)
}

func (q *Queue) recordLocked(id string, st Status) {
	if _, exists := q.results[id]; !exists {
		q.resultIDs = append(q.resultIDs, id)
		if len(q.resultIDs) > q.resultCap {
			evict := q.resultIDs[0]
			q.resultIDs = q.resultIDs[1:]
			delete(q.results, evict)
		}
	}
	q.results[id] = st
}
