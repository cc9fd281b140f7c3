package queue

import (
	"asyncpub/broker"
	"errors"
	"sync"

	ring "github.com/eapache/queue"
)

var ErrorQueueUnavailable = errors.New("queue unavailable")

// Queue is an unbounded FIFO shared by many producers and one consumer.
// The lock is held only for the duration of a single operation.
type Queue struct {
	mu       sync.Mutex
	q        *ring.Queue
	released bool
}

func New() *Queue {
	return &Queue{
		q: ring.New(),
	}
}

func (q *Queue) Push(m *broker.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released {
		return ErrorQueueUnavailable
	}

	q.q.Add(m)

	return nil
}

// Pop never blocks; the consumer polls.
func (q *Queue) Pop() (*broker.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released || q.q.Length() == 0 {
		return nil, false
	}

	return q.q.Remove().(*broker.Message), true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released {
		return 0
	}

	return q.q.Length()
}

func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Release drops every pending message and refuses further pushes. It
// returns how many messages were dropped.
func (q *Queue) Release() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.released {
		return 0
	}

	n := q.q.Length()
	q.q = ring.New()
	q.released = true

	return n
}
