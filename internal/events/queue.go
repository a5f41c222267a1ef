package events

import "sync"

// Sink accepts events. Push must never block: it is called from signal
// handlers, timers and helper goroutines.
type Sink interface {
	Push(ev Event)
}

// Queue is an unbounded FIFO of events with a single consumer. Order of
// Push calls is preserved, which keeps events for the same process in the
// order they were reported.
type Queue struct {
	mu sync.Mutex

	// items holds pending events in FIFO order
	items []Event

	// notify has capacity one and wakes a blocked Pop
	notify chan struct{}

	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends an event. Events pushed after Close are dropped.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, ev)

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop returns the next event, blocking until one is available, the stop
// channel is closed, or the queue is closed and drained.
func (q *Queue) Pop(stop <-chan struct{}) (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-stop:
			return nil, false
		}
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting events. Pending events can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}
