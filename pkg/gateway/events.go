package gateway

import (
	"sync"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// EventKind discriminates the two event types flowing from the
// supervisors to the translation worker.
type EventKind int

const (
	// EventData carries one reported or polled value.
	EventData EventKind = iota
	// EventInvalidate marks every point of an IED as quality-invalid.
	EventInvalidate
)

// Source tags where a data event came from. It only influences logging.
type Source int

const (
	SourceReport Source = iota
	SourcePoll
)

func (s Source) String() string {
	if s == SourceReport {
		return "report"
	}
	return "poll"
}

// Event is one item on the update queue.
type Event struct {
	Kind   EventKind
	IED    string
	Key    string
	Source Source
	Value  iec61850.Value
}

// Queue is the bounded multi-producer single-consumer event queue between
// the supervisors and the translation worker. Submissions never block:
// when the queue is full the oldest event is evicted and logged. IED
// reports are lossy by nature, so backpressure is not propagated upstream.
type Queue struct {
	mu  sync.Mutex
	ch  chan Event
	log *logging.Logger
	m   *metrics.Metrics
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int, log *logging.Logger, m *metrics.Metrics) *Queue {
	return &Queue{
		ch:  make(chan Event, capacity),
		log: log,
		m:   m,
	}
}

// Submit enqueues an event. Safe for concurrent use; events submitted by
// one producer keep their order.
func (q *Queue) Submit(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case q.ch <- ev:
		return
	default:
	}

	// Full: evict the oldest event to make room. The consumer may have
	// drained concurrently, in which case nothing is lost.
	select {
	case old := <-q.ch:
		q.log.Warn("update queue full, dropping oldest event",
			"ied", old.IED, "key", old.Key)
		q.m.QueueDrops.Inc()
	default:
	}
	q.ch <- ev
}

// C returns the consumer side of the queue.
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}
