package engine

import (
	"sync"

	"github.com/seantiz/qdevice/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Broker fans job status events out to subscribers. It is safe for
// concurrent use.
//
// Closed topics are kept as markers so that a subscriber arriving after a
// job finished receives a closed channel instead of blocking forever.
// Markers are dropped with Forget when the job is freed.
type Broker struct {
	mu     sync.Mutex
	topics map[int64]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.JobEvent
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[int64]*eventTopic)}
}

// Subscribe returns a channel receiving status events for the job and an
// unsubscribe function. If the job already reached a terminal status the
// channel is closed.
func (b *Broker) Subscribe(jobID int64) (<-chan model.JobEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.JobEvent)}
		b.topics[jobID] = t
	}

	ch := make(chan model.JobEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends ev to every subscriber of ev.JobID. Events are dropped for
// subscribers whose buffers are full.
func (b *Broker) Publish(ev model.JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.JobID]
	if !ok || t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the job's stream. Subscriber channels are closed and later
// Subscribe calls return a closed channel.
func (b *Broker) Close(jobID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		b.topics[jobID] = &eventTopic{subs: make(map[int]chan model.JobEvent), closed: true}
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Forget drops everything the broker holds for the job, closing any
// remaining subscribers.
func (b *Broker) Forget(jobID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		return
	}
	for _, ch := range t.subs {
		close(ch)
	}
	delete(b.topics, jobID)
}

// Subscribe returns the job's current status together with a channel of
// subsequent status events. No event between the two is lost.
func (e *Engine) Subscribe(j *Job) (model.JobStatus, <-chan model.JobEvent, func(), error) {
	if j == nil {
		return 0, nil, nil, invalidf("nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if j.freed {
		return 0, nil, nil, invalidf("job %d was freed", j.id)
	}
	ch, unsub := e.broker.Subscribe(j.id)
	return j.status, ch, unsub, nil
}
