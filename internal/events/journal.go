package events

import (
	"fmt"
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
// A subscriber that falls this far behind starts losing events.
const subscriberBuffer = 64

// Journal is an in-memory, append-only, totally ordered event log.
// It implements Sink; the ledger appends to it synchronously, so journal
// order is mutation order.
type Journal struct {
	mu      sync.RWMutex
	entries []Event
	nextSub int
	subs    map[int]chan Event
}

// NewJournal creates an empty Journal.
func NewJournal() *Journal {
	return &Journal{subs: make(map[int]chan Event)}
}

// Emit implements Sink. It assigns the next sequence number and fans the
// event out to subscribers. Slow subscribers are skipped, never blocked on.
func (j *Journal) Emit(ev Event) {
	j.mu.Lock()
	ev.Seq = uint64(len(j.entries) + 1)
	j.entries = append(j.entries, ev)
	for _, ch := range j.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	j.mu.Unlock()
}

// Get returns the event with the given sequence number (1-based).
func (j *Journal) Get(seq uint64) (Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if seq < 1 || seq > uint64(len(j.entries)) {
		return Event{}, fmt.Errorf("event %d out of range", seq)
	}
	return j.entries[seq-1], nil
}

// Len returns the number of events appended so far.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Since returns all events with sequence numbers strictly greater than seq,
// in append order.
func (j *Journal) Since(seq uint64) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if seq >= uint64(len(j.entries)) {
		return nil
	}
	tail := j.entries[seq:]
	out := make([]Event, len(tail))
	copy(out, tail)
	return out
}

// Subscribe registers a live event channel. The returned cancel function
// unregisters and closes it.
func (j *Journal) Subscribe() (<-chan Event, func()) {
	j.mu.Lock()
	id := j.nextSub
	j.nextSub++
	ch := make(chan Event, subscriberBuffer)
	j.subs[id] = ch
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		if _, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(ch)
		}
		j.mu.Unlock()
	}
	return ch, cancel
}
