package api

import (
	"sync"

	"fleetspan/internal/model"
)

// EventBroker fans run events out to subscribers of one run. Channels
// handed out by Subscribe are closed after Unsubscribe.
type EventBroker interface {
	Subscribe(runID string) chan model.RunEvent
	Unsubscribe(runID string, ch chan model.RunEvent)
	Publish(runID string, evt model.RunEvent)
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.RunEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.RunEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan model.RunEvent {
	ch := make(chan model.RunEvent, 8)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan model.RunEvent]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan model.RunEvent) {
	b.mu.Lock()
	m := b.subs[runID]
	_, ok := m[ch]
	if ok {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, runID)
		}
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(runID string, evt model.RunEvent) {
	b.mu.Lock()
	m := b.subs[runID]
	for ch := range m {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
