package telemetry

import (
	"sync"

	"coffee_roaster/internal/models"
)

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Topics and Payloads are recorded in publish order.
	Topics   []string
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Topics = append(f.Topics, topic)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns a copy of the recorded payloads.
func (f *FakePublisher) Published() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.Payloads...)
}

// FakeSink collects everything it is given.
type FakeSink struct {
	mu     sync.Mutex
	ticks  []models.Tick
	events []models.RoastEvent
}

func (f *FakeSink) Record(tick models.Tick) {
	f.mu.Lock()
	f.ticks = append(f.ticks, tick)
	f.mu.Unlock()
}

func (f *FakeSink) Event(ev models.RoastEvent) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

// Ticks returns a copy of the recorded ticks.
func (f *FakeSink) Ticks() []models.Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tick(nil), f.ticks...)
}

// Events returns a copy of the recorded events.
func (f *FakeSink) Events() []models.RoastEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RoastEvent(nil), f.events...)
}

// EventsOfType filters the recorded events.
func (f *FakeSink) EventsOfType(typ string) []models.RoastEvent {
	var out []models.RoastEvent
	for _, ev := range f.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
