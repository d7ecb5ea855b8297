package telemetry

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func msg(i int) Message {
	return Message{Channel: Topic, Data: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))}
}

func TestRingBuffer_DrainInOrder(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drain(5); got != nil {
		t.Fatalf("expected nil from empty drain, got %d items", len(got))
	}
	for i := 0; i < 5; i++ {
		rb.push(msg(i))
	}
	got := rb.drain(3)
	if len(got) != 3 || string(got[0].Data) != `{"n":0}` || string(got[2].Data) != `{"n":2}` {
		t.Fatalf("unexpected first drain: %v", got)
	}
	got = rb.drain(10)
	if len(got) != 2 || string(got[0].Data) != `{"n":3}` {
		t.Fatalf("unexpected second drain: %v", got)
	}
	if rb.len() != 0 {
		t.Fatalf("buffer should be empty, has %d", rb.len())
	}
}

func TestRingBuffer_OverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	for i := 0; i < 8; i++ {
		rb.push(msg(i))
	}
	got := rb.drain(10)
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, m := range got {
		if want := fmt.Sprintf(`{"n":%d}`, i+3); string(m.Data) != want {
			t.Errorf("item %d: got %s, want %s", i, m.Data, want)
		}
	}
	if rb.dropped != 3 {
		t.Errorf("dropped = %d, want 3", rb.dropped)
	}
}

func TestSubscriber_HandleDrainAndListen(t *testing.T) {
	s := NewSubscriber(30, nil)
	ch, stop := s.Listen(4)
	defer stop()

	s.Handle(Topic, []byte(`{"message_type":"text","message":"Torra iniciada!"}`))
	s.Handle(Topic, []byte(`not json`))

	select {
	case m := <-ch:
		if m.Channel != Topic {
			t.Fatalf("channel = %q", m.Channel)
		}
	case <-time.After(time.Second):
		t.Fatalf("listener did not receive message")
	}

	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 (invalid payload dropped)", s.Pending())
	}
	got := s.Drain(30)
	if len(got) != 1 {
		t.Fatalf("drained %d", len(got))
	}
	var data map[string]string
	if err := json.Unmarshal(got[0].Data, &data); err != nil || data["message"] != "Torra iniciada!" {
		t.Fatalf("unexpected data %s (%v)", got[0].Data, err)
	}
}

func TestSubscriber_SlowListenerDoesNotBlock(t *testing.T) {
	s := NewSubscriber(100, nil)
	_, stop := s.Listen(1)
	for i := 0; i < 10; i++ {
		s.Handle(Topic, []byte(`{}`))
	}
	stop()
	stop() // idempotent
	if s.Pending() != 10 {
		t.Fatalf("pending = %d", s.Pending())
	}
}
