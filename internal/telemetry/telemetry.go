// Package telemetry carries per-tick roaster readings and operator messages
// out of the control loop: to the console, to an MQTT relay and to SQLite.
package telemetry

import (
	"encoding/json"
	"time"

	"coffee_roaster/internal/models"
)

// Topic is the relay topic roast telemetry is published on.
const Topic = "carmomaq10"

// Message types carried in the relay payload.
const (
	TypeData = "data"
	TypeText = "text"
)

// timestampLayout matches the seconds-precision ISO timestamps operators see.
const timestampLayout = "2006-01-02T15:04:05"

// Sink receives telemetry from the control loop. Implementations must not
// block: the control tick calls them synchronously.
type Sink interface {
	Record(tick models.Tick)
	Event(ev models.RoastEvent)
}

// Closer is implemented by sinks that own background workers.
type Closer interface {
	Close() error
}

// Multi fans telemetry out to several sinks.
type Multi []Sink

func (m Multi) Record(tick models.Tick) {
	for _, s := range m {
		s.Record(tick)
	}
}

func (m Multi) Event(ev models.RoastEvent) {
	for _, s := range m {
		s.Event(ev)
	}
}

// Close closes every member that has workers, returning the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Discard drops everything.
type Discard struct{}

func (Discard) Record(models.Tick)      {}
func (Discard) Event(models.RoastEvent) {}

// FormatTick builds the relay payload for a tick: every snapshot field plus
// message_type "data" and the timestamp.
func FormatTick(tick models.Tick) ([]byte, error) {
	raw, err := json.Marshal(tick)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["message_type"] = TypeData
	fields["timestamp"] = tick.Timestamp.Format(timestampLayout)
	fields["datetime"] = tick.Timestamp.Format(timestampLayout)
	return json.Marshal(fields)
}

// TextPayload is the relay payload for an operator message.
type TextPayload struct {
	MessageType string `json:"message_type"`
	Timestamp   string `json:"timestamp"`
	Message     string `json:"message"`
	Type        string `json:"type,omitempty"`
	RoastID     string `json:"roast_id,omitempty"`
}

// FormatEvent builds the relay payload for an event.
func FormatEvent(ev models.RoastEvent) ([]byte, error) {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(TextPayload{
		MessageType: TypeText,
		Timestamp:   ts.Format(timestampLayout),
		Message:     ev.Description,
		Type:        ev.Type,
		RoastID:     ev.RoastID,
	})
}
