package service

import "coffee_roaster/internal/telemetry"

// MaxDrain caps one drain of the relay buffer.
const MaxDrain = 30

type RelayService struct {
	src Relay
}

func NewRelayService(src Relay) *RelayService {
	return &RelayService{src: src}
}

// Drain removes and returns up to max buffered messages, oldest first.
// max is clamped to [1, MaxDrain].
func (s *RelayService) Drain(max int) []telemetry.Message {
	if s.src == nil {
		return nil
	}
	if max <= 0 || max > MaxDrain {
		max = MaxDrain
	}
	return s.src.Drain(max)
}

// Listen subscribes to live relay messages. Without a relay the channel
// is closed immediately.
func (s *RelayService) Listen(buffer int) (<-chan telemetry.Message, func()) {
	if s.src == nil {
		ch := make(chan telemetry.Message)
		close(ch)
		return ch, func() {}
	}
	return s.src.Listen(buffer)
}
