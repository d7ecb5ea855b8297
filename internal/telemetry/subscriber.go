package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"coffee_roaster/internal/logger"
)

// Message is one relay payload as seen by the dashboard.
type Message struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Subscriber consumes the relay topic, keeps the newest messages for polling
// clients and fans them out to live listeners.
type Subscriber struct {
	log *logger.Logger

	mu        sync.Mutex
	buf       *ringBuffer
	listeners map[int]chan Message
	nextID    int

	client paho.Client
}

// NewSubscriber keeps up to capacity undelivered messages.
func NewSubscriber(capacity int, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{
		log:       log,
		buf:       newRingBuffer(capacity),
		listeners: make(map[int]chan Message),
	}
}

// Connect subscribes to topic on broker and feeds every message to Handle.
func (s *Subscriber) Connect(broker, clientID, topic string, timeout time.Duration) error {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	opts.SetOnConnectHandler(func(c paho.Client) {
		// resubscribe after every reconnect
		token := c.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) {
			s.Handle(m.Topic(), m.Payload())
		})
		if token.WaitTimeout(timeout) && token.Error() != nil {
			s.log.Errorw("relay subscribe failed", "topic", topic, "err", token.Error())
		}
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connect to broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %s: %w", broker, err)
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.log.Infow("relay subscribed", "broker", broker, "topic", topic)
	return nil
}

// Handle accepts one raw relay message. Payloads that are not JSON are dropped.
func (s *Subscriber) Handle(topic string, payload []byte) {
	if !json.Valid(payload) {
		s.log.Warnw("dropping non-JSON relay message", "topic", topic)
		return
	}
	msg := Message{Channel: topic, Data: append(json.RawMessage(nil), payload...)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.push(msg)
	for _, ch := range s.listeners {
		select {
		case ch <- msg:
		default:
			// slow listener; it still sees later messages
		}
	}
}

// Drain removes and returns up to max buffered messages, oldest first.
func (s *Subscriber) Drain(max int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.drain(max)
}

// Pending is the number of buffered messages.
func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.len()
}

// Listen registers a live listener. The returned func unregisters it and
// closes the channel.
func (s *Subscriber) Listen(buffer int) (<-chan Message, func()) {
	ch := make(chan Message, buffer)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Close disconnects from the broker, if connected.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c != nil {
		c.Disconnect(1000)
	}
	return nil
}
