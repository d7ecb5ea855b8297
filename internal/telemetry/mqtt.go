package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
)

// Publisher sends one payload to the relay.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// RealPublisher publishes to an MQTT broker.
type RealPublisher struct {
	client paho.Client
}

// NewRealPublisher connects to broker ("tcp://host:1883").
func NewRealPublisher(broker, clientID string, timeout time.Duration) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", broker, err)
	}
	return &RealPublisher{client: client}, nil
}

// Publish sends payload at QoS 0, not retained.
func (p *RealPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// MQTTSink queues telemetry for a Publisher on a bounded channel. When the
// queue is full the message is dropped and counted; the tick never waits.
type MQTTSink struct {
	pub   Publisher
	topic string
	log   *logger.Logger

	queue   chan []byte
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewMQTTSink starts the publishing worker.
func NewMQTTSink(pub Publisher, topic string, queueSize int, log *logger.Logger) *MQTTSink {
	if log == nil {
		log = logger.Nop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &MQTTSink{
		pub:   pub,
		topic: topic,
		log:   log,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *MQTTSink) run() {
	defer close(s.done)
	for payload := range s.queue {
		if err := s.pub.Publish(s.topic, payload); err != nil {
			s.log.Warnw("relay publish failed", "topic", s.topic, "err", err)
		}
	}
}

func (s *MQTTSink) enqueue(payload []byte) {
	select {
	case s.queue <- payload:
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warnw("relay queue full, dropping messages", "capacity", cap(s.queue))
		}
	}
}

func (s *MQTTSink) Record(tick models.Tick) {
	payload, err := FormatTick(tick)
	if err != nil {
		s.log.Errorw("format tick", "err", err)
		return
	}
	s.enqueue(payload)
}

func (s *MQTTSink) Event(ev models.RoastEvent) {
	payload, err := FormatEvent(ev)
	if err != nil {
		s.log.Errorw("format event", "err", err)
		return
	}
	s.enqueue(payload)
}

// Dropped is the number of messages discarded because the queue was full.
func (s *MQTTSink) Dropped() int64 { return s.dropped.Load() }

// Close flushes the queue and disconnects the publisher. Record and Event
// must not be called afterwards.
func (s *MQTTSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.queue)
		<-s.done
		err = s.pub.Close()
	})
	return err
}
