package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/models"
)

// TickWriter persists ticks.
type TickWriter interface {
	Append(ctx context.Context, tick models.Tick) error
}

// EventWriter persists roast events.
type EventWriter interface {
	Append(ctx context.Context, ev models.RoastEvent) error
}

const recordTimeout = 2 * time.Second

type record struct {
	tick  *models.Tick
	event *models.RoastEvent
}

// RecorderSink writes the telemetry transcript to storage from a
// background worker.
type RecorderSink struct {
	ticks  TickWriter
	events EventWriter
	log    *logger.Logger

	queue   chan record
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewRecorderSink starts the storage worker.
func NewRecorderSink(ticks TickWriter, events EventWriter, queueSize int, log *logger.Logger) *RecorderSink {
	if log == nil {
		log = logger.Nop()
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &RecorderSink{
		ticks:  ticks,
		events: events,
		log:    log,
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *RecorderSink) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		var err error
		switch {
		case rec.tick != nil:
			err = r.ticks.Append(ctx, *rec.tick)
		case rec.event != nil:
			err = r.events.Append(ctx, *rec.event)
		}
		cancel()
		if err != nil {
			r.log.Errorw("failed to record telemetry", "err", err)
		}
	}
}

func (r *RecorderSink) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warnw("recorder queue full, dropping telemetry", "capacity", cap(r.queue))
		}
	}
}

func (r *RecorderSink) Record(tick models.Tick) {
	if r.ticks != nil {
		r.enqueue(record{tick: &tick})
	}
}

func (r *RecorderSink) Event(ev models.RoastEvent) {
	if r.events != nil {
		r.enqueue(record{event: &ev})
	}
}

// Dropped is the number of records discarded because the queue was full.
func (r *RecorderSink) Dropped() int64 { return r.dropped.Load() }

// Close waits for queued records to be written.
func (r *RecorderSink) Close() error {
	r.once.Do(func() {
		close(r.queue)
		<-r.done
	})
	return nil
}
