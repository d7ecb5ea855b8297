package telemetry

// ringBuffer is a fixed-capacity FIFO that keeps the newest messages.
// Not safe for concurrent use; callers synchronize.
type ringBuffer struct {
	buf      []Message
	capacity int
	head     int // next write position
	count    int
	dropped  int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]Message, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg Message) {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		// overwrote the oldest
		r.dropped++
		return
	}
	r.count++
}

// drain removes and returns up to max of the oldest messages.
func (r *ringBuffer) drain(max int) []Message {
	if r.count == 0 || max <= 0 {
		return nil
	}
	n := r.count
	if n > max {
		n = max
	}
	start := (r.head - r.count + r.capacity) % r.capacity
	out := make([]Message, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%r.capacity]
	}
	r.count -= n
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
