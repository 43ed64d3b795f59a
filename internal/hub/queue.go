package hub

import "sync"

// outbox is a per-connection FIFO of encoded frames. It never drops:
// when the ring fills it doubles, so a slow reader only costs memory
// until the write deadline kills its socket.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   [][]byte
	head   int
	count  int
	closed bool

	enqueued int64
	peak     int
	grows    int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	o := &outbox{ring: make([][]byte, capacity)}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// push appends a frame. Returns false once the outbox is closed.
func (o *outbox) push(frame []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if o.count == len(o.ring) {
		o.grow()
	}

	o.ring[(o.head+o.count)%len(o.ring)] = frame
	o.count++
	o.enqueued++
	if o.count > o.peak {
		o.peak = o.count
	}

	o.cond.Signal()
	return true
}

// pop blocks until a frame is available. After close it drains what is
// left, then returns false.
func (o *outbox) pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.count == 0 && !o.closed {
		o.cond.Wait()
	}
	if o.count == 0 {
		return nil, false
	}

	frame := o.ring[o.head]
	o.ring[o.head] = nil
	o.head = (o.head + 1) % len(o.ring)
	o.count--
	return frame, true
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Broadcast()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

type outboxStats struct {
	Pending  int
	Capacity int
	Enqueued int64
	Peak     int
	Grows    int
}

func (o *outbox) stats() outboxStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return outboxStats{
		Pending:  o.count,
		Capacity: len(o.ring),
		Enqueued: o.enqueued,
		Peak:     o.peak,
		Grows:    o.grows,
	}
}

// grow doubles the ring and unwraps it. Must be called with lock held.
func (o *outbox) grow() {
	next := make([][]byte, len(o.ring)*2)
	n := copy(next, o.ring[o.head:])
	copy(next[n:], o.ring[:o.head])
	o.ring = next
	o.head = 0
	o.grows++
}
