// Package queue implements the gateway's bounded, arrival-ordered packet
// queues. The command queue and each MSC worker's inbound queue are all
// instances of the same Queue type: a circular buffer over message.Packet
// with oldest-first eviction on overflow, which is equivalent to a priority
// queue keyed by arrival timestamp when the sole writer (the reactor)
// enqueues strictly in arrival order.
package queue

import (
	"time"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/pkg/buffer"
)

const pollInterval = time.Millisecond

// Queue is a bounded FIFO of packets that evicts the oldest entry on
// overflow rather than rejecting new arrivals.
type Queue struct {
	buf buffer.Buffer[message.Packet]
}

// New creates a queue with the given capacity. onDrop, if non-nil, is
// called with each packet evicted due to overflow.
func New(capacity int, onDrop func(message.Packet)) (*Queue, error) {
	opts := []buffer.Option[message.Packet]{
		buffer.WithOverflowPolicy[message.Packet](buffer.DropOldest),
	}
	if onDrop != nil {
		opts = append(opts, buffer.WithDropCallback[message.Packet](onDrop))
	}
	buf, err := buffer.NewCircularBuffer(capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Queue{buf: buf}, nil
}

// Push enqueues a packet. It never blocks and never fails: under the
// DropOldest policy a full queue simply evicts its oldest entry.
func (q *Queue) Push(pkt message.Packet) {
	_ = q.buf.Write(pkt)
}

// Pop removes and returns the oldest packet, or false if the queue is
// currently empty.
func (q *Queue) Pop() (message.Packet, bool) {
	return q.buf.Read()
}

// PopWait blocks, polling at a fine grain, until a packet is available or
// timeout elapses. It exists for components (and tests) that want a
// blocking-pop interface rather than the tick-driven non-blocking Pop used
// by the gateway's actor loops.
func (q *Queue) PopWait(timeout time.Duration) (message.Packet, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if pkt, ok := q.buf.Read(); ok {
			return pkt, true
		}
		if time.Now().After(deadline) {
			return message.Packet{}, false
		}
		time.Sleep(pollInterval)
	}
}

// Len returns the number of packets currently queued.
func (q *Queue) Len() int {
	return q.buf.Size()
}
