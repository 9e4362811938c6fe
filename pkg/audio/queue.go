package audio

import (
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the frame queue capacity used when none is
// configured: 32 frames ≈ 2 s of audio at 16 kHz with 4096-sample chunks.
const DefaultQueueCapacity = 32

// FrameQueue is a bounded queue decoupling the latency-critical capture
// callback from the analysis goroutine. It favours freshness over
// completeness: when the queue is full, [FrameQueue.Push] evicts the oldest
// frame instead of blocking, so a congested consumer always sees a sliding
// window of the most recent audio.
//
// Safe for concurrent use by one producer and one consumer (the supported
// pipeline topology); Push itself is safe from any goroutine.
type FrameQueue struct {
	ch chan Frame

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewFrameQueue creates a queue holding at most capacity frames.
// A capacity ≤ 0 falls back to [DefaultQueueCapacity].
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{ch: make(chan Frame, capacity)}
}

// Push enqueues f. It never blocks and never fails: if the queue is at
// capacity the oldest frame is discarded and the drop counter incremented.
// Designed to be called from the platform audio callback, which must return
// before the next hardware buffer arrives.
func (q *FrameQueue) Push(f Frame) {
	q.pushed.Add(1)
	for {
		select {
		case q.ch <- f:
			return
		default:
		}
		// Full: evict the oldest entry and retry. The consumer may race us
		// for it, in which case the retry succeeds without a drop.
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Pop dequeues the oldest frame, blocking up to timeout. The second return
// value is false when the timeout expired with no frame available, letting
// the consumer loop check its stop signal at a bounded interval.
func (q *FrameQueue) Pop(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-q.ch:
		return f, true
	case <-t.C:
		return Frame{}, false
	}
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *FrameQueue) Cap() int { return cap(q.ch) }

// Stats returns the total number of frames pushed and the number discarded
// due to overflow since the queue was created. Both counters are monotonic.
func (q *FrameQueue) Stats() (pushed, dropped uint64) {
	return q.pushed.Load(), q.dropped.Load()
}
