package audio

import (
	"sync"
	"testing"
	"time"
)

func frame(ts time.Duration) Frame {
	return Frame{Samples: []float32{0}, SampleRate: 16000, Channels: 1, Timestamp: ts}
}

func TestFrameQueue_DefaultCapacity(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(0)
	if q.Cap() != DefaultQueueCapacity {
		t.Errorf("Cap() = %d, want %d", q.Cap(), DefaultQueueCapacity)
	}
}

func TestFrameQueue_PushPop(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(4)
	q.Push(frame(1 * time.Millisecond))
	q.Push(frame(2 * time.Millisecond))

	f, ok := q.Pop(10 * time.Millisecond)
	if !ok {
		t.Fatal("Pop returned ok=false with frames buffered")
	}
	if f.Timestamp != 1*time.Millisecond {
		t.Errorf("Pop returned timestamp %v, want 1ms (FIFO order)", f.Timestamp)
	}
}

func TestFrameQueue_PopTimeout(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(4)

	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Error("Pop returned ok=true on an empty queue")
	}
	if elapsed < 20*time.Millisecond {
		t.Errorf("Pop returned after %v, want ≥ 20ms", elapsed)
	}
}

func TestFrameQueue_DropOldestOnOverflow(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(3)
	for i := 1; i <= 5; i++ {
		q.Push(frame(time.Duration(i) * time.Millisecond))
	}

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (capacity)", q.Len())
	}

	pushed, dropped := q.Stats()
	if pushed != 5 {
		t.Errorf("pushed = %d, want 5", pushed)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}

	// Survivors are the most recent three, in order.
	want := []time.Duration{3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond}
	for _, w := range want {
		f, ok := q.Pop(10 * time.Millisecond)
		if !ok {
			t.Fatal("Pop returned ok=false")
		}
		if f.Timestamp != w {
			t.Errorf("Pop timestamp = %v, want %v", f.Timestamp, w)
		}
	}
}

func TestFrameQueue_PushNeverBlocksUnderSustainedOverflow(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10_000; i++ {
			q.Push(frame(time.Duration(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Push blocked under sustained overflow")
	}

	if q.Len() > q.Cap() {
		t.Errorf("Len() = %d exceeds Cap() = %d", q.Len(), q.Cap())
	}
	_, dropped := q.Stats()
	if dropped == 0 {
		t.Error("dropped = 0, want > 0 under sustained overflow")
	}
}

func TestFrameQueue_ConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			q.Push(frame(time.Duration(i)))
		}
	}()

	consumed := 0
	for {
		_, ok := q.Pop(50 * time.Millisecond)
		if !ok {
			break
		}
		consumed++
		if q.Len() > q.Cap() {
			t.Fatalf("Len() = %d exceeds Cap() = %d", q.Len(), q.Cap())
		}
	}
	wg.Wait()

	pushed, dropped := q.Stats()
	if uint64(consumed)+dropped != pushed {
		t.Errorf("consumed (%d) + dropped (%d) != pushed (%d)", consumed, dropped, pushed)
	}
}
