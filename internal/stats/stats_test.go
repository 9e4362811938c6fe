package stats

import (
	"sync"
	"testing"
	"time"
)

func TestSnapshot_Empty(t *testing.T) {
	t.Parallel()

	ps := New(10)
	s := ps.Snapshot()

	if s.Recognition.P50 != 0 || s.Recognition.P95 != 0 {
		t.Errorf("empty percentiles = %+v, want zeros", s.Recognition)
	}
	if s.FramesProcessed != 0 || s.Transcripts != 0 {
		t.Errorf("empty counters = %+v, want zeros", s)
	}
}

func TestPercentiles_NearestRank(t *testing.T) {
	t.Parallel()

	ps := New(100)
	for i := 1; i <= 100; i++ {
		ps.RecordRecognition(time.Duration(i) * time.Millisecond)
	}

	s := ps.Snapshot()
	if s.Recognition.P50 != 50*time.Millisecond {
		t.Errorf("P50 = %v, want 50ms", s.Recognition.P50)
	}
	if s.Recognition.P95 != 95*time.Millisecond {
		t.Errorf("P95 = %v, want 95ms", s.Recognition.P95)
	}
}

func TestLatencyBuffer_WindowEviction(t *testing.T) {
	t.Parallel()

	ps := New(4)
	// Fill past the window; only the newest 4 samples (97..100ms) remain.
	for i := 1; i <= 100; i++ {
		ps.RecordTick(time.Duration(i) * time.Millisecond)
	}

	s := ps.Snapshot()
	if s.Tick.P50 < 97*time.Millisecond {
		t.Errorf("P50 = %v, want ≥ 97ms after eviction", s.Tick.P50)
	}
}

func TestPeakVolumeHighWater(t *testing.T) {
	t.Parallel()

	ps := New(10)
	ps.ObserveVolume(0.4)
	ps.ObserveVolume(0.9)
	ps.ObserveVolume(0.2)

	if got := ps.Snapshot().PeakVolume; got != 0.9 {
		t.Errorf("PeakVolume = %v, want 0.9", got)
	}
}

func TestCounters_Concurrent(t *testing.T) {
	t.Parallel()

	ps := New(10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ps.IncrFramesProcessed()
				ps.IncrTranscripts()
			}
		}()
	}
	wg.Wait()

	s := ps.Snapshot()
	if s.FramesProcessed != 800 {
		t.Errorf("FramesProcessed = %d, want 800", s.FramesProcessed)
	}
	if s.Transcripts != 800 {
		t.Errorf("Transcripts = %d, want 800", s.Transcripts)
	}
}
