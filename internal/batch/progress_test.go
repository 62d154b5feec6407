package batch

import (
	"sync"
	"testing"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

func TestTrackerStartsIdle(t *testing.T) {
	tracker := NewTracker()

	snap := tracker.Snapshot()
	if snap.Status != domain.ProgressIdle {
		t.Fatalf("expected idle status, got %s", snap.Status)
	}
	if snap.Message == "" {
		t.Fatalf("expected idle message")
	}
}

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()

	tracker.Start("starting")
	tracker.SetTotal(10, "10 rows")
	tracker.Advance(5, 4, 1, 50, "halfway")

	snap := tracker.Snapshot()
	if snap.Status != domain.ProgressProcessing {
		t.Fatalf("expected processing status, got %s", snap.Status)
	}
	if snap.CurrentRow != 5 || snap.TotalRows != 10 {
		t.Fatalf("unexpected counters %+v", snap)
	}
	if snap.ProgressPercent != 50 {
		t.Fatalf("expected 50 percent, got %.1f", snap.ProgressPercent)
	}

	tracker.Complete(8, 2, "done")
	snap = tracker.Snapshot()
	if snap.Status != domain.ProgressCompleted {
		t.Fatalf("expected completed status, got %s", snap.Status)
	}
	if snap.ProgressPercent != 100 {
		t.Fatalf("expected 100 percent on completion, got %.1f", snap.ProgressPercent)
	}

	tracker.Reset()
	if got := tracker.Snapshot().Status; got != domain.ProgressIdle {
		t.Fatalf("expected reset to idle, got %s", got)
	}
}

func TestTrackerFailIsTerminal(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("starting")
	tracker.Fail("boom")

	snap := tracker.Snapshot()
	if snap.Status != domain.ProgressFailed {
		t.Fatalf("expected failed status, got %s", snap.Status)
	}
	if snap.Message != "boom" {
		t.Fatalf("expected failure message, got %q", snap.Message)
	}
}

func TestTrackerConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("starting")
	tracker.SetTotal(100, "100 rows")

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for row := 1; row <= 100; row++ {
			tracker.Advance(row, row, 0, float64(row), "advancing")
		}
		close(done)
	}()

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				snap := tracker.Snapshot()
				if snap.CurrentRow != snap.ProcessedRows {
					t.Errorf("torn snapshot: current_row=%d processed=%d", snap.CurrentRow, snap.ProcessedRows)
					return
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
}
