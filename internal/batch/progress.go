package batch

import (
	"sync"

	"github.com/mvidal/flight-emissions-back/internal/domain"
)

// Tracker holds the process-wide progress snapshot for the current pass.
// One writer (the active pass) mutates it through the explicit methods below;
// any number of observers read it via Snapshot.
type Tracker struct {
	mu   sync.RWMutex
	snap domain.ProgressSnapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: domain.IdleProgress()}
}

// Snapshot returns a copy of the current state. Safe to call at any time,
// including before any pass has run.
func (t *Tracker) Snapshot() domain.ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Reset returns the tracker to idle defaults at the start of a pass.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = domain.IdleProgress()
}

// Start marks the beginning of one file's processing.
func (t *Tracker) Start(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = domain.ProgressSnapshot{
		Status:  domain.ProgressProcessing,
		Message: message,
	}
}

// SetTotal seeds the row count once the pre-pass has counted the file.
func (t *Tracker) SetTotal(totalRows int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = domain.ProgressProcessing
	t.snap.TotalRows = totalRows
	t.snap.Message = message
}

// Advance publishes the per-row counters at the update cadence.
func (t *Tracker) Advance(currentRow, processedRows, errorRows int, percent float64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = domain.ProgressProcessing
	t.snap.CurrentRow = currentRow
	t.snap.ProcessedRows = processedRows
	t.snap.ErrorRows = errorRows
	t.snap.ProgressPercent = percent
	t.snap.Message = message
}

// Complete marks the pass terminal with final counts and 100 percent.
func (t *Tracker) Complete(processedRows, errorRows int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = domain.ProgressCompleted
	t.snap.ProcessedRows = processedRows
	t.snap.ErrorRows = errorRows
	t.snap.ProgressPercent = 100
	t.snap.Message = message
}

// Fail marks the pass terminal after a whole-file error. The snapshot must
// never be left stuck in processing.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = domain.ProgressFailed
	t.snap.Message = message
}
