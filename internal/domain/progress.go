package domain

type ProgressStatus string

const (
	ProgressIdle       ProgressStatus = "idle"
	ProgressProcessing ProgressStatus = "processing"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// ProgressSnapshot is the observer-facing view of the in-flight pass. One
// writer (the active pass) mutates it through the tracker; any number of
// readers poll it.
type ProgressSnapshot struct {
	Status          ProgressStatus `json:"status"`
	Message         string         `json:"message"`
	CurrentRow      int            `json:"current_row"`
	TotalRows       int            `json:"total_rows"`
	ProcessedRows   int            `json:"processed_rows"`
	ErrorRows       int            `json:"error_rows"`
	ProgressPercent float64        `json:"progress_percent"`
}

// IdleProgress is the snapshot returned before any pass has ever run and
// after each reset.
func IdleProgress() ProgressSnapshot {
	return ProgressSnapshot{
		Status:  ProgressIdle,
		Message: "Ready for processing",
	}
}
