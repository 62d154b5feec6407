package domain

// BatchDestination names the terminal directory a processed file routes to.
type BatchDestination string

const (
	DestinationProcessed BatchDestination = "processed"
	DestinationErrors    BatchDestination = "errors"
)

// RowOutcome records the result of exactly one input row. Outcomes are
// created once, in file order, and never mutated afterwards.
type RowOutcome struct {
	Row           int        `json:"row"`
	Success       bool       `json:"success"`
	Departure     string     `json:"departure,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	CalculationID int64       `json:"calculation_id,omitempty"`
	ParamsApplied *TripParams `json:"batch_params_applied,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// BatchResult aggregates one file's processing and is written as the sidecar
// artifact next to the routed file.
type BatchResult struct {
	OriginalFilename string           `json:"original_filename"`
	ProcessedRows    int              `json:"processed_rows"`
	ErrorRows        int              `json:"error_rows"`
	TotalRows        int              `json:"total_rows"`
	SuccessRate      float64          `json:"success_rate"`
	Outcomes         []RowOutcome     `json:"results"`
	ParamsUsed       TripParams       `json:"batch_params_used"`
	Destination      BatchDestination `json:"destination"`
}
