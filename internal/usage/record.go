package usage

import "time"

// Record outcome values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record captures one routing attempt against a single source.
type Record struct {
	// Database ID (set after insert)
	ID int64

	// Request identification. Attempts of the same Route call share RequestID.
	RequestID string
	Attempt   int
	Source    string
	Model     string
	Archetype string

	// Outcome
	Status       string // "success", "failed"
	ErrorMessage string

	// Timing
	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64

	// Size metrics
	RequestBytes  int64
	ResponseBytes int64

	// Sync status
	Synced bool
}

// Request groups the attempts of one Route call.
type Request struct {
	ID       string
	Attempts []Record
}

// Outcome returns the winning source, or "" when every attempt failed.
func (r Request) Outcome() string {
	for _, a := range r.Attempts {
		if a.Status == StatusSuccess {
			return a.Source
		}
	}
	return ""
}
