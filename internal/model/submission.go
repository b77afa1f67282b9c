package model

import "time"

// State is the lifecycle state of a Submission
type State string

const (
	StatePending   State = "pending"
	StatePolling   State = "polling"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are allowed
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

// Submission is one request to verify a piece of text
type Submission struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	InputText   string    `json:"input_text"`
	SubmittedAt time.Time `json:"submitted_at"`
	State       State     `json:"state"`
	TaskID      string    `json:"task_id,omitempty"` // Backend task identifier from the start call
	Attempts    int       `json:"attempts"`
}

// Outcome is what a resolved handle delivers to its caller
type Outcome struct {
	SubmissionID string        `json:"submission_id"`
	InputText    string        `json:"input_text"`
	Verdict      Verdict       `json:"verdict"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	Cached       bool          `json:"cached"`
	Educational  string        `json:"educational,omitempty"` // Optional LLM note, never affects the verdict
}
