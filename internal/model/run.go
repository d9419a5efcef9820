package model

import "time"

// RunStatus represents the current state of a comparison run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusSampling  RunStatus = "sampling"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one compare() invocation. Metric vectors are not persisted.
type Run struct {
	ID        string    `json:"id"`
	AreaIDs   [2]string `json:"area_ids"`
	Profile   Profile   `json:"profile"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the run can no longer change state.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunStatusComplete, RunStatusCancelled, RunStatusFailed:
		return true
	default:
		return false
	}
}
