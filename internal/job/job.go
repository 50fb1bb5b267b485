package job

import "strings"

// Status is the lifecycle state of one analysis job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// ParseStatus maps the service's status strings onto Status. Unknown values
// are treated as still processing.
func ParseStatus(value string) Status {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending", "queued":
		return StatusPending
	case "complete", "completed", "done":
		return StatusComplete
	case "failed", "error":
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// FriendlyName returns a display label for the status.
func (s Status) FriendlyName() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusComplete:
		return "Complete"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Job is one status snapshot of a tracked analysis. Snapshots are values; the
// poller produces a new one for every response it observes.
type Job struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	// Unreachable marks a failure caused by the service not answering at all.
	Unreachable bool `json:"unreachable,omitempty"`
	// Regressed is set when progress fell below the previous snapshot. The
	// value is passed through unmodified.
	Regressed bool `json:"regressed,omitempty"`
}

// New returns a pending job for a freshly issued identifier.
func New(id string) Job {
	return Job{ID: id, Status: StatusPending}
}

// Terminal reports whether the job reached complete or failed.
func (j Job) Terminal() bool {
	return j.Status.Terminal()
}

// ClampProgress bounds a raw progress value to 0..100.
func ClampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
