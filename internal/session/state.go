package session

import (
	"github.com/kingrea/cv-review/internal/batch"
	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/report"
)

// Phase is the session lifecycle position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Fallback messages shown when a failure carries no detail.
const (
	MsgUploadFailed   = "Upload failed."
	MsgURLFailed      = "Failed to fetch URL."
	MsgAnalysisFailed = "Analysis failed. Please try again."
	MsgNothingToFetch = "No completed analyses to download."
)

// BatchState is the presentation view of a batch.
type BatchState struct {
	Members []batch.Member `json:"members"`
	Jobs    []job.Job      `json:"jobs"`
	Status  job.Status     `json:"status"`
}

// SavedReport describes the last successful download.
type SavedReport struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	Bytes    int    `json:"bytes"`
}

// DownloadState tracks the single download slot.
type DownloadState struct {
	Active bool          `json:"active"`
	TaskID string        `json:"task_id,omitempty"`
	Format report.Format `json:"format,omitempty"`
	Error  string        `json:"error,omitempty"`
	Last   *SavedReport  `json:"last,omitempty"`
}

// State is everything the presentation layer reads. Only the Machine writes
// it.
type State struct {
	SessionID      string               `json:"session_id,omitempty"`
	Epoch          uint64               `json:"epoch"`
	Phase          Phase                `json:"phase"`
	Job            *job.Job             `json:"job,omitempty"`
	Batch          *BatchState          `json:"batch,omitempty"`
	Error          string               `json:"error,omitempty"`
	SourceLabel    string               `json:"source_label,omitempty"`
	CharsExtracted int                  `json:"chars_extracted,omitempty"`
	FileNames      []string             `json:"file_names,omitempty"`
	Progress       int                  `json:"progress"`
	Step           string               `json:"step,omitempty"`
	Results        []job.AnalysisResult `json:"results,omitempty"`
	Download       DownloadState        `json:"download"`
}

// clone returns a deep enough copy that readers cannot reach into the
// machine's state.
func (s State) clone() State {
	out := s
	if s.Job != nil {
		j := *s.Job
		out.Job = &j
	}
	if s.Batch != nil {
		b := BatchState{
			Members: append([]batch.Member(nil), s.Batch.Members...),
			Jobs:    append([]job.Job(nil), s.Batch.Jobs...),
			Status:  s.Batch.Status,
		}
		out.Batch = &b
	}
	out.FileNames = append([]string(nil), s.FileNames...)
	out.Results = append([]job.AnalysisResult(nil), s.Results...)
	if s.Download.Last != nil {
		last := *s.Download.Last
		out.Download.Last = &last
	}
	return out
}

// TimeSavedMinutes estimates the manual review time replaced by the
// completed analyses.
func (s State) TimeSavedMinutes() int {
	return len(s.Results) * job.HumanReviewMinutes
}
