package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/kingrea/cv-review/internal/job"
)

// JobStatus is the raw status payload for one job.
type JobStatus struct {
	JobID       string              `json:"job_id"`
	Status      string              `json:"status"`
	Progress    float64             `json:"progress"`
	CurrentStep string              `json:"current_step"`
	Result      *job.AnalysisResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// JobStatus fetches the current status of a job. The payload is validated
// against the job status schema before it is decoded.
func (c *Client) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	const op = "job-status"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, nil, "")
	if err != nil {
		return JobStatus{}, err
	}
	if err := validateJobStatus(resp.body); err != nil {
		return JobStatus{}, &PayloadError{Op: op, Err: err}
	}
	var status JobStatus
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return JobStatus{}, &PayloadError{Op: op, Err: err}
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	return status, nil
}
