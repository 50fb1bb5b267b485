package batch

import "github.com/kingrea/cv-review/internal/job"

const (
	// StepStarting is shown before any member has reported a step.
	StepStarting = "Starting…"

	// MsgBatchFailed is used when a member failed without a message.
	MsgBatchFailed = "One or more analyses failed."
)

// Summary is the aggregate view of a batch.
type Summary struct {
	Status   job.Status
	Progress int
	Step     string
	Error    string
	// Results is populated, in member order, only when Status is complete.
	Results []job.AnalysisResult
}

// Summarize folds member snapshots into one Summary. It is pure: the same
// input always yields the same output.
func Summarize(members []job.Job) Summary {
	summary := Summary{Status: job.StatusProcessing, Step: StepStarting}
	if len(members) == 0 {
		return summary
	}
	if step := members[0].CurrentStep; step != "" {
		summary.Step = step
	}
	summary.Progress = meanRoundHalfUp(members)

	for _, member := range members {
		if member.Status == job.StatusFailed {
			summary.Status = job.StatusFailed
			summary.Error = member.Error
			if summary.Error == "" {
				summary.Error = MsgBatchFailed
			}
			return summary
		}
	}
	for _, member := range members {
		if member.Status != job.StatusComplete || member.Result == nil {
			return summary
		}
	}
	summary.Status = job.StatusComplete
	summary.Results = make([]job.AnalysisResult, len(members))
	for i, member := range members {
		summary.Results[i] = *member.Result
	}
	return summary
}

func meanRoundHalfUp(members []job.Job) int {
	n := len(members)
	sum := 0
	for _, member := range members {
		sum += job.ClampProgress(member.Progress)
	}
	return (2*sum + n) / (2 * n)
}
