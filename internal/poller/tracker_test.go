package poller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/logging"
)

type scriptedFetcher struct {
	responses []scripted
	calls     int
}

type scripted struct {
	status api.JobStatus
	err    error
}

func (f *scriptedFetcher) JobStatus(_ context.Context, jobID string) (api.JobStatus, error) {
	if f.calls >= len(f.responses) {
		return api.JobStatus{}, errors.New("script exhausted")
	}
	next := f.responses[f.calls]
	f.calls++
	next.status.JobID = jobID
	return next.status, next.err
}

func processing(progress float64, step string) scripted {
	return scripted{status: api.JobStatus{Status: "processing", Progress: progress, CurrentStep: step}}
}

func newTestTracker(f Fetcher, opts ...Option) *Tracker {
	opts = append([]Option{WithTicker(ImmediateTicker), WithLogger(logging.Discard())}, opts...)
	return New(context.Background(), f, 1, 0, "job-1", opts...)
}

// step executes cmd and feeds its message back into the tracker.
func step(t *testing.T, tr *Tracker, cmd tea.Cmd) (tea.Cmd, bool) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	return tr.Update(cmd())
}

func TestStartWaitsOneInterval(t *testing.T) {
	var delays []time.Duration
	ticker := func(d time.Duration, msg tea.Msg) tea.Cmd {
		delays = append(delays, d)
		return ImmediateTicker(d, msg)
	}
	f := &scriptedFetcher{responses: []scripted{processing(10, "Parsing")}}
	tr := newTestTracker(f, WithTicker(ticker), WithInterval(3*time.Second))
	cmd := tr.Start()
	if f.calls != 0 {
		t.Fatalf("first query must not be immediate")
	}
	if len(delays) != 1 || delays[0] != 3*time.Second {
		t.Fatalf("delays = %v", delays)
	}
	msg := cmd()
	if _, ok := msg.(DueMsg); !ok {
		t.Fatalf("expected DueMsg, got %T", msg)
	}
	if tr.Start() != nil {
		t.Fatalf("second Start should be a no-op")
	}
}

func TestTrackerFollowsJobToCompletion(t *testing.T) {
	result := &job.AnalysisResult{RecommendedRole: "SRE", AnalysisID: "a-1"}
	f := &scriptedFetcher{responses: []scripted{
		processing(20, "Extracting"),
		processing(60, "Scoring"),
		{status: api.JobStatus{Status: "complete", Progress: 100, CurrentStep: "Done", Result: result}},
	}}
	tr := newTestTracker(f)
	cmd := tr.Start()
	var progress []int
	for i := 0; i < 3; i++ {
		fetch, _ := step(t, tr, cmd)
		var changed bool
		cmd, changed = step(t, tr, fetch)
		if !changed {
			t.Fatalf("result %d did not change the snapshot", i)
		}
		progress = append(progress, tr.Snapshot().Progress)
	}
	if cmd != nil {
		t.Fatalf("terminal snapshot must not schedule another query")
	}
	if !tr.Done() || tr.Snapshot().Status != job.StatusComplete || tr.Snapshot().Result != result {
		t.Fatalf("unexpected final snapshot %+v", tr.Snapshot())
	}
	if progress[0] != 20 || progress[1] != 60 || progress[2] != 100 {
		t.Fatalf("progress = %v", progress)
	}
	if f.calls != 3 {
		t.Fatalf("queries = %d", f.calls)
	}
}

func TestAtMostOneQueryInFlight(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{processing(5, "x")}}
	tr := newTestTracker(f)
	due := tr.Start()()
	if cmd, _ := tr.Update(due); cmd == nil {
		t.Fatalf("expected fetch command")
	}
	if cmd, _ := tr.Update(due); cmd != nil {
		t.Fatalf("due while in flight must be ignored")
	}
	if tr.Queries() != 1 || !tr.InFlight() {
		t.Fatalf("queries=%d inFlight=%v", tr.Queries(), tr.InFlight())
	}
}

func TestTransportFailureEndsTrackerAsUnreachable(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{{err: &api.TransportError{Op: "job-status", BaseURL: "http://localhost:8000", Err: errors.New("refused")}}}}
	tr := newTestTracker(f)
	fetch, _ := step(t, tr, tr.Start())
	cmd, changed := step(t, tr, fetch)
	if cmd != nil || !changed {
		t.Fatalf("failure should end tracking: cmd=%v changed=%v", cmd != nil, changed)
	}
	snap := tr.Snapshot()
	if snap.Status != job.StatusFailed || !snap.Unreachable {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !strings.HasPrefix(snap.Error, "Cannot reach the API.") {
		t.Fatalf("error = %q", snap.Error)
	}
}

func TestNotFoundUsesLiteralMessage(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{{err: &api.StatusError{Op: "job-status", Code: 404, Detail: "Job not found"}}}}
	tr := newTestTracker(f)
	fetch, _ := step(t, tr, tr.Start())
	step(t, tr, fetch)
	if got := tr.Snapshot(); got.Error != api.MsgJobNotFound || got.Unreachable {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestStopIgnoresLateMessages(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{processing(50, "x")}}
	tr := newTestTracker(f)
	due := tr.Start()()
	fetch, _ := tr.Update(due)
	late := fetch()
	tr.Stop()
	if cmd, changed := tr.Update(late); cmd != nil || changed {
		t.Fatalf("result after stop must be a no-op")
	}
	if cmd, _ := tr.Update(due); cmd != nil {
		t.Fatalf("due after stop must be a no-op")
	}
	if tr.Snapshot().Progress != 0 {
		t.Fatalf("snapshot changed after stop: %+v", tr.Snapshot())
	}
}

func TestMessagesFromOtherEpochAreIgnored(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{processing(50, "x")}}
	tr := newTestTracker(f)
	tr.Start()
	if cmd, _ := tr.Update(DueMsg{Epoch: 2, Slot: 0, JobID: "job-1"}); cmd != nil {
		t.Fatalf("foreign epoch should be ignored")
	}
	if cmd, _ := tr.Update(DueMsg{Epoch: 1, Slot: 3, JobID: "job-1"}); cmd != nil {
		t.Fatalf("foreign slot should be ignored")
	}
	if f.calls != 0 || tr.Queries() != 0 {
		t.Fatalf("no query expected")
	}
}

func TestCompleteWithoutResultKeepsPolling(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{
		{status: api.JobStatus{Status: "complete", Progress: 100, CurrentStep: "Saving"}},
	}}
	tr := newTestTracker(f)
	fetch, _ := step(t, tr, tr.Start())
	cmd, _ := step(t, tr, fetch)
	if cmd == nil || tr.Done() {
		t.Fatalf("complete without result must keep polling")
	}
	if tr.Snapshot().Status != job.StatusProcessing {
		t.Fatalf("status = %s", tr.Snapshot().Status)
	}
}

func TestProgressRegressionIsFlaggedAndPassedThrough(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{processing(70, "a"), processing(40, "b")}}
	tr := newTestTracker(f)
	cmd := tr.Start()
	for i := 0; i < 2; i++ {
		fetch, _ := step(t, tr, cmd)
		cmd, _ = step(t, tr, fetch)
	}
	snap := tr.Snapshot()
	if snap.Progress != 40 || !snap.Regressed {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestServerReportedFailureIsTerminal(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{{status: api.JobStatus{Status: "failed", Progress: 30, Error: "Could not parse CV"}}}}
	tr := newTestTracker(f)
	fetch, _ := step(t, tr, tr.Start())
	cmd, _ := step(t, tr, fetch)
	if cmd != nil || !tr.Done() {
		t.Fatalf("failed status is terminal")
	}
	if tr.Snapshot().Error != "Could not parse CV" || tr.Snapshot().Unreachable {
		t.Fatalf("unexpected snapshot %+v", tr.Snapshot())
	}
}

func TestOutOfRangeProgressIsClamped(t *testing.T) {
	f := &scriptedFetcher{responses: []scripted{processing(140, "a"), processing(-5, "b")}}
	tr := newTestTracker(f)
	fetch, _ := step(t, tr, tr.Start())
	cmd, _ := step(t, tr, fetch)
	if snap := tr.Snapshot(); snap.Progress != 100 || snap.Status != job.StatusProcessing || tr.Done() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	fetch, _ = step(t, tr, cmd)
	step(t, tr, fetch)
	if snap := tr.Snapshot(); snap.Progress != 0 || snap.Error != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
