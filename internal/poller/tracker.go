// Package poller follows one analysis job until it reaches a terminal status.
//
// A Tracker never blocks and never touches shared state from a goroutine: it
// hands out tea.Cmds that produce DueMsg (timer fired) and ResultMsg (query
// answered), and the owner routes those back through Update on its single
// writer goroutine. Each tracker is tagged with the session epoch that
// created it so messages from an abandoned session are ignored.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/job"
)

const (
	// DefaultInterval is the pause between a response and the next query.
	DefaultInterval = 2 * time.Second

	// MsgAnalysisFailed is used when a job fails without saying why.
	MsgAnalysisFailed = "Analysis failed. Please try again."
)

// Fetcher queries the status of one job.
type Fetcher interface {
	JobStatus(ctx context.Context, jobID string) (api.JobStatus, error)
}

// DueMsg fires when a tracker's timer elapses.
type DueMsg struct {
	Epoch uint64
	Slot  int
	JobID string
}

// ResultMsg carries the answer to one status query.
type ResultMsg struct {
	Epoch  uint64
	Slot   int
	JobID  string
	Status api.JobStatus
	Err    error
}

// Ticker turns a delay and a message into a command delivering msg later.
type Ticker func(d time.Duration, msg tea.Msg) tea.Cmd

// TeaTicker schedules with tea.Tick.
func TeaTicker(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return msg
	})
}

// ImmediateTicker delivers msg without waiting. Used by tests.
func ImmediateTicker(_ time.Duration, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return msg
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithTicker replaces the timer source.
func WithTicker(ticker Ticker) Option {
	return func(t *Tracker) {
		if ticker != nil {
			t.ticker = ticker
		}
	}
}

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker polls one job. It is owned by a single goroutine.
type Tracker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	fetcher  Fetcher
	epoch    uint64
	slot     int
	jobID    string
	interval time.Duration
	ticker   Ticker
	logger   *slog.Logger

	started  bool
	inFlight bool
	stopped  bool
	queries  int
	snapshot job.Job
}

// New creates a tracker for jobID. Nothing happens until Start.
func New(ctx context.Context, fetcher Fetcher, epoch uint64, slot int, jobID string, opts ...Option) *Tracker {
	child, cancel := context.WithCancel(ctx)
	t := &Tracker{
		ctx:      child,
		cancel:   cancel,
		fetcher:  fetcher,
		epoch:    epoch,
		slot:     slot,
		jobID:    jobID,
		interval: DefaultInterval,
		ticker:   TeaTicker,
		logger:   slog.Default(),
		snapshot: job.New(jobID),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start schedules the first query one interval from now.
func (t *Tracker) Start() tea.Cmd {
	if t.started || t.stopped {
		return nil
	}
	t.started = true
	return t.schedule()
}

// Stop cancels any in-flight query; later messages are ignored.
func (t *Tracker) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.inFlight = false
	t.cancel()
}

// Done reports whether the tracker will produce no further snapshots.
func (t *Tracker) Done() bool {
	return t.stopped || t.snapshot.Terminal()
}

// InFlight reports whether a query is outstanding.
func (t *Tracker) InFlight() bool { return t.inFlight }

// Queries returns the number of status queries issued so far.
func (t *Tracker) Queries() int { return t.queries }

// Snapshot returns the latest observed job state.
func (t *Tracker) Snapshot() job.Job { return t.snapshot }

// JobID returns the tracked identifier.
func (t *Tracker) JobID() string { return t.jobID }

// Update consumes a DueMsg or ResultMsg addressed to this tracker. changed is
// true when the snapshot was replaced.
func (t *Tracker) Update(msg tea.Msg) (cmd tea.Cmd, changed bool) {
	switch msg := msg.(type) {
	case DueMsg:
		if !t.owns(msg.Epoch, msg.Slot, msg.JobID) {
			return nil, false
		}
		return t.handleDue(), false
	case ResultMsg:
		if !t.owns(msg.Epoch, msg.Slot, msg.JobID) {
			return nil, false
		}
		return t.handleResult(msg)
	}
	return nil, false
}

func (t *Tracker) owns(epoch uint64, slot int, jobID string) bool {
	return epoch == t.epoch && slot == t.slot && jobID == t.jobID
}

func (t *Tracker) handleDue() tea.Cmd {
	if t.inFlight || t.Done() {
		return nil
	}
	t.inFlight = true
	t.queries++
	ctx, fetcher := t.ctx, t.fetcher
	epoch, slot, jobID := t.epoch, t.slot, t.jobID
	return func() tea.Msg {
		status, err := fetcher.JobStatus(ctx, jobID)
		return ResultMsg{Epoch: epoch, Slot: slot, JobID: jobID, Status: status, Err: err}
	}
}

func (t *Tracker) handleResult(msg ResultMsg) (tea.Cmd, bool) {
	if t.stopped || !t.inFlight {
		return nil, false
	}
	t.inFlight = false
	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) && t.ctx.Err() != nil {
			t.Stop()
			return nil, false
		}
		t.snapshot = t.failure(msg.Err)
		t.logger.Warn("poller.failed", "job_id", t.jobID, "kind", api.Classify(msg.Err).String(), "error", msg.Err)
		return nil, true
	}

	next := t.fromStatus(msg.Status)
	t.snapshot = next
	if next.Terminal() {
		t.logger.Info("poller.terminal", "job_id", t.jobID, "status", string(next.Status), "queries", t.queries)
		return nil, true
	}
	return t.schedule(), true
}

func (t *Tracker) schedule() tea.Cmd {
	return t.ticker(t.interval, DueMsg{Epoch: t.epoch, Slot: t.slot, JobID: t.jobID})
}

func (t *Tracker) failure(err error) job.Job {
	failed := t.snapshot
	failed.Status = job.StatusFailed
	failed.Error = api.Describe(err, MsgAnalysisFailed)
	failed.Unreachable = api.Classify(err) == api.KindUnreachable
	failed.Regressed = false
	return failed
}

func (t *Tracker) fromStatus(status api.JobStatus) job.Job {
	prev := t.snapshot
	next := job.Job{
		ID:          t.jobID,
		Status:      job.ParseStatus(status.Status),
		Progress:    job.ClampProgress(int(math.Round(status.Progress))),
		CurrentStep: status.CurrentStep,
		Result:      status.Result,
		Error:       status.Error,
	}
	// The result is attached after the status flips, so keep polling.
	if next.Status == job.StatusComplete && next.Result == nil {
		next.Status = job.StatusProcessing
	}
	if next.Progress < prev.Progress {
		next.Regressed = true
		t.logger.Warn("poller.regression", "job_id", t.jobID, "from", prev.Progress, "to", next.Progress)
	}
	return next
}
