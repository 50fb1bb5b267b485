// Package session owns the state of one evaluation session and is the only
// code allowed to change it.
//
// The Machine is driven like a bubbletea model: actions and Update return
// tea.Cmds that perform I/O elsewhere and report back with messages. Every
// message is tagged with the epoch that produced it; Reset and each new
// submission bump the epoch so anything still in flight from an abandoned
// attempt is dropped before it can touch state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/batch"
	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/poller"
	"github.com/kingrea/cv-review/internal/report"
	"github.com/kingrea/cv-review/internal/submission"
)

// Gateway submits input for analysis.
type Gateway interface {
	Submit(ctx context.Context, in submission.Input) (submission.Submission, error)
}

// Reports fetches report artifacts.
type Reports interface {
	Fetch(ctx context.Context, req report.Request) (report.Artifact, error)
}

type submittedMsg struct {
	epoch  uint64
	url    bool
	result submission.Submission
	err    error
}

type downloadedMsg struct {
	taskID string
	saved  SavedReport
	err    error
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTrackerOptions is applied to every job tracker the machine creates.
func WithTrackerOptions(opts ...poller.Option) Option {
	return func(m *Machine) {
		m.trackerOpts = append(m.trackerOpts, opts...)
	}
}

// WithDownloadDir saves fetched reports into dir. Without it artifacts are
// fetched but not written.
func WithDownloadDir(dir string) Option {
	return func(m *Machine) {
		m.downloadDir = dir
	}
}

// WithContext sets the parent context of every submission.
func WithContext(ctx context.Context) Option {
	return func(m *Machine) {
		if ctx != nil {
			m.parent = ctx
		}
	}
}

// Machine is the single writer of State. It must be driven from one
// goroutine.
type Machine struct {
	gateway     Gateway
	fetcher     poller.Fetcher
	reports     Reports
	logger      *slog.Logger
	trackerOpts []poller.Option
	downloadDir string

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	tracker    *poller.Tracker
	aggregator *batch.Aggregator
	state      State
}

// New builds an idle machine.
func New(gateway Gateway, fetcher poller.Fetcher, reports Reports, opts ...Option) *Machine {
	m := &Machine{
		gateway: gateway,
		fetcher: fetcher,
		reports: reports,
		logger:  slog.Default(),
		parent:  context.Background(),
		state:   State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(m.parent)
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state.clone()
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.state.Phase
}

// CanSubmit reports whether a new submission would be accepted.
func (m *Machine) CanSubmit() bool {
	return m.state.Phase == PhaseIdle || m.state.Phase == PhaseError
}

// CanDownload reports whether a download request would be accepted.
func (m *Machine) CanDownload() bool {
	return m.state.Phase == PhaseComplete && !m.state.Download.Active && len(job.DownloadableIDs(m.state.Results)) > 0
}

// SubmitFiles submits local files. It is a no-op unless CanSubmit.
func (m *Machine) SubmitFiles(paths []string) tea.Cmd {
	if !m.CanSubmit() {
		return nil
	}
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	m.begin(names)
	return m.submit(submission.Files(paths...), false)
}

// SubmitURL submits a public profile URL. It is a no-op unless CanSubmit.
func (m *Machine) SubmitURL(raw string) tea.Cmd {
	if !m.CanSubmit() {
		return nil
	}
	m.begin(nil)
	return m.submit(submission.URL(raw), true)
}

func (m *Machine) begin(names []string) {
	m.abandon()
	m.state = State{
		SessionID: uuid.NewString(),
		Epoch:     m.state.Epoch + 1,
		Phase:     m.state.Phase,
		FileNames: names,
		Step:      batch.StepStarting,
		Download:  m.carryDownload(),
	}
	m.transition(PhaseSubmitting)
}

func (m *Machine) submit(in submission.Input, isURL bool) tea.Cmd {
	ctx, gateway, epoch := m.ctx, m.gateway, m.state.Epoch
	return func() tea.Msg {
		result, err := gateway.Submit(ctx, in)
		return submittedMsg{epoch: epoch, url: isURL, result: result, err: err}
	}
}

// Reset abandons the current attempt and returns to idle. Outstanding
// queries are cancelled and their results will be dropped.
func (m *Machine) Reset() {
	m.abandon()
	m.state = State{
		Epoch:    m.state.Epoch + 1,
		Phase:    m.state.Phase,
		Download: m.carryDownload(),
	}
	m.transition(PhaseIdle)
}

// abandon stops every tracker and cancels the submission context.
func (m *Machine) abandon() {
	if m.tracker != nil {
		m.tracker.Stop()
		m.tracker = nil
	}
	if m.aggregator != nil {
		m.aggregator.Stop()
		m.aggregator = nil
	}
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(m.parent)
}

// carryDownload keeps an in-flight download across sessions; it resolves
// on its own and only ever touches the download slot.
func (m *Machine) carryDownload() DownloadState {
	if !m.state.Download.Active {
		return DownloadState{}
	}
	return DownloadState{Active: true, TaskID: m.state.Download.TaskID, Format: m.state.Download.Format}
}

// Update applies one message. Messages from another epoch are dropped.
func (m *Machine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case submittedMsg:
		if msg.epoch != m.state.Epoch || m.state.Phase != PhaseSubmitting {
			return nil
		}
		return m.handleSubmitted(msg)
	case poller.DueMsg:
		if msg.Epoch != m.state.Epoch {
			return nil
		}
		return m.handlePoll(msg)
	case poller.ResultMsg:
		if msg.Epoch != m.state.Epoch {
			return nil
		}
		return m.handlePoll(msg)
	case downloadedMsg:
		return m.handleDownloaded(msg)
	}
	return nil
}

func (m *Machine) handleSubmitted(msg submittedMsg) tea.Cmd {
	if msg.err != nil {
		fallback := MsgUploadFailed
		if msg.url {
			fallback = MsgURLFailed
		}
		m.state.Error = api.Describe(msg.err, fallback)
		m.logger.Warn("session.submit_failed", "epoch", m.state.Epoch, "kind", api.Classify(msg.err).String(), "error", msg.err)
		m.transition(PhaseError)
		return nil
	}

	sub := msg.result
	m.state.FileNames = sub.Names
	m.state.SourceLabel = sub.SourceLabel
	m.state.CharsExtracted = sub.CharsExtracted
	trackerOpts := append([]poller.Option{poller.WithLogger(m.logger)}, m.trackerOpts...)

	if len(sub.IDs) == 1 {
		m.tracker = poller.New(m.ctx, m.fetcher, m.state.Epoch, 0, sub.IDs[0], trackerOpts...)
		snapshot := m.tracker.Snapshot()
		m.state.Job = &snapshot
		m.transition(PhaseProcessing)
		return m.tracker.Start()
	}

	agg, err := batch.New(m.ctx, m.fetcher, m.state.Epoch, sub.IDs, sub.Names,
		batch.WithLogger(m.logger), batch.WithTrackerOptions(trackerOpts...))
	if err != nil {
		m.state.Error = api.Describe(err, MsgUploadFailed)
		m.logger.Error("session.batch_rejected", "error", err)
		m.transition(PhaseError)
		return nil
	}
	m.aggregator = agg
	m.syncBatch()
	m.transition(PhaseProcessing)
	return agg.Start()
}

func (m *Machine) handlePoll(msg tea.Msg) tea.Cmd {
	if m.state.Phase != PhaseProcessing {
		return nil
	}
	if m.tracker != nil {
		cmd, changed := m.tracker.Update(msg)
		if changed {
			m.syncJob()
		}
		return cmd
	}
	if m.aggregator != nil {
		cmd, changed := m.aggregator.Update(msg)
		if changed {
			m.syncBatch()
		}
		return cmd
	}
	return nil
}

func (m *Machine) syncJob() {
	snapshot := m.tracker.Snapshot()
	m.state.Job = &snapshot
	m.state.Progress = snapshot.Progress
	if snapshot.CurrentStep != "" {
		m.state.Step = snapshot.CurrentStep
	}
	switch snapshot.Status {
	case job.StatusComplete:
		m.state.Results = []job.AnalysisResult{*snapshot.Result}
		m.tracker = nil
		m.transition(PhaseComplete)
	case job.StatusFailed:
		m.state.Error = snapshot.Error
		if m.state.Error == "" {
			m.state.Error = MsgAnalysisFailed
		}
		m.tracker = nil
		m.transition(PhaseError)
	}
}

func (m *Machine) syncBatch() {
	summary := m.aggregator.Summary()
	m.state.Batch = &BatchState{
		Members: m.aggregator.Members(),
		Jobs:    m.aggregator.Snapshots(),
		Status:  summary.Status,
	}
	m.state.Progress = summary.Progress
	m.state.Step = summary.Step
	switch summary.Status {
	case job.StatusComplete:
		m.state.Results = summary.Results
		m.aggregator = nil
		m.transition(PhaseComplete)
	case job.StatusFailed:
		m.state.Error = summary.Error
		m.aggregator = nil
		m.transition(PhaseError)
	}
}

// Download fetches a report for scope, or for every downloadable result when
// scope is empty. It returns nil while another download is in flight.
func (m *Machine) Download(format report.Format, scope []string) tea.Cmd {
	return m.DownloadFiltered(format, scope, report.Filter{})
}

// DownloadFiltered is Download with multi-report filters. Reports are only
// fetched for a completed session.
func (m *Machine) DownloadFiltered(format report.Format, scope []string, filter report.Filter) tea.Cmd {
	if m.state.Phase != PhaseComplete || m.state.Download.Active {
		return nil
	}
	ids := append([]string(nil), scope...)
	if len(ids) == 0 {
		ids = job.DownloadableIDs(m.state.Results)
	}
	if len(ids) == 0 && filter.IsZero() {
		m.state.Download.Error = MsgNothingToFetch
		return nil
	}
	taskID := uuid.NewString()
	m.state.Download = DownloadState{Active: true, TaskID: taskID, Format: format}
	m.logger.Info("session.download", "task", taskID, "format", string(format), "ids", len(ids))

	ctx, reports, dir := m.parent, m.reports, m.downloadDir
	req := report.Request{Format: format, IDs: ids, Filter: filter}
	return func() tea.Msg {
		art, err := reports.Fetch(ctx, req)
		if err != nil {
			return downloadedMsg{taskID: taskID, err: err}
		}
		saved := SavedReport{Filename: art.Filename, Bytes: len(art.Body)}
		if dir != "" {
			path, err := report.Save(dir, art)
			if err != nil {
				return downloadedMsg{taskID: taskID, err: err}
			}
			saved.Path = path
		}
		return downloadedMsg{taskID: taskID, saved: saved}
	}
}

func (m *Machine) handleDownloaded(msg downloadedMsg) tea.Cmd {
	if !m.state.Download.Active || msg.taskID != m.state.Download.TaskID {
		return nil
	}
	format := m.state.Download.Format
	m.state.Download = DownloadState{Format: format}
	if msg.err != nil {
		var derr *report.DownloadError
		if errors.As(msg.err, &derr) {
			m.state.Download.Error = derr.Detail
		} else {
			m.state.Download.Error = api.Describe(msg.err, report.MsgDownloadFailed)
		}
		m.logger.Warn("session.download_failed", "task", msg.taskID, "error", msg.err)
		return nil
	}
	saved := msg.saved
	m.state.Download.Last = &saved
	m.logger.Info("session.downloaded", "task", msg.taskID, "file", saved.Filename, "path", saved.Path)
	return nil
}

func (m *Machine) transition(to Phase) {
	from := m.state.Phase
	m.state.Phase = to
	m.logger.Info("session.transition", "from", string(from), "to", string(to), "epoch", m.state.Epoch, "session", m.state.SessionID)
}
