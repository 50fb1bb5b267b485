// Package batch tracks several analysis jobs submitted together and reduces
// them to a single status.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/poller"
)

// Member pairs a job identifier with its display name.
type Member struct {
	JobID string
	Name  string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTrackerOptions is passed to every member tracker.
func WithTrackerOptions(opts ...poller.Option) Option {
	return func(a *Aggregator) {
		a.trackerOpts = append(a.trackerOpts, opts...)
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Aggregator owns one tracker per member. The member list is fixed at
// construction. Like the trackers, it is driven from a single goroutine.
type Aggregator struct {
	epoch       uint64
	members     []Member
	trackers    []*poller.Tracker
	summary     Summary
	stopped     bool
	trackerOpts []poller.Option
	logger      *slog.Logger
}

// New creates an aggregator for ids paired positionally with names.
func New(ctx context.Context, fetcher poller.Fetcher, epoch uint64, ids, names []string, opts ...Option) (*Aggregator, error) {
	if len(ids) != len(names) {
		return nil, fmt.Errorf("batch: %d job ids for %d names", len(ids), len(names))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("batch: no members")
	}
	a := &Aggregator{epoch: epoch, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	trackerOpts := append([]poller.Option{poller.WithLogger(a.logger)}, a.trackerOpts...)
	a.members = make([]Member, len(ids))
	a.trackers = make([]*poller.Tracker, len(ids))
	for i, id := range ids {
		a.members[i] = Member{JobID: id, Name: names[i]}
		a.trackers[i] = poller.New(ctx, fetcher, epoch, i, id, trackerOpts...)
	}
	a.summary = Summarize(a.Snapshots())
	return a, nil
}

// Start starts every member tracker.
func (a *Aggregator) Start() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.trackers))
	for _, tracker := range a.trackers {
		cmds = append(cmds, tracker.Start())
	}
	return tea.Batch(cmds...)
}

// Update routes a poller message to the member it belongs to. changed is true
// when the summary was recomputed.
func (a *Aggregator) Update(msg tea.Msg) (tea.Cmd, bool) {
	if a.stopped {
		return nil, false
	}
	slot, ok := a.slotFor(msg)
	if !ok {
		return nil, false
	}
	cmd, changed := a.trackers[slot].Update(msg)
	if !changed {
		return cmd, false
	}
	a.summary = Summarize(a.Snapshots())
	if a.summary.Status == job.StatusFailed {
		failed := a.members[slot]
		a.logger.Warn("batch.failed", "job_id", failed.JobID, "name", failed.Name, "error", a.summary.Error)
		a.Stop()
		return nil, true
	}
	if a.summary.Status == job.StatusComplete {
		a.logger.Info("batch.complete", "members", len(a.members))
	}
	return cmd, true
}

func (a *Aggregator) slotFor(msg tea.Msg) (int, bool) {
	var epoch uint64
	var slot int
	switch msg := msg.(type) {
	case poller.DueMsg:
		epoch, slot = msg.Epoch, msg.Slot
	case poller.ResultMsg:
		epoch, slot = msg.Epoch, msg.Slot
	default:
		return 0, false
	}
	if epoch != a.epoch || slot < 0 || slot >= len(a.trackers) {
		return 0, false
	}
	return slot, true
}

// Stop stops every tracker. Outstanding queries are cancelled and their
// results never observed.
func (a *Aggregator) Stop() {
	a.stopped = true
	for _, tracker := range a.trackers {
		tracker.Stop()
	}
}

// Done reports whether the batch reached a terminal summary or was stopped.
func (a *Aggregator) Done() bool {
	return a.stopped || a.summary.Status.Terminal()
}

// Members returns the member list in submission order.
func (a *Aggregator) Members() []Member {
	return append([]Member(nil), a.members...)
}

// Snapshots returns the latest snapshot of every member in order.
func (a *Aggregator) Snapshots() []job.Job {
	out := make([]job.Job, len(a.trackers))
	for i, tracker := range a.trackers {
		out[i] = tracker.Snapshot()
	}
	return out
}

// Summary returns the latest aggregate.
func (a *Aggregator) Summary() Summary {
	return a.summary
}
