package tui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/report"
	"github.com/kingrea/cv-review/internal/session"
	"github.com/kingrea/cv-review/internal/statusbridge"
)

// HeadlessOptions describe one non-interactive run.
type HeadlessOptions struct {
	Files []string
	URL   string
	// Download, when set, fetches a report of every result once the session
	// completes.
	Download report.Format
	Board    *statusbridge.Board
}

// Headless drives the session machine without a renderer. It prints one line
// per visible change and quits once the session (and optional download)
// resolves.
type Headless struct {
	machine *session.Machine
	out     io.Writer
	opts    HeadlessOptions

	lastLine   string
	downloaded bool
	failed     bool
}

// NewHeadless builds the model. Run it with tea.WithoutRenderer.
func NewHeadless(machine *session.Machine, out io.Writer, opts HeadlessOptions) *Headless {
	return &Headless{machine: machine, out: out, opts: opts}
}

// Failed reports whether the run ended in an error.
func (h *Headless) Failed() bool { return h.failed }

// Init submits the input.
func (h *Headless) Init() tea.Cmd {
	var cmd tea.Cmd
	if h.opts.URL != "" {
		cmd = h.machine.SubmitURL(h.opts.URL)
	} else {
		cmd = h.machine.SubmitFiles(h.opts.Files)
	}
	h.report()
	return cmd
}

// Update forwards every message to the machine.
func (h *Headless) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		h.machine.Reset()
		h.failed = true
		return h, tea.Quit
	}
	cmd := h.machine.Update(msg)
	return h, tea.Batch(cmd, h.report())
}

// View renders nothing; output goes straight to out.
func (h *Headless) View() string { return "" }

func (h *Headless) report() tea.Cmd {
	st := h.machine.State()
	if h.opts.Board != nil {
		h.opts.Board.Publish(st)
	}
	switch st.Phase {
	case session.PhaseError:
		h.failed = true
		h.println("error: " + st.Error)
		return tea.Quit
	case session.PhaseComplete:
		return h.finish(st)
	case session.PhaseSubmitting:
		h.println("submitting " + describeInput(st))
	case session.PhaseProcessing:
		h.println(fmt.Sprintf("[%3d%%] %s", st.Progress, st.Step))
	}
	return nil
}

func (h *Headless) finish(st session.State) tea.Cmd {
	if h.lastLine != "complete" {
		h.println("complete")
		for i, result := range st.Results {
			fmt.Fprintln(h.out, strings.Join(plainResult(resultName(st, i, result), result), "\n"))
		}
		fmt.Fprintf(h.out, "~%d min of manual review saved\n", st.TimeSavedMinutes())
	}
	if h.opts.Download == "" {
		return tea.Quit
	}
	if !h.downloaded {
		h.downloaded = true
		if cmd := h.machine.Download(h.opts.Download, nil); cmd != nil {
			fmt.Fprintf(h.out, "downloading %s report\n", h.opts.Download)
			return cmd
		}
		st = h.machine.State()
	}
	if st.Download.Active {
		return nil
	}
	if st.Download.Error != "" {
		h.failed = true
		fmt.Fprintf(h.out, "download failed: %s\n", st.Download.Error)
	} else if st.Download.Last != nil {
		fmt.Fprintf(h.out, "saved %s\n", describeSaved(*st.Download.Last))
	}
	return tea.Quit
}

// println suppresses consecutive duplicate lines.
func (h *Headless) println(line string) {
	if line == h.lastLine {
		return
	}
	h.lastLine = line
	fmt.Fprintln(h.out, line)
}

func plainResult(name string, result job.AnalysisResult) []string {
	lines := []string{name}
	lines = append(lines, "  most fitted: "+string(result.MostFittedArea))
	if result.RecommendedRole != "" {
		lines = append(lines, "  recommended role: "+result.RecommendedRole)
	}
	scores := make([]string, 0, len(job.Areas))
	for _, area := range job.Areas {
		scores = append(scores, fmt.Sprintf("%s=%.1f", area, result.Score(area)))
	}
	return append(lines, "  "+strings.Join(scores, " "))
}
