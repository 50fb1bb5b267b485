// internal/tui/app.go
//
// This is the interactive front end of cvreview. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: App, which wraps the session machine
// 2. Update: keys become machine actions, everything else goes to the machine
// 3. View: renders the machine's State
//
// The session machine is the only thing that changes session state; App just
// forwards messages to it and renders what comes back.

package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/logbook"
	"github.com/kingrea/cv-review/internal/report"
	"github.com/kingrea/cv-review/internal/session"
	"github.com/kingrea/cv-review/internal/statusbridge"
)

// inputMode selects what the input panel submits.
type inputMode int

const (
	modeFiles inputMode = iota
	modeURL
)

func (m inputMode) String() string {
	if m == modeURL {
		return "URL"
	}
	return "Files"
}

const (
	filesPlaceholder = "path/to/cv.pdf, other.docx …"
	urlPlaceholder   = "https://www.linkedin.com/in/…"
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBoard publishes every state change to board.
func WithBoard(board *statusbridge.Board) AppOption {
	return func(a *App) {
		a.board = board
	}
}

// WithLogbook records session milestones to the journal.
func WithLogbook(book *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = book
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAPIBase shows the service address in the header.
func WithAPIBase(base string) AppOption {
	return func(a *App) {
		a.apiBase = base
	}
}

// App is the main application model.
type App struct {
	machine *session.Machine
	board   *statusbridge.Board
	logbook *logbook.Logbook
	logger  *slog.Logger
	apiBase string

	// UI components
	input    textinput.Model
	mode     inputMode
	spinner  spinner.Model
	progress progress.Model

	width  int
	height int

	lastPhase    session.Phase
	lastDownload string
}

// NewApp creates a new App around machine.
func NewApp(machine *session.Machine, opts ...AppOption) *App {
	input := textinput.New()
	input.Placeholder = filesPlaceholder
	input.Prompt = "› "
	input.CharLimit = 2048
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = runningStyle

	app := &App{
		machine:  machine,
		logger:   slog.Default(),
		input:    input,
		spinner:  spin,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.lastPhase = machine.Phase()
	app.publish()
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.spinner.Tick)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, msg.Width-12)
		a.progress.Width = max(20, min(60, msg.Width-20))
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	cmd := a.machine.Update(msg)
	a.afterMachine()
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc":
		a.machine.Reset()
		a.afterMachine()
		return a.input.Focus()
	}

	switch a.machine.Phase() {
	case session.PhaseIdle, session.PhaseError:
		return a.handleInputKey(msg)
	case session.PhaseComplete:
		return a.handleCompleteKey(msg)
	}
	return nil
}

func (a *App) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		a.toggleMode()
		return nil
	case "enter":
		return a.submit()
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return cmd
}

func (a *App) handleCompleteKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "x":
		return a.download(report.FormatXLSX)
	case "p":
		return a.download(report.FormatPDF)
	case "n":
		a.machine.Reset()
		a.afterMachine()
		a.input.SetValue("")
		return a.input.Focus()
	case "q":
		return tea.Quit
	}
	return nil
}

func (a *App) toggleMode() {
	if a.mode == modeFiles {
		a.mode = modeURL
		a.input.Placeholder = urlPlaceholder
	} else {
		a.mode = modeFiles
		a.input.Placeholder = filesPlaceholder
	}
	a.input.SetValue("")
}

func (a *App) submit() tea.Cmd {
	value := strings.TrimSpace(a.input.Value())
	var cmd tea.Cmd
	if a.mode == modeURL {
		cmd = a.machine.SubmitURL(value)
	} else {
		cmd = a.machine.SubmitFiles(splitPaths(value))
	}
	if cmd == nil {
		return nil
	}
	a.input.Blur()
	a.afterMachine()
	return tea.Batch(cmd, a.spinner.Tick)
}

func (a *App) download(format report.Format) tea.Cmd {
	if !a.machine.CanDownload() {
		return nil
	}
	cmd := a.machine.Download(format, nil)
	a.afterMachine()
	return cmd
}

// afterMachine records milestones and publishes the new state.
func (a *App) afterMachine() {
	st := a.machine.State()
	if st.Phase != a.lastPhase {
		a.recordTransition(st)
		a.lastPhase = st.Phase
	}
	if last := st.Download.Last; last != nil && last.Filename+last.Path != a.lastDownload {
		a.lastDownload = last.Filename + last.Path
		a.logbook.Info("Saved report %s", describeSaved(*last))
	} else if st.Download.Error != "" && st.Download.Error != a.lastDownload {
		a.lastDownload = st.Download.Error
		a.logbook.Warn("Download failed: %s", st.Download.Error)
	}
	a.publish()
}

func (a *App) recordTransition(st session.State) {
	switch st.Phase {
	case session.PhaseSubmitting:
		a.logbook.Info("Submitting %s", describeInput(st))
	case session.PhaseProcessing:
		a.logbook.Info("Tracking %d job(s)", max(1, len(st.FileNames)))
	case session.PhaseComplete:
		a.logbook.Info("Complete · %d result(s) · ~%d min of review saved", len(st.Results), st.TimeSavedMinutes())
	case session.PhaseError:
		a.logbook.Error("%s", st.Error)
	case session.PhaseIdle:
		a.logbook.Info("Session reset")
	}
}

func (a *App) publish() {
	if a.board != nil {
		a.board.Publish(a.machine.State())
	}
}

func describeInput(st session.State) string {
	if len(st.FileNames) == 0 {
		return "URL"
	}
	if len(st.FileNames) == 1 {
		return st.FileNames[0]
	}
	return fmt.Sprintf("%d files", len(st.FileNames))
}

func describeSaved(saved session.SavedReport) string {
	if saved.Path != "" {
		return saved.Path
	}
	return saved.Filename
}

// splitPaths accepts comma separated paths, or whitespace separated ones when
// no comma is present.
func splitPaths(value string) []string {
	var parts []string
	if strings.Contains(value, ",") {
		parts = strings.Split(value, ",")
	} else {
		parts = strings.Fields(value)
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
