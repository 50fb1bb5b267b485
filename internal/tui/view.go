package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/session"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	headStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	st := a.machine.State()

	var body string
	switch st.Phase {
	case session.PhaseIdle, session.PhaseError:
		body = a.renderInput(st)
	case session.PhaseSubmitting, session.PhaseProcessing:
		body = a.renderProgress(st)
	case session.PhaseComplete:
		body = a.renderResults(st)
	}

	header := titleStyle.Render("⬡ CV REVIEW")
	if a.apiBase != "" {
		header += dimStyle.Render("  " + a.apiBase)
	}
	parts := []string{header, "", boxStyle.Width(max(40, width-4)).Render(body)}
	if journal := a.renderJournal(); journal != "" {
		parts = append(parts, journal)
	}
	parts = append(parts, dimStyle.Render(a.footer(st)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a *App) renderInput(st session.State) string {
	lines := []string{
		headStyle.Render(fmt.Sprintf("New analysis · %s", a.mode)),
		a.input.View(),
	}
	if st.Phase == session.PhaseError && st.Error != "" {
		lines = append(lines, "", errorStyle.Render("✗ "+st.Error))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderProgress(st session.State) string {
	label := "Uploading…"
	if st.Phase == session.PhaseProcessing {
		label = st.Step
	}
	lines := []string{
		fmt.Sprintf("%s %s", a.spinner.View(), runningStyle.Render(label)),
		a.progress.ViewAs(float64(st.Progress) / 100),
	}
	if st.SourceLabel != "" {
		source := st.SourceLabel
		if st.CharsExtracted > 0 {
			source = fmt.Sprintf("%s (%d chars)", source, st.CharsExtracted)
		}
		lines = append(lines, detailStyle.Render("Source: "+source))
	}
	if st.Batch != nil {
		lines = append(lines, "")
		for i, member := range st.Batch.Members {
			var snap job.Job
			if i < len(st.Batch.Jobs) {
				snap = st.Batch.Jobs[i]
			}
			lines = append(lines, fmt.Sprintf("  %s %-28s %3d%%  %s",
				statusStyle(snap.Status).Render(statusGlyph(snap.Status)),
				truncate(member.Name, 28), snap.Progress, detailStyle.Render(snap.CurrentStep)))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderResults(st session.State) string {
	lines := []string{
		readyStyle.Render(fmt.Sprintf("✓ %d analysis complete · ~%d min of manual review saved", len(st.Results), st.TimeSavedMinutes())),
	}
	if len(st.Results) > 1 {
		lines[0] = readyStyle.Render(fmt.Sprintf("✓ %d analyses complete · ~%d min of manual review saved", len(st.Results), st.TimeSavedMinutes()))
	}
	for i, result := range st.Results {
		lines = append(lines, "")
		lines = append(lines, renderResult(resultName(st, i, result), result)...)
	}
	lines = append(lines, "")
	switch {
	case st.Download.Active:
		lines = append(lines, pendingStyle.Render(fmt.Sprintf("%s Downloading %s report…", a.spinner.View(), strings.ToUpper(string(st.Download.Format)))))
	case st.Download.Error != "":
		lines = append(lines, errorStyle.Render("✗ "+st.Download.Error))
	case st.Download.Last != nil:
		lines = append(lines, readyStyle.Render("Saved "+describeSaved(*st.Download.Last)))
	}
	return strings.Join(lines, "\n")
}

func renderResult(name string, result job.AnalysisResult) []string {
	lines := []string{headStyle.Render(name)}
	fit := string(result.MostFittedArea)
	if fit == "" {
		fit = "n/a"
	}
	lines = append(lines, fmt.Sprintf("  Most fitted: %s", readyStyle.Render(fit)))
	if result.RecommendedRole != "" {
		lines = append(lines, fmt.Sprintf("  Recommended role: %s", result.RecommendedRole))
	}
	scores := make([]string, 0, len(job.Areas))
	for _, area := range job.Areas {
		scores = append(scores, fmt.Sprintf("%s %.1f", area, result.Score(area)))
	}
	lines = append(lines, detailStyle.Render("  "+strings.Join(scores, " · ")))
	if result.CandidateSummary != "" {
		lines = append(lines, detailStyle.Render("  "+truncate(result.CandidateSummary, 160)))
	}
	return lines
}

func resultName(st session.State, i int, result job.AnalysisResult) string {
	if i < len(st.FileNames) && st.FileNames[i] != "" {
		return st.FileNames[i]
	}
	if result.Filename != "" {
		return filepath.Base(result.Filename)
	}
	return fmt.Sprintf("Candidate %d", i+1)
}

func (a *App) renderJournal() string {
	lines, total := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	head := headStyle.Render(fmt.Sprintf("JOURNAL · %d entries", total))
	return boxStyle.Render(head + "\n" + dimStyle.Render(strings.Join(lines, "\n")))
}

func (a *App) footer(st session.State) string {
	switch st.Phase {
	case session.PhaseIdle, session.PhaseError:
		return "enter submit · tab files/url · esc reset · ctrl+c quit"
	case session.PhaseComplete:
		if a.machine.CanDownload() {
			return "x xlsx · p pdf · n new analysis · esc reset · q quit"
		}
		return "n new analysis · esc reset · q quit"
	}
	return "esc cancel · ctrl+c quit"
}

func statusStyle(status job.Status) lipgloss.Style {
	switch status {
	case job.StatusComplete:
		return readyStyle
	case job.StatusFailed:
		return errorStyle
	case job.StatusProcessing:
		return runningStyle
	default:
		return pendingStyle
	}
}

func statusGlyph(status job.Status) string {
	switch status {
	case job.StatusComplete:
		return "✓"
	case job.StatusFailed:
		return "✗"
	case job.StatusProcessing:
		return "●"
	default:
		return "○"
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
