package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/job"
	"github.com/kingrea/cv-review/internal/report"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

func field(label string, value any) {
	fmt.Printf("%s %v\n", labelStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
}

func runDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	project := projectFlag(fs)
	format := fs.String("format", string(report.FormatXLSX), "report format (xlsx or pdf)")
	ids := fs.String("ids", "", "comma separated analysis ids")
	area := fs.String("area", "", "only candidates in this area")
	from := fs.String("from", "", "only analyses on or after this date (YYYY-MM-DD)")
	to := fs.String("to", "", "only analyses on or before this date (YYYY-MM-DD)")
	out := fs.String("out", "", "directory to write into (defaults to the reports dir)")
	_ = fs.Parse(args)

	parsed, err := report.ParseFormat(*format)
	if err != nil {
		return err
	}
	req := report.Request{
		Format: parsed,
		IDs:    splitList(*ids),
		Filter: report.Filter{Area: *area, DateFrom: *from, DateTo: *to},
	}
	if len(req.IDs) == 0 && req.Filter.IsZero() {
		return fmt.Errorf("download: pass --ids or at least one filter")
	}

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	art, err := report.NewFetcher(e.client, e.log.Logger).Fetch(ctx, req)
	if err != nil {
		return err
	}
	dir := *out
	if dir == "" {
		dir = e.cfg.ReportsDir()
	}
	path, err := report.Save(dir, art)
	if err != nil {
		return err
	}
	e.logbook.Info("Saved report %s", path)
	fmt.Println(okStyle.Render("saved ") + path)

	contents, err := report.Inspect(art)
	if err != nil {
		e.log.Warn("report.inspect_failed", "path", path, "error", err)
		return nil
	}
	switch contents.Format {
	case report.FormatPDF:
		field("pages", contents.Pages)
	default:
		for _, sheet := range contents.Sheets {
			field("sheet", fmt.Sprintf("%s (%d rows)", sheet.Name, sheet.Rows))
		}
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	project := projectFlag(fs)
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "records to skip")
	_ = fs.Parse(args)

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	page, err := e.client.ListAnalyses(ctx, *limit, *offset)
	if err != nil {
		return errors.New(api.Describe(err, "Could not load history."))
	}
	fmt.Println(headingStyle.Render(fmt.Sprintf("Analyses %d-%d of %d", min(*offset+1, page.Total), *offset+len(page.Items), page.Total)))
	for _, rec := range page.Items {
		fmt.Printf("%-36s  %-19s  %-14s  %5.1f  %s\n",
			rec.ID, shortTime(rec.Timestamp), rec.MostFittedArea, rec.AreaScores[rec.MostFittedArea], rec.Filename)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("show: expected one analysis id")
	}

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.client.GetAnalysis(ctx, fs.Arg(0))
	if err != nil {
		return errors.New(api.Describe(err, "Could not load analysis."))
	}
	fmt.Println(headingStyle.Render(rec.Filename))
	field("id", rec.ID)
	field("analysed", shortTime(rec.Timestamp))
	field("model", rec.ModelUsed)
	field("time", fmt.Sprintf("%.1fs, %d calls, %d tokens", rec.AnalysisTimeSeconds, rec.APICalls, rec.TotalTokens))
	field("best area", rec.MostFittedArea)
	for _, area := range job.Areas {
		if score, ok := rec.AreaScores[area]; ok {
			field("  "+string(area), fmt.Sprintf("%.1f", score))
		}
	}
	if rec.Result != nil && rec.Result.RecommendedRole != "" {
		field("role", rec.Result.RecommendedRole)
	}
	if rec.CandidateSummary != "" {
		fmt.Println()
		fmt.Println(rec.CandidateSummary)
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("delete: expected one analysis id")
	}

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.client.DeleteAnalysis(ctx, fs.Arg(0)); err != nil {
		return errors.New(api.Describe(err, "Could not delete analysis."))
	}
	e.logbook.Info("Deleted analysis %s", fs.Arg(0))
	fmt.Println(okStyle.Render("deleted ") + fs.Arg(0))
	return nil
}

func runMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := e.client.Metrics(ctx)
	if err != nil {
		return errors.New(api.Describe(err, "Could not load metrics."))
	}
	fmt.Println(headingStyle.Render("Usage"))
	field("analyses", m.TotalAnalyses)
	field("api calls", m.TotalAPICalls)
	field("tokens", m.TotalTokens)
	field("avg time", fmt.Sprintf("%.1fs (min %.1fs, max %.1fs)", m.AvgAnalysisTimeSeconds, m.MinAnalysisTimeSeconds, m.MaxAnalysisTimeSeconds))
	field("time saved", fmt.Sprintf("%.0f min total, %.0f min per CV", m.TotalHumanTimeSavedMinutes, m.AvgHumanTimeSavedMinutes))
	if len(m.AnalysesByArea) > 0 {
		fmt.Println(headingStyle.Render("By area"))
		for _, area := range job.Areas {
			if n := m.AnalysesByArea[area]; n > 0 {
				field(string(area), n)
			}
		}
	}
	if len(m.AnalysesByModel) > 0 {
		fmt.Println(headingStyle.Render("By model"))
		models := make([]string, 0, len(m.AnalysesByModel))
		for name := range m.AnalysesByModel {
			models = append(models, name)
		}
		sort.Strings(models)
		for _, name := range models {
			field(name, m.AnalysesByModel[name])
		}
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	best, err := e.client.BestCandidates(ctx)
	if err != nil {
		return errors.New(api.Describe(err, "Could not load best candidates."))
	}
	for _, area := range job.Areas {
		cand := best.BestByArea[area]
		if cand == nil {
			field(string(area), "none yet")
			continue
		}
		field(string(area), fmt.Sprintf("%.1f  %s (%s)", cand.ScoreInArea, cand.Filename, cand.ID))
	}
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	status, err := e.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s unreachable: %s\n", e.client.BaseURL(), api.Describe(err, "Service unavailable."))
		return errRunFailed{}
	}
	fmt.Printf("%s %s\n", e.client.BaseURL(), okStyle.Render(status))
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// shortTime trims an ISO timestamp to seconds for table output.
func shortTime(ts string) string {
	ts = strings.Replace(ts, "T", " ", 1)
	if len(ts) > 19 {
		return ts[:19]
	}
	return ts
}
