// Package report downloads candidate reports for completed analyses and
// writes them to disk.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kingrea/cv-review/internal/api"
)

// MsgDownloadFailed is used when nothing more specific is known.
const MsgDownloadFailed = "Download failed."

// Format is the artifact type the service renders.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" or "pdf" in any case.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("report: unknown format %q (want xlsx or pdf)", value)
}

// Filter narrows a multi-candidate report.
type Filter struct {
	Area     string
	DateFrom string
	DateTo   string
}

// IsZero reports whether no filter is set.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Area) == "" && strings.TrimSpace(f.DateFrom) == "" && strings.TrimSpace(f.DateTo) == ""
}

// Request selects what to download.
type Request struct {
	Format Format
	IDs    []string
	Filter Filter
}

// single reports whether the single-candidate endpoint serves the request.
func (r Request) single() bool {
	return len(r.IDs) == 1 && r.Filter.IsZero()
}

// Artifact is a downloaded report.
type Artifact struct {
	Filename    string
	ContentType string
	Format      Format
	Body        []byte
}

// DownloadError is the only error Fetch returns. Detail is ready for display.
type DownloadError struct {
	Detail string
	Cause  error
}

func (e *DownloadError) Error() string { return e.Detail }

func (e *DownloadError) Unwrap() error { return e.Cause }

// Client is the part of the API client the fetcher needs.
type Client interface {
	CandidateReport(ctx context.Context, analysisID, format string) (api.Download, error)
	CandidatesReport(ctx context.Context, q api.ReportQuery) (api.Download, error)
}

// Fetcher downloads reports.
type Fetcher struct {
	client Client
	logger *slog.Logger
}

// NewFetcher wraps client. A nil logger means slog.Default().
func NewFetcher(client Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads one report. Exactly one id without filters uses the
// single-candidate endpoint; everything else the multi-candidate one.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Artifact, error) {
	if req.Format == "" {
		req.Format = FormatXLSX
	}
	var (
		dl  api.Download
		err error
	)
	single := req.single()
	if single {
		dl, err = f.client.CandidateReport(ctx, req.IDs[0], string(req.Format))
	} else {
		dl, err = f.client.CandidatesReport(ctx, api.ReportQuery{
			Format:   string(req.Format),
			IDs:      req.IDs,
			Area:     req.Filter.Area,
			DateFrom: req.Filter.DateFrom,
			DateTo:   req.Filter.DateTo,
		})
	}
	if err != nil {
		derr := downloadError(err)
		f.logger.Warn("report.failed", "format", string(req.Format), "ids", len(req.IDs), "error", err)
		return Artifact{}, derr
	}
	art := Artifact{
		Filename:    Filename(dl.ContentDisposition, req.Format, !single),
		ContentType: dl.ContentType,
		Format:      req.Format,
		Body:        dl.Body,
	}
	f.logger.Info("report.downloaded", "file", art.Filename, "bytes", len(art.Body))
	return art, nil
}

func downloadError(err error) *DownloadError {
	var se *api.StatusError
	if errors.As(err, &se) {
		detail := se.Detail
		if detail == "" {
			detail = se.Body
		}
		if detail == "" {
			detail = MsgDownloadFailed
		}
		return &DownloadError{Detail: detail, Cause: err}
	}
	return &DownloadError{Detail: api.Describe(err, MsgDownloadFailed), Cause: err}
}

var filenamePattern = regexp.MustCompile(`filename="?([^";]+)"?`)

// Filename derives the suggested filename from a Content-Disposition header,
// falling back to candidate-report.<ext> or candidate-reports.<ext>.
func Filename(disposition string, format Format, multi bool) string {
	if match := filenamePattern.FindStringSubmatch(disposition); match != nil {
		if name := strings.TrimSpace(match[1]); name != "" {
			return name
		}
	}
	ext := string(FormatPDF)
	if format == FormatXLSX {
		ext = string(FormatXLSX)
	}
	if multi {
		return "candidate-reports." + ext
	}
	return "candidate-report." + ext
}
