// Package submission turns user input (local files or a URL) into analysis
// job identifiers. Input is validated locally before any request is made.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/config"
	"github.com/kingrea/cv-review/internal/document"
)

// Service is the part of the API client the gateway needs.
type Service interface {
	SubmitFile(ctx context.Context, upload api.Upload) (string, error)
	SubmitBatch(ctx context.Context, uploads []api.Upload) ([]string, error)
	SubmitURL(ctx context.Context, target string) (api.URLSubmission, error)
}

// Input is either a set of local files or a single URL.
type Input struct {
	paths []string
	url   string
	isURL bool
}

// Files builds a file-set input.
func Files(paths ...string) Input {
	return Input{paths: append([]string(nil), paths...)}
}

// URL builds a URL input.
func URL(raw string) Input {
	return Input{url: strings.TrimSpace(raw), isURL: true}
}

// IsURL reports whether the input is a URL submission.
func (in Input) IsURL() bool { return in.isURL }

// Paths returns the file paths of a file-set input.
func (in Input) Paths() []string { return append([]string(nil), in.paths...) }

// Target returns the URL of a URL input.
func (in Input) Target() string { return in.url }

// Submission is what the service accepted. IDs and Names are paired
// positionally.
type Submission struct {
	IDs            []string
	Names          []string
	SourceLabel    string
	CharsExtracted int
}

// SubmissionError wraps every failure of Submit.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// ValidationError is a local rejection; no request was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Detail implements api.Detailer so the reason reaches the user unchanged.
func (e *ValidationError) Detail() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &SubmissionError{Cause: &ValidationError{Reason: fmt.Sprintf(format, args...)}}
}

// Limits are the local input constraints.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
	Extensions   []string
}

// DefaultLimits mirrors the service's own constraints.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:     config.DefaultMaxFiles,
		MaxFileBytes: config.DefaultMaxFileBytes,
		Extensions:   append([]string(nil), config.DefaultExtensions...),
	}
}

// LimitsFromConfig reads the submission section of the project config.
func LimitsFromConfig(sc config.SubmissionConfig) Limits {
	limits := Limits{
		MaxFiles:     sc.MaxFiles,
		MaxFileBytes: sc.MaxFileBytes,
		Extensions:   append([]string(nil), sc.Extensions...),
	}
	defaults := DefaultLimits()
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = defaults.MaxFiles
	}
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = defaults.MaxFileBytes
	}
	if len(limits.Extensions) == 0 {
		limits.Extensions = defaults.Extensions
	}
	return limits
}

func (l Limits) allows(ext string) bool {
	for _, candidate := range l.Extensions {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

// Gateway validates input and forwards it to the service.
type Gateway struct {
	service Service
	limits  Limits
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLimits overrides DefaultLimits.
func WithLimits(limits Limits) Option {
	return func(g *Gateway) {
		g.limits = limits
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway builds a gateway around service.
func NewGateway(service Service, opts ...Option) *Gateway {
	g := &Gateway{service: service, limits: DefaultLimits(), logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit validates input and submits it. Every error is a *SubmissionError.
func (g *Gateway) Submit(ctx context.Context, in Input) (Submission, error) {
	if in.IsURL() {
		return g.submitURL(ctx, in.Target())
	}
	return g.submitFiles(ctx, in.Paths())
}

func (g *Gateway) submitURL(ctx context.Context, target string) (Submission, error) {
	if err := validateURL(target); err != nil {
		return Submission{}, err
	}
	accepted, err := g.service.SubmitURL(ctx, target)
	if err != nil {
		g.logger.Warn("submission.failed", "kind", "url", "error", err)
		return Submission{}, &SubmissionError{Cause: err}
	}
	label := accepted.SourceLabel
	if label == "" {
		label = target
	}
	g.logger.Info("submission.accepted", "kind", "url", "job_id", accepted.JobID, "chars", accepted.CharsExtracted)
	return Submission{
		IDs:            []string{accepted.JobID},
		Names:          []string{label},
		SourceLabel:    label,
		CharsExtracted: accepted.CharsExtracted,
	}, nil
}

func (g *Gateway) submitFiles(ctx context.Context, paths []string) (Submission, error) {
	uploads, err := g.load(paths)
	if err != nil {
		return Submission{}, err
	}
	names := make([]string, len(uploads))
	for i, upload := range uploads {
		names[i] = upload.Name
	}

	var ids []string
	if len(uploads) == 1 {
		id, err := g.service.SubmitFile(ctx, uploads[0])
		if err != nil {
			g.logger.Warn("submission.failed", "kind", "single", "error", err)
			return Submission{}, &SubmissionError{Cause: err}
		}
		ids = []string{id}
	} else {
		ids, err = g.service.SubmitBatch(ctx, uploads)
		if err != nil {
			g.logger.Warn("submission.failed", "kind", "batch", "files", len(uploads), "error", err)
			return Submission{}, &SubmissionError{Cause: err}
		}
	}
	if len(ids) != len(uploads) {
		return Submission{}, &SubmissionError{
			Cause: fmt.Errorf("service returned %d job ids for %d files", len(ids), len(uploads)),
		}
	}
	g.logger.Info("submission.accepted", "kind", "files", "jobs", len(ids))
	return Submission{IDs: ids, Names: names}, nil
}

func (g *Gateway) load(paths []string) ([]api.Upload, error) {
	if len(paths) == 0 {
		return nil, invalid("Select at least one file.")
	}
	if len(paths) > g.limits.MaxFiles {
		return nil, invalid("Too many files: %d selected, maximum is %d.", len(paths), g.limits.MaxFiles)
	}
	uploads := make([]api.Upload, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		ext := strings.ToLower(filepath.Ext(name))
		if !g.limits.allows(ext) {
			return nil, invalid("%s: unsupported file type (allowed: %s).", name, strings.Join(g.limits.Extensions, ", "))
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, invalid("%s: cannot read file.", name)
		}
		if info.IsDir() {
			return nil, invalid("%s: is a directory.", name)
		}
		if info.Size() > g.limits.MaxFileBytes {
			return nil, invalid("%s: file is larger than %d MB.", name, g.limits.MaxFileBytes>>20)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, invalid("%s: cannot read file.", name)
		}
		if ext == ".pdf" {
			if _, err := document.PDFPages(content); err != nil {
				if errors.Is(err, document.ErrEmptyPDF) {
					return nil, invalid("%s: PDF has no pages.", name)
				}
				return nil, invalid("%s: not a readable PDF.", name)
			}
		}
		uploads = append(uploads, api.Upload{Name: name, Content: content})
	}
	return uploads, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return invalid("Enter a URL.")
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return invalid("Enter a full http(s) URL.")
	}
	return nil
}
