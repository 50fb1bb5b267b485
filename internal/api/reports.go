package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Download is a binary artifact returned by a report endpoint.
type Download struct {
	Body               []byte
	ContentType        string
	ContentDisposition string
}

// ReportQuery selects the analyses included in a multi-candidate report.
type ReportQuery struct {
	Format   string
	IDs      []string
	Area     string
	DateFrom string
	DateTo   string
}

func (q ReportQuery) values() url.Values {
	values := url.Values{}
	values.Set("format", q.Format)
	if len(q.IDs) > 0 {
		values.Set("ids", strings.Join(q.IDs, ","))
	}
	if area := strings.TrimSpace(q.Area); area != "" {
		values.Set("area", area)
	}
	if from := strings.TrimSpace(q.DateFrom); from != "" {
		values.Set("date_from", from)
	}
	if to := strings.TrimSpace(q.DateTo); to != "" {
		values.Set("date_to", to)
	}
	return values
}

// CandidateReport downloads the report for one analysis.
func (c *Client) CandidateReport(ctx context.Context, analysisID, format string) (Download, error) {
	query := url.Values{}
	query.Set("format", format)
	resp, err := c.do(ctx, "download-single", http.MethodGet, "/api/reports/candidate/"+url.PathEscape(analysisID), query, nil, "")
	if err != nil {
		return Download{}, err
	}
	return toDownload(resp), nil
}

// CandidatesReport downloads one report covering several analyses.
func (c *Client) CandidatesReport(ctx context.Context, q ReportQuery) (Download, error) {
	resp, err := c.do(ctx, "download-multi", http.MethodGet, "/api/reports/candidates", q.values(), nil, "")
	if err != nil {
		return Download{}, err
	}
	return toDownload(resp), nil
}

func toDownload(resp response) Download {
	return Download{
		Body:               resp.body,
		ContentType:        resp.header.Get("Content-Type"),
		ContentDisposition: resp.header.Get("Content-Disposition"),
	}
}
