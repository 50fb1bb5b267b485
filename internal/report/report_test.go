package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/logging"
)

type fakeClient struct {
	single  []string
	multi   []api.ReportQuery
	dl      api.Download
	err     error
	formats []string
}

func (f *fakeClient) CandidateReport(_ context.Context, id, format string) (api.Download, error) {
	f.single = append(f.single, id)
	f.formats = append(f.formats, format)
	return f.dl, f.err
}

func (f *fakeClient) CandidatesReport(_ context.Context, q api.ReportQuery) (api.Download, error) {
	f.multi = append(f.multi, q)
	return f.dl, f.err
}

func newTestFetcher(c *fakeClient) *Fetcher {
	return NewFetcher(c, logging.Discard())
}

func TestFetchRoutesByCardinality(t *testing.T) {
	c := &fakeClient{dl: api.Download{Body: []byte("x")}}
	f := newTestFetcher(c)

	art, err := f.Fetch(context.Background(), Request{Format: FormatPDF, IDs: []string{"a1"}})
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	if len(c.single) != 1 || c.formats[0] != "pdf" || art.Filename != "candidate-report.pdf" {
		t.Fatalf("single routing: %+v %q", c, art.Filename)
	}

	art, err = f.Fetch(context.Background(), Request{Format: FormatXLSX, IDs: []string{"a1", "a2"}})
	if err != nil {
		t.Fatalf("multi: %v", err)
	}
	if len(c.multi) != 1 || art.Filename != "candidate-reports.xlsx" {
		t.Fatalf("multi routing: %+v %q", c.multi, art.Filename)
	}

	_, err = f.Fetch(context.Background(), Request{Format: FormatXLSX, IDs: []string{"a1"}, Filter: Filter{Area: "Data"}})
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if len(c.multi) != 2 || c.multi[1].Area != "Data" {
		t.Fatalf("filtered single id should use multi endpoint: %+v", c.multi)
	}
}

func TestFilenameFromContentDisposition(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{`attachment; filename="jane-doe.xlsx"`, "jane-doe.xlsx"},
		{`attachment; filename=report.pdf`, "report.pdf"},
		{`attachment; filename=report.pdf; size=10`, "report.pdf"},
		{``, "candidate-report.pdf"},
	}
	for _, tc := range cases {
		if got := Filename(tc.header, FormatPDF, false); got != tc.want {
			t.Fatalf("Filename(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
	if got := Filename("inline", FormatXLSX, true); got != "candidate-reports.xlsx" {
		t.Fatalf("multi default = %q", got)
	}
}

func TestDownloadErrorDetailChain(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&api.StatusError{Op: "download-single", Code: 404, Detail: "Analysis not found", Body: `{"detail":"Analysis not found"}`}, "Analysis not found"},
		{&api.StatusError{Op: "download-single", Code: 502, Body: "Bad Gateway"}, "Bad Gateway"},
		{&api.StatusError{Op: "download-single", Code: 500}, MsgDownloadFailed},
		{&api.TransportError{Op: "download-single", BaseURL: "http://localhost:8000", Err: errors.New("refused")}, api.UnreachableMessage("http://localhost:8000")},
	}
	for _, tc := range cases {
		_, err := newTestFetcher(&fakeClient{err: tc.err}).Fetch(context.Background(), Request{Format: FormatPDF, IDs: []string{"a"}})
		var derr *DownloadError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DownloadError, got %v", err)
		}
		if derr.Detail != tc.want {
			t.Fatalf("detail = %q, want %q", derr.Detail, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" XLSX "); err != nil || f != FormatXLSX {
		t.Fatalf("xlsx: %v %v", f, err)
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Fatalf("csv should be rejected")
	}
}

func TestSaveStaysInsideDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := Save(dir, Artifact{Filename: "../../etc/evil.pdf", Format: FormatPDF, Body: []byte("%PDF")})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Base(path) != "evil.pdf" {
		t.Fatalf("path escaped dir: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("read back: %q %v", data, err)
	}
}

func TestInspectWorkbook(t *testing.T) {
	wb := excelize.NewFile()
	_ = wb.SetCellValue("Sheet1", "A1", "Candidate")
	_ = wb.SetCellValue("Sheet1", "A2", "Jane")
	_ = wb.SetCellValue("Sheet1", "A3", "John")
	if _, err := wb.NewSheet("Scores"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	_ = wb.SetCellValue("Scores", "A1", "Area")
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	contents, err := Inspect(Artifact{Format: FormatXLSX, Body: buf.Bytes()})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(contents.Sheets) != 2 {
		t.Fatalf("sheets = %+v", contents.Sheets)
	}
	if contents.Sheets[0].Name != "Sheet1" || contents.Sheets[0].Rows != 3 || contents.Sheets[1].Rows != 1 {
		t.Fatalf("unexpected contents %+v", contents.Sheets)
	}
}

func TestInspectRejectsBrokenPDF(t *testing.T) {
	_, err := Inspect(Artifact{Format: FormatPDF, Body: []byte("<html>error</html>")})
	if err == nil || !strings.Contains(err.Error(), "pdf") {
		t.Fatalf("expected pdf error, got %v", err)
	}
}
