package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/kingrea/cv-review/internal/document"
)

// Save writes art into dir and returns the written path. The filename is
// reduced to its base name so a hostile header cannot escape dir.
func Save(dir string, art Artifact) (string, error) {
	name := filepath.Base(filepath.Clean("/" + art.Filename))
	if name == "/" || name == "." || name == "" {
		name = Filename("", art.Format, false)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: ensure %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, art.Body, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

// Sheet is one worksheet of an XLSX report.
type Sheet struct {
	Name string
	Rows int
}

// Contents summarises what a report holds.
type Contents struct {
	Format Format
	Sheets []Sheet
	Pages  int
}

// Inspect opens the artifact and counts its sheets and rows (XLSX) or pages
// (PDF).
func Inspect(art Artifact) (Contents, error) {
	switch art.Format {
	case FormatXLSX:
		return inspectWorkbook(art.Body)
	case FormatPDF:
		pages, err := document.PDFPages(art.Body)
		if err != nil {
			return Contents{}, fmt.Errorf("report: inspect pdf: %w", err)
		}
		return Contents{Format: FormatPDF, Pages: pages}, nil
	}
	return Contents{}, fmt.Errorf("report: cannot inspect format %q", art.Format)
}

func inspectWorkbook(body []byte) (Contents, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return Contents{}, fmt.Errorf("report: open workbook: %w", err)
	}
	defer f.Close()
	contents := Contents{Format: FormatXLSX}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return Contents{}, fmt.Errorf("report: read sheet %s: %w", name, err)
		}
		contents.Sheets = append(contents.Sheets, Sheet{Name: name, Rows: len(rows)})
	}
	return contents, nil
}
