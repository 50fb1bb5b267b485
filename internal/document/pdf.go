// Package document holds small helpers for looking inside the documents
// cvreview uploads and downloads.
package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyPDF is returned for a PDF that parses but has no pages.
var ErrEmptyPDF = errors.New("pdf has no pages")

// PDFPages parses data as a PDF and returns its page count.
func PDFPages(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("document: empty pdf")
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("document: malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("document: parse pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages < 1 {
		return 0, ErrEmptyPDF
	}
	return pages, nil
}
