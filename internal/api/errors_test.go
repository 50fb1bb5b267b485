package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDescribeNotFoundUsesLiteralMessage(t *testing.T) {
	err := newStatusError("job-status", 404, []byte(`{"detail":"Job not found"}`))
	if got := Describe(err, "fallback"); got != "Job not found. The server may have restarted." {
		t.Fatalf("unexpected message %q", got)
	}
	if Classify(err) != KindNotFound {
		t.Fatalf("expected not-found kind, got %s", Classify(err))
	}
}

func TestDescribeServerErrorPrefersDetail(t *testing.T) {
	err := newStatusError("job-status", 500, []byte(`{"detail":"db down"}`))
	if got := Describe(err, "fallback"); got != "db down" {
		t.Fatalf("unexpected message %q", got)
	}
	bare := newStatusError("job-status", 502, []byte("<html>bad gateway</html>"))
	if got := Describe(bare, "fallback"); got != MsgServerError {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDescribeTransportFailureGivesGuidance(t *testing.T) {
	err := &TransportError{Op: "job-status", Err: errors.New("connection refused")}
	want := "Cannot reach the API. Make sure the backend is running (e.g. http://localhost:8000)."
	if got := Describe(err, "fallback"); got != want {
		t.Fatalf("unexpected message %q", got)
	}
	wrapped := fmt.Errorf("poll: %w", &TransportError{BaseURL: "https://cv.example.com", Err: errors.New("eof")})
	if got := Describe(wrapped, "fallback"); got != UnreachableMessage("https://cv.example.com") {
		t.Fatalf("unexpected message for wrapped error %q", got)
	}
}

func TestDescribeOtherShapesFallThrough(t *testing.T) {
	rejected := newStatusError("submit-url", 422, []byte(`{"detail":"Could not extract enough text"}`))
	if got := Describe(rejected, "Failed to fetch URL."); got != "Could not extract enough text" {
		t.Fatalf("unexpected message %q", got)
	}
	listDetail := newStatusError("submit-url", 422, []byte(`{"detail":[{"loc":["body","url"]}]}`))
	if got := Describe(listDetail, "Failed to fetch URL."); got != "Failed to fetch URL." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Describe(errors.New("boom"), "Upload failed."); got != "Upload failed." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := Describe(context.Canceled, "Upload failed."); got != "Upload failed." {
		t.Fatalf("unexpected message %q", got)
	}
}

type detailed struct{}

func (detailed) Error() string  { return "detailed" }
func (detailed) Detail() string { return "Too many files" }

func TestDescribeUsesDetailer(t *testing.T) {
	if got := Describe(fmt.Errorf("wrap: %w", detailed{}), "fallback"); got != "Too many files" {
		t.Fatalf("unexpected message %q", got)
	}
}
