package submission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/cv-review/internal/api"
)

type fakeService struct {
	singleCalls int
	batchCalls  int
	urlCalls    int
	batchNames  []string
	ids         []string
	url         api.URLSubmission
	err         error
}

func (f *fakeService) SubmitFile(_ context.Context, upload api.Upload) (string, error) {
	f.singleCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.ids[0], nil
}

func (f *fakeService) SubmitBatch(_ context.Context, uploads []api.Upload) ([]string, error) {
	f.batchCalls++
	for _, upload := range uploads {
		f.batchNames = append(f.batchNames, upload.Name)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

func (f *fakeService) SubmitURL(_ context.Context, target string) (api.URLSubmission, error) {
	f.urlCalls++
	if f.err != nil {
		return api.URLSubmission{}, f.err
	}
	return f.url, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireValidation(t *testing.T, err error, contains string) {
	t.Helper()
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError cause, got %v", se.Cause)
	}
	if !strings.Contains(ve.Reason, contains) {
		t.Fatalf("reason %q does not mention %q", ve.Reason, contains)
	}
}

func TestSingleFileUsesSingleEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "alice.txt", "Alice, ML engineer")
	svc := &fakeService{ids: []string{"job-1"}}
	got, err := NewGateway(svc).Submit(context.Background(), Files(path))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if svc.singleCalls != 1 || svc.batchCalls != 0 {
		t.Fatalf("single=%d batch=%d", svc.singleCalls, svc.batchCalls)
	}
	if len(got.IDs) != 1 || got.IDs[0] != "job-1" || got.Names[0] != "alice.txt" {
		t.Fatalf("unexpected submission %+v", got)
	}
}

func TestBatchPairsIDsWithNamesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")
	c := writeFile(t, dir, "c.txt", "c")
	svc := &fakeService{ids: []string{"j1", "j2", "j3"}}
	got, err := NewGateway(svc).Submit(context.Background(), Files(a, b, c))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if svc.batchCalls != 1 {
		t.Fatalf("expected batch endpoint")
	}
	if strings.Join(svc.batchNames, ",") != "a.txt,b.txt,c.txt" {
		t.Fatalf("upload order = %v", svc.batchNames)
	}
	if strings.Join(got.IDs, ",") != "j1,j2,j3" || strings.Join(got.Names, ",") != "a.txt,b.txt,c.txt" {
		t.Fatalf("unexpected pairing %+v", got)
	}
}

func TestBatchIDCountMismatchIsAnError(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")
	svc := &fakeService{ids: []string{"only-one"}}
	_, err := NewGateway(svc).Submit(context.Background(), Files(a, b))
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestLocalValidationMakesNoRequest(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeService{ids: []string{"x"}}
	gw := NewGateway(svc, WithLimits(Limits{MaxFiles: 2, MaxFileBytes: 4, Extensions: []string{".txt", ".pdf"}}))

	_, err := gw.Submit(context.Background(), Files())
	requireValidation(t, err, "at least one")

	a := writeFile(t, dir, "a.txt", "a")
	_, err = gw.Submit(context.Background(), Files(a, a, a))
	requireValidation(t, err, "Too many files")

	doc := writeFile(t, dir, "cv.docx", "x")
	_, err = gw.Submit(context.Background(), Files(doc))
	requireValidation(t, err, "unsupported")

	big := writeFile(t, dir, "big.txt", "too large")
	_, err = gw.Submit(context.Background(), Files(big))
	requireValidation(t, err, "larger")

	_, err = gw.Submit(context.Background(), Files(filepath.Join(dir, "missing.txt")))
	requireValidation(t, err, "cannot read")

	fake := writeFile(t, dir, "fake.pdf", "nope")
	_, err = gw.Submit(context.Background(), Files(fake))
	requireValidation(t, err, "PDF")

	if svc.singleCalls+svc.batchCalls+svc.urlCalls != 0 {
		t.Fatalf("validation failures must not reach the service")
	}
}

func TestValidationReasonSurvivesDescribe(t *testing.T) {
	_, err := NewGateway(&fakeService{}).Submit(context.Background(), URL("not a url"))
	if got := api.Describe(err, "Failed to fetch URL."); got != "Enter a full http(s) URL." {
		t.Fatalf("describe = %q", got)
	}
}

func TestURLSubmissionKeepsSourceLabel(t *testing.T) {
	svc := &fakeService{url: api.URLSubmission{JobID: "u1", SourceLabel: "LinkedIn: Jane Doe", CharsExtracted: 4200}}
	got, err := NewGateway(svc).Submit(context.Background(), URL(" https://linkedin.com/in/jane "))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.SourceLabel != "LinkedIn: Jane Doe" || got.CharsExtracted != 4200 {
		t.Fatalf("unexpected submission %+v", got)
	}
	if len(got.IDs) != 1 || got.IDs[0] != "u1" {
		t.Fatalf("ids = %v", got.IDs)
	}
}

func TestServiceErrorsAreWrapped(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	cause := &api.StatusError{Op: "submit-single", Code: 400, Detail: "Unsupported file"}
	_, err := NewGateway(&fakeService{err: cause}).Submit(context.Background(), Files(a))
	var se *SubmissionError
	if !errors.As(err, &se) || se.Cause != cause {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
	if got := api.Describe(err, "Upload failed."); got != "Unsupported file" {
		t.Fatalf("describe = %q", got)
	}
}
