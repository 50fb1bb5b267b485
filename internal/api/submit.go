package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
)

// Upload is one document handed to the service.
type Upload struct {
	Name    string
	Content []byte
}

// URLSubmission is the service's answer to a URL evaluation request.
type URLSubmission struct {
	JobID          string `json:"job_id"`
	SourceLabel    string `json:"source_label"`
	CharsExtracted int    `json:"chars_extracted"`
}

// SubmitFile starts a single analysis job.
func (c *Client) SubmitFile(ctx context.Context, upload Upload) (string, error) {
	body, contentType, err := multipartBody("file", []Upload{upload})
	if err != nil {
		return "", fmt.Errorf("api: submit-single: %w", err)
	}
	resp, err := c.do(ctx, "submit-single", http.MethodPost, "/api/evaluate", nil, body, contentType)
	if err != nil {
		return "", err
	}
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := decode("submit-single", resp.body, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", &PayloadError{Op: "submit-single", Err: fmt.Errorf("missing job_id")}
	}
	return out.JobID, nil
}

// SubmitBatch starts one job per upload. The returned identifiers are in the
// same order as uploads.
func (c *Client) SubmitBatch(ctx context.Context, uploads []Upload) ([]string, error) {
	body, contentType, err := multipartBody("files", uploads)
	if err != nil {
		return nil, fmt.Errorf("api: submit-batch: %w", err)
	}
	resp, err := c.do(ctx, "submit-batch", http.MethodPost, "/api/evaluate-batch", nil, body, contentType)
	if err != nil {
		return nil, err
	}
	var out struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := decode("submit-batch", resp.body, &out); err != nil {
		return nil, err
	}
	return out.JobIDs, nil
}

// SubmitURL asks the service to fetch and evaluate a public page.
func (c *Client) SubmitURL(ctx context.Context, target string) (URLSubmission, error) {
	var out URLSubmission
	if err := c.postJSON(ctx, "submit-url", "/api/evaluate-url", map[string]string{"url": target}, &out); err != nil {
		return URLSubmission{}, err
	}
	if out.JobID == "" {
		return URLSubmission{}, &PayloadError{Op: "submit-url", Err: fmt.Errorf("missing job_id")}
	}
	return out, nil
}

func multipartBody(field string, uploads []Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, upload := range uploads {
		part, err := writer.CreateFormFile(field, upload.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", upload.Name, err)
		}
		if _, err := part.Write(upload.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", upload.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
