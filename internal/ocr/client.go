package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client submits jobs to an HTTP OCR service.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a Client posting to endpoint. httpClient is the shared
// outbound client.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

var _ Provider = (*Client)(nil)

type submitRequest struct {
	DocumentLocation documentLocation `json:"documentLocation"`
	ContentType      string           `json:"contentType,omitempty"`
	JobTag           string           `json:"jobTag"`
}

type documentLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

// SubmitJob posts one job and returns the service's job id.
func (c *Client) SubmitJob(ctx context.Context, job Job) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(submitRequest{
		DocumentLocation: documentLocation{Bucket: job.Bucket, Key: job.Key},
		ContentType:      job.ContentType,
		JobTag:           job.CorrelationTag,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &SubmitError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("ocr submit: empty job id")
	}
	return out.JobID, nil
}
