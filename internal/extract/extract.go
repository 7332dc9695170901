package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bidflow/internal/model"
)

// QuestionExtractor turns a document's recognized text into structured
// questions and reports how many were produced.
type QuestionExtractor interface {
	Extract(ctx context.Context, doc model.IngestionDocument) (int, error)
}

// Client calls a remote extraction service.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a Client for endpoint using the shared outbound client.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), apiKey: apiKey, httpClient: httpClient}
}

var _ QuestionExtractor = (*Client)(nil)

type extractRequest struct {
	DocumentID string `json:"documentId"`
	OrgID      string `json:"orgId"`
	ProjectID  string `json:"projectId"`
	OcrJobID   string `json:"ocrJobId"`
	StorageKey string `json:"storageKey"`
}

type extractResponse struct {
	QuestionCount int `json:"questionCount"`
}

func (c *Client) Extract(ctx context.Context, doc model.IngestionDocument) (int, error) {
	body, err := json.Marshal(extractRequest{
		DocumentID: doc.ID,
		OrgID:      doc.OrgID,
		ProjectID:  doc.ProjectID,
		OcrJobID:   doc.OcrJobID,
		StorageKey: doc.StorageKey,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/extractions", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("extract questions for %s: %w", doc.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("extract questions for %s: unexpected status %d: %s",
			doc.ID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding extraction response: %w", err)
	}
	return out.QuestionCount, nil
}

// Nop is used when no extraction endpoint is configured. It reports zero
// questions.
type Nop struct{}

func (Nop) Extract(context.Context, model.IngestionDocument) (int, error) { return 0, nil }
