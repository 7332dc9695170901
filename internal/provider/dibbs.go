package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bidflow/internal/model"
)

const dibbsDateLayout = "2006-01-02"

// Dibbs searches the DLA DIBBS solicitation gateway.
type Dibbs struct {
	baseURL    string
	httpClient *http.Client
}

func NewDibbs(baseURL string, httpClient *http.Client) *Dibbs {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Dibbs{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

var _ Adapter = (*Dibbs)(nil)

func (d *Dibbs) Source() model.Source { return model.SourceDibbs }

type dibbsSearchRequest struct {
	Keywords   string   `json:"keywords,omitempty"`
	FscCodes   []string `json:"fscCodes,omitempty"`
	NaicsCodes []string `json:"naicsCodes,omitempty"`
	SetAside   string   `json:"setAside,omitempty"`
	PostedFrom string   `json:"postedFrom"`
	PostedTo   string   `json:"postedTo"`
	Limit      int      `json:"limit"`
}

type dibbsSearchResponse struct {
	Solicitations []dibbsSolicitation `json:"solicitations"`
}

type dibbsSolicitation struct {
	SolicitationNumber string          `json:"solicitationNumber"`
	Title              string          `json:"title"`
	IssueDate          string          `json:"issueDate"`
	ReturnByDate       string          `json:"returnByDate"`
	Fsc                string          `json:"fsc"`
	Naics              string          `json:"naics"`
	SetAside           string          `json:"setAside"`
	Buyer              string          `json:"buyer"`
	Status             string          `json:"status"`
	Link               string          `json:"link"`
	Description        string          `json:"description"`
	EstimatedValue     *float64        `json:"estimatedValue"`
	Documents          []dibbsDocument `json:"technicalDocuments"`
}

type dibbsDocument struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	ID       string `json:"id"`
}

func (s dibbsSolicitation) result() Result {
	r := Result{
		SourceSystemID:     s.SolicitationNumber,
		SolicitationNumber: s.SolicitationNumber,
		Title:              s.Title,
		Type:               "Solicitation",
		Agency:             s.Buyer,
		PostedDate:         parseDate(s.IssueDate),
		ResponseDeadline:   parseDate(s.ReturnByDate),
		NaicsCode:          s.Naics,
		PscCode:            s.Fsc,
		SetAside:           s.SetAside,
		Description:        s.Description,
		URL:                s.Link,
		Active:             !strings.EqualFold(s.Status, "closed"),
	}
	for _, doc := range s.Documents {
		if doc.URL == "" {
			continue
		}
		r.Attachments = append(r.Attachments, model.AttachmentRef{
			URL:      doc.URL,
			Name:     doc.FileName,
			MimeType: doc.MimeType,
			SourceID: doc.ID,
		})
	}
	return r
}

func (d *Dibbs) Search(ctx context.Context, apiKey string, q Query) ([]Result, error) {
	body, err := json.Marshal(dibbsSearchRequest{
		Keywords:   q.Criteria.Keywords,
		FscCodes:   q.Criteria.PscCodes,
		NaicsCodes: q.Criteria.NaicsCodes,
		SetAside:   q.Criteria.SetAsideCode,
		PostedFrom: q.PostedFrom.Format(dibbsDateLayout),
		PostedTo:   q.PostedTo.Format(dibbsDateLayout),
		Limit:      limitOf(q, 100),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/solicitations/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	d.authorize(req, apiKey)

	var out dibbsSearchResponse
	if err := doJSON(d.httpClient, req, model.SourceDibbs, "search", &out); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(out.Solicitations))
	for _, s := range out.Solicitations {
		results = append(results, s.result())
	}
	return results, nil
}

func (d *Dibbs) FetchDetail(ctx context.Context, apiKey, id string) (*Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/solicitations/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	d.authorize(req, apiKey)

	var out dibbsSolicitation
	if err := doJSON(d.httpClient, req, model.SourceDibbs, "detail", &out); err != nil {
		return nil, err
	}
	return &Detail{Result: out.result(), EstimatedValue: out.EstimatedValue}, nil
}

func (d *Dibbs) authorize(req *http.Request, apiKey string) {
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
}
