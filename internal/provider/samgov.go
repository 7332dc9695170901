package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bidflow/internal/model"
)

// samDateLayout is the MM/dd/yyyy form the SAM.gov search API expects.
const samDateLayout = "01/02/2006"

// SamGov searches the SAM.gov opportunities API.
type SamGov struct {
	baseURL    string
	httpClient *http.Client
}

func NewSamGov(baseURL string, httpClient *http.Client) *SamGov {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SamGov{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

var _ Adapter = (*SamGov)(nil)

func (s *SamGov) Source() model.Source { return model.SourceSamGov }

type samSearchResponse struct {
	TotalRecords      int              `json:"totalRecords"`
	OpportunitiesData []samOpportunity `json:"opportunitiesData"`
}

type samOpportunity struct {
	NoticeID           string        `json:"noticeId"`
	Title              string        `json:"title"`
	SolicitationNumber string        `json:"solicitationNumber"`
	FullParentPathName string        `json:"fullParentPathName"`
	PostedDate         string        `json:"postedDate"`
	Type               string        `json:"type"`
	TypeOfSetAside     string        `json:"typeOfSetAside"`
	ResponseDeadLine   string        `json:"responseDeadLine"`
	NaicsCode          string        `json:"naicsCode"`
	ClassificationCode string        `json:"classificationCode"`
	Active             string        `json:"active"`
	Description        string        `json:"description"`
	UILink             string        `json:"uiLink"`
	ResourceLinks      []string      `json:"resourceLinks"`
	Award              *samAwardInfo `json:"award"`
}

type samAwardInfo struct {
	Amount string `json:"amount"`
}

func (o samOpportunity) result() Result {
	r := Result{
		SourceSystemID:     o.NoticeID,
		NoticeID:           o.NoticeID,
		SolicitationNumber: o.SolicitationNumber,
		Title:              o.Title,
		Type:               o.Type,
		Agency:             o.FullParentPathName,
		PostedDate:         parseDate(o.PostedDate),
		ResponseDeadline:   parseDate(o.ResponseDeadLine),
		NaicsCode:          o.NaicsCode,
		PscCode:            o.ClassificationCode,
		SetAside:           o.TypeOfSetAside,
		Description:        o.Description,
		URL:                o.UILink,
		Active:             strings.EqualFold(o.Active, "yes"),
	}
	for _, link := range o.ResourceLinks {
		if link = strings.TrimSpace(link); link != "" {
			r.Attachments = append(r.Attachments, model.AttachmentRef{URL: link})
		}
	}
	return r
}

// Search runs one window query. SAM.gov accepts a single NAICS and PSC code
// per request, so only the first of each is sent.
func (s *SamGov) Search(ctx context.Context, apiKey string, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("postedFrom", q.PostedFrom.Format(samDateLayout))
	params.Set("postedTo", q.PostedTo.Format(samDateLayout))
	params.Set("limit", strconv.Itoa(limitOf(q, 100)))
	params.Set("offset", "0")
	if q.Criteria.Keywords != "" {
		params.Set("title", q.Criteria.Keywords)
	}
	if len(q.Criteria.NaicsCodes) > 0 {
		params.Set("ncode", q.Criteria.NaicsCodes[0])
	}
	if len(q.Criteria.PscCodes) > 0 {
		params.Set("ccode", q.Criteria.PscCodes[0])
	}
	if q.Criteria.SetAsideCode != "" {
		params.Set("typeOfSetAside", q.Criteria.SetAsideCode)
	}

	var out samSearchResponse
	if err := s.get(ctx, params, "search", &out); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(out.OpportunitiesData))
	for _, o := range out.OpportunitiesData {
		results = append(results, o.result())
	}
	return results, nil
}

// FetchDetail looks a notice up by id.
func (s *SamGov) FetchDetail(ctx context.Context, apiKey, id string) (*Detail, error) {
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("noticeid", id)
	params.Set("limit", "1")

	var out samSearchResponse
	if err := s.get(ctx, params, "detail", &out); err != nil {
		return nil, err
	}
	if len(out.OpportunitiesData) == 0 {
		return nil, &ProviderError{Source: model.SourceSamGov, Op: "detail", StatusCode: http.StatusNotFound, Body: "notice " + id + " not found"}
	}
	o := out.OpportunitiesData[0]
	d := &Detail{Result: o.result()}
	if o.Award != nil {
		if v, err := strconv.ParseFloat(o.Award.Amount, 64); err == nil {
			d.EstimatedValue = &v
		}
	}
	return d, nil
}

func (s *SamGov) get(ctx context.Context, params url.Values, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/opportunities/v2/search?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", redactURL(err))
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(s.httpClient, req, model.SourceSamGov, op, out)
}
