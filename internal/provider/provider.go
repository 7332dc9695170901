package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"bidflow/internal/model"
)

// ErrUnknownSource is returned by Registry.Get for an unregistered source.
var ErrUnknownSource = errors.New("unknown opportunity source")

// Query is one incremental search. PostedFrom and PostedTo bound the
// window; Criteria carries the saved filters.
type Query struct {
	Criteria   model.SearchCriteria
	PostedFrom time.Time
	PostedTo   time.Time
	Limit      int
}

// Result is a search hit, normalized across sources.
type Result struct {
	SourceSystemID     string
	NoticeID           string
	SolicitationNumber string
	Title              string
	Type               string
	Agency             string
	PostedDate         *time.Time
	ResponseDeadline   *time.Time
	NaicsCode          string
	PscCode            string
	SetAside           string
	Description        string
	URL                string
	Active             bool
	Attachments        []model.AttachmentRef
}

// Detail is the full record of one opportunity.
type Detail struct {
	Result
	EstimatedValue *float64
}

// Opportunity maps d onto the canonical record for a tenant's project.
func (d *Detail) Opportunity(orgID, projectID string, source model.Source, now time.Time) *model.Opportunity {
	return &model.Opportunity{
		OrgID:              orgID,
		ProjectID:          projectID,
		Source:             source,
		SourceSystemID:     d.SourceSystemID,
		NoticeID:           d.NoticeID,
		SolicitationNumber: d.SolicitationNumber,
		Title:              d.Title,
		Type:               d.Type,
		Agency:             d.Agency,
		PostedDate:         d.PostedDate,
		ResponseDeadline:   d.ResponseDeadline,
		NaicsCode:          d.NaicsCode,
		PscCode:            d.PscCode,
		SetAside:           d.SetAside,
		Description:        d.Description,
		EstimatedValue:     d.EstimatedValue,
		Active:             d.Active,
		URL:                d.URL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Adapter is one external solicitation catalog.
type Adapter interface {
	Source() model.Source
	Search(ctx context.Context, apiKey string, q Query) ([]Result, error)
	FetchDetail(ctx context.Context, apiKey, id string) (*Detail, error)
}

// ProviderError reports a failed catalog call. StatusCode is zero for
// transport and decoding failures.
type ProviderError struct {
	Source     model.Source
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Source, e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Registry selects the adapter for a saved search's source.
type Registry struct {
	adapters map[model.Source]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Source]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

func (r *Registry) Get(source model.Source) (Adapter, error) {
	a, ok := r.adapters[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return a, nil
}

// RankNewestFirst orders results by posted date, newest first, undated
// last, and drops repeated source ids keeping the first occurrence.
func RankNewestFirst(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.SourceSystemID]; dup {
			continue
		}
		seen[r.SourceSystemID] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PostedDate, out[j].PostedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out
}

func doJSON(client *http.Client, req *http.Request, source model.Source, op string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Source: source, Op: op, Err: redactURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{Source: source, Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Source: source, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func limitOf(q Query, def int) int {
	switch {
	case q.Limit > 0:
		return q.Limit
	case q.Criteria.Limit > 0:
		return q.Criteria.Limit
	}
	return def
}

// redactURL drops the query and userinfo from a *url.Error. SAM.gov keys
// travel as the api_key parameter and must not reach logs or API results.
func redactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	clean := "<redacted>"
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		clean = u.String()
	}
	return &url.Error{Op: ue.Op, URL: clean, Err: ue.Err}
}
