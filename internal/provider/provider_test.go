package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/model"
)

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestRankNewestFirst(t *testing.T) {
	in := []Result{
		{SourceSystemID: "a", PostedDate: date("2026-01-02")},
		{SourceSystemID: "b"},
		{SourceSystemID: "c", PostedDate: date("2026-01-05")},
		{SourceSystemID: "a", PostedDate: date("2026-01-09")},
		{SourceSystemID: "d", PostedDate: date("2026-01-03")},
	}

	out := RankNewestFirst(in)

	ids := make([]string, 0, len(out))
	for _, r := range out {
		ids = append(ids, r.SourceSystemID)
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, ids)
	assert.Equal(t, date("2026-01-02"), out[2].PostedDate)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewSamGov("http://sam", nil), NewDibbs("http://dibbs", nil))

	a, err := r.Get(model.SourceDibbs)
	require.NoError(t, err)
	assert.Equal(t, model.SourceDibbs, a.Source())

	_, err = r.Get("FPDS")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2026, 2, 1, 22, 0, 0, 0, time.UTC), *parseDate("2026-02-01T17:00:00-05:00"))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *parseDate("2026-02-01"))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *parseDate("02/01/2026"))
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("next tuesday"))
}

func TestDetail_Opportunity(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	v := 1200.5
	d := &Detail{Result: Result{SourceSystemID: "N-1", Title: "Pumps", Active: true}, EstimatedValue: &v}

	o := d.Opportunity("org-1", "proj-1", model.SourceSamGov, now)

	assert.Equal(t, "N-1", o.SourceSystemID)
	assert.Equal(t, model.SourceSamGov, o.Source)
	assert.Equal(t, "proj-1", o.ProjectID)
	assert.Equal(t, &v, o.EstimatedValue)
	assert.Equal(t, now, o.CreatedAt)
}

func TestProviderError(t *testing.T) {
	withStatus := &ProviderError{Source: model.SourceSamGov, Op: "search", StatusCode: 429, Body: "slow down"}
	assert.Equal(t, "SAM_GOV search: unexpected status 429: slow down", withStatus.Error())

	cause := errors.New("dial tcp: refused")
	transport := &ProviderError{Source: model.SourceDibbs, Op: "detail", Err: cause}
	assert.ErrorIs(t, transport, cause)
}

func TestDibbs_Search(t *testing.T) {
	var got dibbsSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/solicitations/search", r.URL.Path)
		assert.Equal(t, "dk", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"solicitations":[{
			"solicitationNumber":"SPE7M1-26-T-0001",
			"title":"Valve assembly",
			"issueDate":"2026-01-10",
			"returnByDate":"2026-02-10",
			"fsc":"4820",
			"status":"OPEN",
			"technicalDocuments":[{"url":"https://dibbs.example/doc/1","fileName":"drawing.pdf","id":"d1"},{"url":""}]
		}]}`))
	}))
	defer srv.Close()

	d := NewDibbs(srv.URL, srv.Client())
	results, err := d.Search(context.Background(), "dk", Query{
		Criteria:   model.SearchCriteria{Keywords: "valve", PscCodes: []string{"4820"}},
		PostedFrom: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		PostedTo:   time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", got.PostedFrom)
	assert.Equal(t, "2026-01-31", got.PostedTo)
	assert.Equal(t, 100, got.Limit)
	assert.Equal(t, []string{"4820"}, got.FscCodes)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "SPE7M1-26-T-0001", r.SourceSystemID)
	assert.True(t, r.Active)
	assert.Equal(t, date("2026-01-10"), r.PostedDate)
	assert.Equal(t, []model.AttachmentRef{{URL: "https://dibbs.example/doc/1", Name: "drawing.pdf", SourceID: "d1"}}, r.Attachments)
}

func TestDibbs_FetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/solicitations/SPE%2F1", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"solicitationNumber":"SPE/1","status":"Closed","estimatedValue":5000}`))
	}))
	defer srv.Close()

	d, err := NewDibbs(srv.URL, srv.Client()).FetchDetail(context.Background(), "", "SPE/1")

	require.NoError(t, err)
	assert.False(t, d.Active)
	require.NotNil(t, d.EstimatedValue)
	assert.Equal(t, 5000.0, *d.EstimatedValue)
}
