package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/model"
)

const samSearchBody = `{
	"totalRecords": 2,
	"opportunitiesData": [
		{
			"noticeId": "abc123",
			"title": "Runway repair",
			"solicitationNumber": "FA4600-26-R-0001",
			"fullParentPathName": "DEPT OF DEFENSE.DEPT OF THE AIR FORCE",
			"postedDate": "2026-01-12",
			"type": "Solicitation",
			"typeOfSetAside": "SBA",
			"responseDeadLine": "2026-02-12T14:00:00-06:00",
			"naicsCode": "237310",
			"classificationCode": "Y1LB",
			"active": "Yes",
			"uiLink": "https://sam.gov/opp/abc123/view",
			"resourceLinks": ["https://sam.gov/api/prod/opps/v3/opportunities/resources/files/f1/download", " "]
		},
		{"noticeId": "def456", "title": "Archived", "active": "No"}
	]
}`

func TestSamGov_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/opportunities/v2/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key-1", q.Get("api_key"))
		assert.Equal(t, "12/15/2025", q.Get("postedFrom"))
		assert.Equal(t, "01/14/2026", q.Get("postedTo"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "runway", q.Get("title"))
		assert.Equal(t, "237310", q.Get("ncode"))
		assert.Empty(t, q.Get("ccode"))
		_, _ = w.Write([]byte(samSearchBody))
	}))
	defer srv.Close()

	s := NewSamGov(srv.URL+"/", srv.Client())
	results, err := s.Search(context.Background(), "key-1", Query{
		Criteria:   model.SearchCriteria{Keywords: "runway", NaicsCodes: []string{"237310", "237990"}, Limit: 10},
		PostedFrom: time.Date(2025, 12, 15, 9, 30, 0, 0, time.UTC),
		PostedTo:   time.Date(2026, 1, 14, 9, 30, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	r := results[0]
	assert.Equal(t, "abc123", r.SourceSystemID)
	assert.Equal(t, "DEPT OF DEFENSE.DEPT OF THE AIR FORCE", r.Agency)
	assert.Equal(t, "Y1LB", r.PscCode)
	assert.True(t, r.Active)
	assert.Equal(t, time.Date(2026, 2, 12, 20, 0, 0, 0, time.UTC), *r.ResponseDeadline)
	require.Len(t, r.Attachments, 1)
	assert.False(t, results[1].Active)
}

func TestSamGov_SearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"API_KEY_INVALID"}`))
	}))
	defer srv.Close()

	_, err := NewSamGov(srv.URL, srv.Client()).Search(context.Background(), "bad", Query{})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, model.SourceSamGov, pe.Source)
	assert.Contains(t, pe.Body, "API_KEY_INVALID")
}

func TestSamGov_TransportErrorOmitsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	adapter := NewSamGov(addr, &http.Client{Timeout: 2 * time.Second})
	ctx := context.Background()

	_, err := adapter.Search(ctx, "SECRET-KEY-123", Query{PostedFrom: time.Now().AddDate(0, 0, -1), PostedTo: time.Now()})
	require.Error(t, err)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.StatusCode)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.NotContains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "/opportunities/v2/search")

	_, err = adapter.FetchDetail(ctx, "SECRET-KEY-123", "N-1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestSamGov_FetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("noticeid") == "missing" {
			_, _ = w.Write([]byte(`{"totalRecords":0,"opportunitiesData":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"opportunitiesData":[{"noticeId":"abc123","active":"Yes","award":{"amount":"25000.00"}}]}`))
	}))
	defer srv.Close()
	s := NewSamGov(srv.URL, srv.Client())

	d, err := s.FetchDetail(context.Background(), "k", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", d.NoticeID)
	require.NotNil(t, d.EstimatedValue)
	assert.Equal(t, 25000.0, *d.EstimatedValue)

	_, err = s.FetchDetail(context.Background(), "k", "missing")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
}
