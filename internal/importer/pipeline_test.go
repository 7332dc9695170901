package importer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bidflow/internal/fetcher"
	"bidflow/internal/model"
	"bidflow/internal/repository"
	"bidflow/internal/repository/memory"
	repoMocks "bidflow/internal/repository/mocks"
	"bidflow/internal/storage"
)

// recordingStarter moves started documents to PROCESSING like the state
// machine would.
type recordingStarter struct {
	mu      sync.Mutex
	docs    repository.DocumentRepository
	err     error
	started []string
}

func (s *recordingStarter) StartIngestion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.started = append(s.started, id)
	if s.docs != nil {
		_, err := s.docs.Transition(ctx, id, model.Transition{
			From: []model.DocumentStatus{model.StatusUploaded},
			To:   model.StatusProcessing,
		})
		return err
	}
	return nil
}

func newAttachmentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 " + r.URL.Query().Get("id")))
	})
	mux.HandleFunc("/files/sow.docx", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="Statement of Work.docx"`)
		_, _ = w.Write([]byte("docx"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type pipelineFixture struct {
	docs    *memory.Documents
	store   *storage.Memory
	starter *recordingStarter
	metrics *Metrics
	p       *Pipeline
}

func newPipelineFixture(t *testing.T, srv *httptest.Server) *pipelineFixture {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	docs := memory.NewDocuments()
	f := &pipelineFixture{
		docs:    docs,
		store:   storage.NewMemory("attachments"),
		starter: &recordingStarter{docs: docs},
		metrics: metrics,
	}
	f.p = NewPipeline(fetcher.New(srv.Client(), 1<<20, nil), f.store, docs, f.starter, metrics, nil)
	return f
}

var target = Target{OrgID: "org-1", ProjectID: "proj-1", OpportunityID: "opp-1"}

func TestImportAttachment_InfersPdfExtension(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)

	got, err := f.p.ImportAttachment(context.Background(), target, model.AttachmentRef{URL: srv.URL + "/download?id=123"})

	require.NoError(t, err)
	require.False(t, got.Reused)
	doc := got.Document
	assert.Equal(t, "download.pdf", doc.OriginalFileName)
	assert.Equal(t, "org_org-1/projects/proj-1/opportunities/opp-1/attachments/download.pdf", doc.StorageKey)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Equal(t, []string{doc.ID}, f.starter.started)

	rc, info, err := f.store.Get(context.Background(), doc.StorageKey)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.7 123", string(body))
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(len(body)), doc.Size)
}

func TestImportAttachment_PrefersDispositionName(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)

	got, err := f.p.ImportAttachment(context.Background(), target, model.AttachmentRef{
		URL:      srv.URL + "/files/sow.docx",
		Name:     "declared.bin",
		SourceID: "res-9",
	})

	require.NoError(t, err)
	assert.Equal(t, "Statement of Work.docx", got.Document.OriginalFileName)
	assert.True(t, strings.HasSuffix(got.Document.StorageKey, "/attachments/Statement_of_Work.docx"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", got.Document.MimeType)
	assert.Equal(t, "res-9", got.Document.SourceDocumentID)
}

func TestImportAttachment_ReimportReusesLiveDocument(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)
	ref := model.AttachmentRef{URL: srv.URL + "/download?id=1"}

	first, err := f.p.ImportAttachment(context.Background(), target, ref)
	require.NoError(t, err)
	second, err := f.p.ImportAttachment(context.Background(), target, ref)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Len(t, f.starter.started, 1)
	assert.Len(t, f.store.Keys(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.attachments.WithLabelValues("reused")))
}

func TestImportAttachment_CancelledDocumentIsReingested(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)
	ref := model.AttachmentRef{URL: srv.URL + "/download?id=1"}

	first, err := f.p.ImportAttachment(context.Background(), target, ref)
	require.NoError(t, err)
	_, err = f.docs.Transition(context.Background(), first.Document.ID, model.Transition{
		From: []model.DocumentStatus{model.StatusProcessing},
		To:   model.StatusCancelled,
	})
	require.NoError(t, err)

	second, err := f.p.ImportAttachment(context.Background(), target, ref)

	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
}

func TestImportAll_IsolatesFailures(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)

	count, outcomes := f.p.ImportAll(context.Background(), target, []model.AttachmentRef{
		{URL: srv.URL + "/download?id=1", Name: "a.pdf"},
		{URL: srv.URL + "/gone"},
		{URL: srv.URL + "/download?id=2", Name: "b.pdf"},
	})

	assert.Equal(t, 2, count)
	require.Len(t, outcomes, 3)
	assert.NotEmpty(t, outcomes[0].DocumentID)
	assert.Contains(t, outcomes[1].Error, "unexpected status 410")
	assert.Empty(t, outcomes[1].DocumentID)
	assert.NotEmpty(t, outcomes[2].DocumentID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.attachments.WithLabelValues("failed")))
}

type panickyFetcher struct {
	next Fetcher
	bad  string
}

func (f panickyFetcher) Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error) {
	if rawURL == f.bad {
		panic("malformed response")
	}
	return f.next.Fetch(ctx, rawURL)
}

func TestImportAll_RecoversFromAttachmentPanic(t *testing.T) {
	srv := newAttachmentServer(t)
	f := newPipelineFixture(t, srv)
	bad := srv.URL + "/download?id=2"
	f.p = NewPipeline(panickyFetcher{next: fetcher.New(srv.Client(), 1<<20, nil), bad: bad}, f.store, f.docs, f.starter, f.metrics, nil)

	var count int
	var outcomes []AttachmentOutcome
	require.NotPanics(t, func() {
		count, outcomes = f.p.ImportAll(context.Background(), target, []model.AttachmentRef{
			{URL: srv.URL + "/download?id=1", Name: "a.pdf"},
			{URL: bad, Name: "b.pdf"},
			{URL: srv.URL + "/download?id=3", Name: "c.pdf"},
		})
	})

	assert.Equal(t, 2, count)
	require.Len(t, outcomes, 3)
	assert.Contains(t, outcomes[1].Error, "panic: malformed response")
	assert.NotEmpty(t, outcomes[2].DocumentID)
}

func TestIngest_CreateFailureRollsBackObject(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory("attachments")
	repo := new(repoMocks.MockDocumentRepository)
	starter := &recordingStarter{}
	p := NewPipeline(nil, store, repo, starter, nil, nil)

	repo.On("FindLiveByStorageKey", ctx, "opp-1", mock.Anything).Return(nil, repository.ErrNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(d *model.IngestionDocument) bool {
		return d.Status == model.StatusUploaded && d.StorageKey != ""
	})).Return(nil, errors.New("unique violation"))

	_, err := p.Ingest(ctx, target, File{Name: "rfp.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")})

	assert.EqualError(t, err, "db save failed: unique violation")
	assert.Empty(t, store.Keys())
	assert.Empty(t, starter.started)
	repo.AssertExpectations(t)
}

func TestIngest_StartFailureReturnsDocument(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocuments()
	p := NewPipeline(nil, storage.NewMemory("b"), docs, &recordingStarter{err: errors.New("orchestrator down")}, nil, nil)

	got, err := p.Ingest(ctx, target, File{Name: "notes", ContentType: "text/plain", Size: 2, Body: strings.NewReader("hi")})

	assert.ErrorContains(t, err, "start ingestion: orchestrator down")
	require.NotNil(t, got)
	assert.Equal(t, "notes", got.Document.OriginalFileName)
	assert.True(t, strings.HasSuffix(got.Document.StorageKey, "/notes.txt"))
}

func TestIngest_RequiresBody(t *testing.T) {
	p := NewPipeline(nil, storage.NewMemory("b"), memory.NewDocuments(), &recordingStarter{}, nil, nil)
	_, err := p.Ingest(context.Background(), target, File{Name: "x.pdf"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
