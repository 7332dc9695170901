package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

func newDoc(id string, status model.DocumentStatus) *model.IngestionDocument {
	return &model.IngestionDocument{
		ID:            id,
		OrgID:         "org-1",
		ProjectID:     "proj-1",
		OpportunityID: "opp-1",
		StorageKey:    "key/" + id,
		Status:        status,
	}
}

func TestDocuments_TransitionPreconditions(t *testing.T) {
	ctx := context.Background()
	repo := NewDocuments()
	_, err := repo.Create(ctx, newDoc("d1", model.StatusProcessing))
	require.NoError(t, err)

	ok, err := repo.Transition(ctx, "d1", model.Transition{
		From:        []model.DocumentStatus{model.StatusProcessing},
		To:          model.StatusAwaitingOCR,
		ResumeToken: "tok",
	})
	require.NoError(t, err)
	require.True(t, ok)

	// A second suspend loses: the document is no longer PROCESSING.
	ok, err = repo.Transition(ctx, "d1", model.Transition{
		From:        []model.DocumentStatus{model.StatusProcessing},
		To:          model.StatusAwaitingOCR,
		ResumeToken: "tok-2",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, "d1", model.Transition{
		From:        []model.DocumentStatus{model.StatusAwaitingOCR},
		To:          model.StatusTextReady,
		ExpectToken: "wrong",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, "d1", model.Transition{
		From:        []model.DocumentStatus{model.StatusAwaitingOCR},
		To:          model.StatusTextReady,
		ExpectToken: "tok",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := repo.FindByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusTextReady, d.Status)
	assert.Empty(t, d.ResumeToken)

	ok, err = repo.Transition(ctx, "missing", model.Transition{
		From: model.NonTerminalStatuses,
		To:   model.StatusFailed,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Transition(ctx, "d1", model.Transition{
		From: []model.DocumentStatus{model.StatusTextReady},
		To:   model.StatusAwaitingOCR,
	})
	assert.Error(t, err)
}

func TestDocuments_CreateRejectsTokenMismatch(t *testing.T) {
	repo := NewDocuments()
	_, err := repo.Create(context.Background(), newDoc("d1", model.StatusAwaitingOCR))
	assert.Error(t, err)
}

func TestDocuments_FindLiveByStorageKey(t *testing.T) {
	ctx := context.Background()
	repo := NewDocuments()

	failed := newDoc("old", model.StatusFailed)
	failed.StorageKey = "shared"
	failed.CreatedAt = time.Now().Add(-time.Hour)
	_, err := repo.Create(ctx, failed)
	require.NoError(t, err)

	_, err = repo.FindLiveByStorageKey(ctx, "opp-1", "shared")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	live := newDoc("new", model.StatusProcessing)
	live.StorageKey = "shared"
	_, err = repo.Create(ctx, live)
	require.NoError(t, err)

	got, err := repo.FindLiveByStorageKey(ctx, "opp-1", "shared")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}

func TestDocuments_ListPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewDocuments()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d := newDoc(fmt.Sprintf("d%d", i), model.StatusUploaded)
		d.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}
	other := newDoc("x", model.StatusUploaded)
	other.ProjectID = "proj-2"
	_, err := repo.Create(ctx, other)
	require.NoError(t, err)

	res, err := repo.List(ctx, repository.PageQuery{ProjectID: "proj-1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "d3", res.Items[0].ID)
	assert.Equal(t, "d2", res.Items[1].ID)

	res, err = repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 50})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Total)
	assert.Empty(t, res.Items)
}

// Random concurrent transitions never leave a token on a non-waiting
// document or a waiting document without one.
func TestDocuments_TokenInvariantUnderConcurrentTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewDocuments()
	const docs = 20
	for i := 0; i < docs; i++ {
		_, err := repo.Create(ctx, newDoc(fmt.Sprintf("d%d", i), model.StatusUploaded))
		require.NoError(t, err)
	}

	transitions := []model.Transition{
		{From: []model.DocumentStatus{model.StatusUploaded}, To: model.StatusProcessing},
		{From: []model.DocumentStatus{model.StatusProcessing}, To: model.StatusAwaitingOCR, ResumeToken: "t"},
		{From: []model.DocumentStatus{model.StatusAwaitingOCR}, To: model.StatusTextReady, ExpectToken: "t"},
		{From: []model.DocumentStatus{model.StatusTextReady}, To: model.StatusProcessed},
		{From: model.NonTerminalStatuses, To: model.StatusFailed, ErrorMessage: "boom"},
		{From: model.CancellableStatuses, To: model.StatusCancelled},
		{From: []model.DocumentStatus{model.StatusCancelled}, To: model.StatusUploaded},
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(seed, seed+1))
			for i := 0; i < 500; i++ {
				id := fmt.Sprintf("d%d", r.IntN(docs))
				tr := transitions[r.IntN(len(transitions))]
				_, err := repo.Transition(ctx, id, tr)
				assert.NoError(t, err)
			}
		}(uint64(w))
	}
	wg.Wait()

	for i := 0; i < docs; i++ {
		d, err := repo.FindByID(ctx, fmt.Sprintf("d%d", i))
		require.NoError(t, err)
		assert.Equal(t, d.Status == model.StatusAwaitingOCR, d.ResumeToken != "", "document %s in %s", d.ID, d.Status)
		if d.Status != model.StatusFailed {
			assert.Empty(t, d.ErrorMessage)
		}
	}
}
