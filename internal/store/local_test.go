package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tldr-buffer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(i int) *model.Document {
	return &model.Document{
		ID:        fmt.Sprintf("doc-%03d", i),
		URL:       fmt.Sprintf("https://example.com/%d", i),
		Title:     fmt.Sprintf("Article %d", i),
		Domain:    "example.com",
		RawText:   "Body text",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func newLocal(t *testing.T, opts ...Option) *LocalStore {
	t.Helper()
	s, err := OpenLocal("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestLocalStore_RetentionCap(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	for i := 0; i < 201; i++ {
		require.NoError(t, s.Save(ctx, newDoc(i)))
	}

	docs, err := s.List(ctx, 200)
	require.NoError(t, err)
	require.Len(t, docs, 200)
	assert.Equal(t, "doc-200", docs[0].ID)
	assert.Equal(t, "doc-001", docs[199].ID)

	_, found, err := s.Get(ctx, "doc-000")
	require.NoError(t, err)
	assert.False(t, found, "oldest document is evicted with its index entry")
}

func TestLocalStore_SaveMovesToFront(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, newDoc(i)))
	}

	updated := newDoc(0)
	updated.Title = "Edited"
	require.NoError(t, s.Save(ctx, updated))

	docs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-000", "doc-002", "doc-001"}, ids(docs))
	assert.Equal(t, "Edited", docs[0].Title)
}

func TestLocalStore_ListDefaultLimit(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, s.Save(ctx, newDoc(i)))
	}
	docs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, docs, DefaultListLimit)
}

func TestLocalStore_GetMissing(t *testing.T) {
	s := newLocal(t)
	doc, found, err := s.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, doc)
}

func TestLocalStore_DeleteIsIdempotent(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, newDoc(1)))
	require.NoError(t, s.Save(ctx, newDoc(2)))

	require.NoError(t, s.Delete(ctx, "doc-001"))
	require.NoError(t, s.Delete(ctx, "doc-001"))
	require.NoError(t, s.Delete(ctx, "never-saved"))

	docs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-002"}, ids(docs))
}

func TestLocalStore_Clear(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, newDoc(i)))
	}
	require.NoError(t, s.Clear(ctx))

	docs, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, found, err := s.Get(ctx, "doc-003")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, newDoc(9)))
	docs, err = s.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-009"}, ids(docs))
}

func TestLocalStore_RejectsEmptyID(t *testing.T) {
	s := newLocal(t)
	err := s.Save(context.Background(), &model.Document{})
	assert.True(t, model.IsKind(err, model.KindStorage))
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestLocalStore_Queue(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, "doc-001"))

	id, err := s.PopQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-001", id)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = s.PopQueue(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalStore_OnDiskSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLocal(dir, WithCap(5), WithGCInterval(10*time.Millisecond))
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Save(ctx, newDoc(i)))
	}
	// Let the collector tick at least once.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	s, err = OpenLocal(dir, WithCap(5))
	require.NoError(t, err)
	defer s.Close()

	docs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-003", docs[0].ID)
	assert.Equal(t, "doc-001", docs[2].ID)
}

func TestLocalStore_UpdateOnlyExisting(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	ok, err := s.Update(ctx, newDoc(1))
	require.NoError(t, err)
	assert.False(t, ok, "update never creates a document")
	_, found, _ := s.Get(ctx, "doc-001")
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, newDoc(1)))
	require.NoError(t, s.Save(ctx, newDoc(2)))
	edited := newDoc(1)
	edited.SummaryError = "rate limited"
	ok, err = s.Update(ctx, edited)
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-002", docs[0].ID, "update keeps index position")
	assert.Equal(t, "rate limited", docs[1].SummaryError)
}
