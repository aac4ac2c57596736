package history_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/convq/internal/history"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/storage/memory"
	"github.com/slok/convq/internal/storage/storagemock"
)

var t0 = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*history.Store, *memory.Repository) {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	s, err := history.NewStore(context.Background(), history.StoreConfig{
		Repository: repo,
		Now:        func() time.Time { return t0 },
	})
	require.NoError(t, err)
	return s, repo
}

func result(name string) model.ConversionResult {
	return model.ConversionResult{Markdown: "# " + name, Filename: name, FileSize: "1.0 KB", Timestamp: t0}
}

func TestStoreAddIsBoundedAndNewestFirst(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s, _ := newStore(t)
	for i := range 51 {
		_, err := s.Add(ctx, result(fmt.Sprintf("doc-%d.pdf", i)))
		require.NoError(err)
	}

	entries := s.List()
	require.Len(entries, history.DefaultLimit)
	assert.Equal("doc-50.pdf", entries[0].Filename)
	assert.Equal("doc-1.pdf", entries[len(entries)-1].Filename, "the oldest entry should be evicted")
}

func TestStoreIDsAreStrictlyIncreasing(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// The clock doesn't move.
	s, _ := newStore(t)
	e1, _ := s.Add(ctx, result("a.pdf"))
	e2, _ := s.Add(ctx, result("b.pdf"))
	e3, _ := s.Add(ctx, result("c.pdf"))

	assert.Equal(t0.UnixMilli(), e1.ID)
	assert.Greater(e2.ID, e1.ID)
	assert.Greater(e3.ID, e2.ID)
}

func TestStoreAddWithoutTimestampUsesNow(t *testing.T) {
	s, _ := newStore(t)

	res := result("a.pdf")
	res.Timestamp = time.Time{}
	e, err := s.Add(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, e.Timestamp.Equal(t0))
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	pages := 3
	s1, repo := newStore(t)
	res := result("a.pdf")
	res.PageCount = &pages
	e, err := s1.Add(ctx, res)
	require.NoError(err)
	_, err = s1.Add(ctx, result("b.docx"))
	require.NoError(err)

	s2, err := history.NewStore(ctx, history.StoreConfig{Repository: repo, Now: func() time.Time { return t0 }})
	require.NoError(err)

	entries := s2.List()
	require.Len(entries, 2)
	assert.Equal("b.docx", entries[0].Filename)
	got, err := s2.Get(e.ID)
	require.NoError(err)
	assert.Equal(3, *got.PageCount)
	assert.True(got.Timestamp.Equal(t0))

	// New ids keep increasing after a reload.
	e3, err := s2.Add(ctx, result("c.pdf"))
	require.NoError(err)
	assert.Greater(e3.ID, entries[0].ID)
}

func TestStoreLoad(t *testing.T) {
	tests := map[string]struct {
		stored      string
		expEntries  int
		expFilename string
	}{
		"Corrupt data should reset to an empty history.": {
			stored:     `{not json`,
			expEntries: 0,
		},
		"Non array data should reset to an empty history.": {
			stored:     `{"id": 1}`,
			expEntries: 0,
		},
		"Naive timestamps should be accepted.": {
			stored:      `[{"id": 1714557600000, "filename": "old.pdf", "markdown": "# old", "fileSize": "2.0 MB", "pageCount": 2, "timestamp": "2024-05-01T10:00:00.123456"}]`,
			expEntries:  1,
			expFilename: "old.pdf",
		},
		"Null data should load an empty history.": {
			stored:     `null`,
			expEntries: 0,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			require.NoError(repo.SetValue(ctx, history.DefaultKey, []byte(test.stored)))

			s, err := history.NewStore(ctx, history.StoreConfig{Repository: repo})
			require.NoError(err)

			entries := s.List()
			require.Len(entries, test.expEntries)
			if test.expFilename != "" {
				assert.Equal(t, test.expFilename, entries[0].Filename)
				assert.False(t, entries[0].Timestamp.IsZero())
			}
		})
	}
}

func TestStoreLoadRepositoryErrorFails(t *testing.T) {
	repo := storagemock.NewMockRepository(t)
	repo.On("GetValue", mock.Anything, history.DefaultKey).Once().Return(nil, errors.New("disk on fire"))

	_, err := history.NewStore(context.Background(), history.StoreConfig{Repository: repo})
	assert.Error(t, err)
}

func TestStoreAddPersistFailureKeepsEntry(t *testing.T) {
	repo := storagemock.NewMockRepository(t)
	repo.On("GetValue", mock.Anything, history.DefaultKey).Once().Return(nil, model.ErrNotFound)
	repo.On("SetValue", mock.Anything, history.DefaultKey, mock.Anything).Once().Return(errors.New("read only"))

	s, err := history.NewStore(context.Background(), history.StoreConfig{Repository: repo})
	require.NoError(t, err)

	_, err = s.Add(context.Background(), result("a.pdf"))
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestStoreStorageFailureKeepsEntries(t *testing.T) {
	tests := map[string]struct {
		mock   func(m *storagemock.MockRepository)
		mutate func(s *history.Store, id int64) error
	}{
		"A failed remove should keep the entry.": {
			mock: func(m *storagemock.MockRepository) {
				m.On("SetValue", mock.Anything, history.DefaultKey, mock.Anything).Once().Return(errors.New("read only"))
			},
			mutate: func(s *history.Store, id int64) error { return s.Remove(context.Background(), id) },
		},
		"A failed clear should keep every entry.": {
			mock: func(m *storagemock.MockRepository) {
				m.On("DeleteValue", mock.Anything, history.DefaultKey).Once().Return(errors.New("read only"))
			},
			mutate: func(s *history.Store, _ int64) error { return s.Clear(context.Background()) },
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := storagemock.NewMockRepository(t)
			repo.On("GetValue", mock.Anything, history.DefaultKey).Once().Return(nil, model.ErrNotFound)
			repo.On("SetValue", mock.Anything, history.DefaultKey, mock.Anything).Once().Return(nil)

			s, err := history.NewStore(context.Background(), history.StoreConfig{Repository: repo})
			require.NoError(err)
			e, err := s.Add(context.Background(), result("a.pdf"))
			require.NoError(err)

			test.mock(repo)
			assert.Error(test.mutate(s, e.ID))

			assert.Equal(1, s.Len())
			_, err = s.Get(e.ID)
			assert.NoError(err)
		})
	}
}

func TestStoreRemoveAndClear(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s, repo := newStore(t)
	e1, _ := s.Add(ctx, result("a.pdf"))
	e2, _ := s.Add(ctx, result("b.pdf"))

	require.NoError(s.Remove(ctx, e1.ID))
	assert.ErrorIs(s.Remove(ctx, e1.ID), model.ErrNotFound)
	_, err := s.Get(e1.ID)
	assert.ErrorIs(err, model.ErrNotFound)
	_, err = s.Get(e2.ID)
	assert.NoError(err)

	require.NoError(s.Clear(ctx))
	assert.Equal(0, s.Len())
	_, err = repo.GetValue(ctx, history.DefaultKey)
	assert.ErrorIs(err, model.ErrNotFound)

	// Clear then convert leaves exactly one entry.
	_, err = s.Add(ctx, result("c.pdf"))
	require.NoError(err)
	assert.Equal(1, s.Len())
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, _ = s.Add(ctx, model.ConversionResult{Filename: "Invoice.pdf", Markdown: "# Total due"})
	_, _ = s.Add(ctx, model.ConversionResult{Filename: "notes.docx", Markdown: "meeting about the INVOICE"})
	_, _ = s.Add(ctx, model.ConversionResult{Filename: "cv.pdf", Markdown: "# Jane"})

	tests := map[string]struct {
		term     string
		expFiles []string
	}{
		"An empty term should match everything.": {
			term:     "",
			expFiles: []string{"cv.pdf", "notes.docx", "Invoice.pdf"},
		},
		"Search should ignore case on filename and markdown.": {
			term:     "invoice",
			expFiles: []string{"notes.docx", "Invoice.pdf"},
		},
		"Search on markdown only.": {
			term:     "jane",
			expFiles: []string{"cv.pdf"},
		},
		"No matches.": {
			term: "zzz",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var got []string
			for _, e := range s.Search(test.term) {
				got = append(got, e.Filename)
			}
			assert.Equal(t, test.expFiles, got)
		})
	}
}

func TestNewStoreRequiresRepository(t *testing.T) {
	_, err := history.NewStore(context.Background(), history.StoreConfig{})
	assert.Error(t, err)
}
