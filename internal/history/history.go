// Package history keeps the bounded, persisted list of completed conversions.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/storage"
)

const (
	// DefaultLimit is the maximum number of entries kept.
	DefaultLimit = 50
	// DefaultKey is the storage key of the serialized history.
	DefaultKey = "convq-history"
)

// StoreConfig is the configuration for the history store.
type StoreConfig struct {
	Repository storage.Repository
	Limit      int
	Key        string
	Now        func() time.Time
	Logger     log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "history.Store"})
	return nil
}

// Store holds the history entries, newest first.
type Store struct {
	mu      sync.RWMutex
	entries []model.HistoryEntry
	lastID  int64

	repo   storage.Repository
	limit  int
	key    string
	now    func() time.Time
	logger log.Logger
}

// NewStore returns a store loaded from the repository. Stored data that can't
// be decoded is discarded.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Store{
		repo:   cfg.Repository,
		limit:  cfg.Limit,
		key:    cfg.Key,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.repo.GetValue(ctx, s.key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Debugf("No history found")
			return nil
		}
		return fmt.Errorf("could not load history: %w", err)
	}

	var stored []entryJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warningf("Stored history is not valid, resetting it: %s", err)
		return nil
	}

	entries := make([]model.HistoryEntry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, e.toModel())
		s.lastID = max(s.lastID, e.ID)
	}
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = entries

	s.logger.Debugf("Loaded %d history entries", len(entries))
	return nil
}

// persist stores entries, it must be called with the lock held.
func (s *Store) persist(ctx context.Context, entries []model.HistoryEntry) error {
	stored := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		stored = append(stored, newEntryJSON(e))
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("could not marshal history: %w", err)
	}
	if err := s.repo.SetValue(ctx, s.key, data); err != nil {
		return fmt.Errorf("could not store history: %w", err)
	}
	return nil
}

// Add prepends a new entry for a successful conversion and drops the oldest
// ones over the limit. A failure to persist is logged, the entry is kept in memory.
func (s *Store) Add(ctx context.Context, res model.ConversionResult) (model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := max(now.UnixMilli(), s.lastID+1)
	s.lastID = id

	ts := res.Timestamp
	if ts.IsZero() {
		ts = now
	}

	e := model.HistoryEntry{
		ID:        id,
		Filename:  res.Filename,
		Markdown:  res.Markdown,
		FileSize:  res.FileSize,
		PageCount: res.PageCount,
		Timestamp: ts,
	}

	entries := make([]model.HistoryEntry, 0, min(len(s.entries)+1, s.limit))
	entries = append(entries, e)
	entries = append(entries, s.entries...)
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = entries

	if err := s.persist(ctx, entries); err != nil {
		s.logger.Errorf("%s", err)
	}

	return e, nil
}

// Remove deletes one entry. The entry is kept when it can't be deleted from storage.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("history entry %d: %w", id, model.ErrNotFound)
	}

	entries := append(s.entries[:idx:idx], s.entries[idx+1:]...)
	if err := s.persist(ctx, entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// Clear deletes every entry and the stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteValue(ctx, s.key); err != nil {
		return fmt.Errorf("could not delete history: %w", err)
	}
	s.entries = nil
	return nil
}

// List returns all the entries, newest first.
func (s *Store) List() []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.HistoryEntry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns one entry.
func (s *Store) Get(id int64) (*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			eCopy := e
			return &eCopy, nil
		}
	}
	return nil, fmt.Errorf("history entry %d: %w", id, model.ErrNotFound)
}

// Search returns the entries whose filename or markdown contain term, ignoring
// case. An empty term matches everything.
func (s *Store) Search(term string) []model.HistoryEntry {
	return Filter(s.List(), term)
}

// Filter is Search over an arbitrary list of entries.
func Filter(entries []model.HistoryEntry, term string) []model.HistoryEntry {
	if term == "" {
		return entries
	}

	term = strings.ToLower(term)
	var found []model.HistoryEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Filename), term) || strings.Contains(strings.ToLower(e.Markdown), term) {
			found = append(found, e)
		}
	}
	return found
}

type entryJSON struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Markdown  string `json:"markdown"`
	FileSize  string `json:"fileSize"`
	PageCount *int   `json:"pageCount"`
	Timestamp string `json:"timestamp"`
}

func newEntryJSON(e model.HistoryEntry) entryJSON {
	return entryJSON{
		ID:        e.ID,
		Filename:  e.Filename,
		Markdown:  e.Markdown,
		FileSize:  e.FileSize,
		PageCount: e.PageCount,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	}
}

func (e entryJSON) toModel() model.HistoryEntry {
	return model.HistoryEntry{
		ID:        e.ID,
		Filename:  e.Filename,
		Markdown:  e.Markdown,
		FileSize:  e.FileSize,
		PageCount: e.PageCount,
		Timestamp: model.ParseTimestamp(e.Timestamp),
	}
}
