package lib

import (
	"context"
	"fmt"

	"github.com/slok/convq/internal/app/historyclear"
	"github.com/slok/convq/internal/app/historylist"
	"github.com/slok/convq/internal/app/historyremove"
	"github.com/slok/convq/internal/app/historyshow"
)

// HistoryOpts filters the history listing.
type HistoryOpts struct {
	// Search matches the filename or the markdown, case insensitive.
	Search string
	// Limit caps the number of entries, 0 returns all.
	Limit int
}

// History returns the converted documents, newest first.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]HistoryEntry, error) {
	if opts == nil {
		opts = &HistoryOpts{}
	}

	svc, err := historylist.NewService(historylist.ServiceConfig{History: c.history, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.Run(historylist.Request{Search: opts.Search, Limit: opts.Limit})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalHistoryList(entries), nil
}

// GetHistoryEntry returns one converted document.
//
// Returns [ErrNotFound] if the entry does not exist.
func (c *Client) GetHistoryEntry(ctx context.Context, id int64) (*HistoryEntry, error) {
	svc, err := historyshow.NewService(historyshow.ServiceConfig{History: c.history, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	e, err := svc.Run(historyshow.Request{ID: id})
	if err != nil {
		return nil, mapError(err)
	}

	entry := fromInternalHistoryEntry(*e)
	return &entry, nil
}

// DeleteHistory removes history entries.
//
// Returns [ErrNotFound] if an entry does not exist, the previous ones are removed.
func (c *Client) DeleteHistory(ctx context.Context, ids ...int64) error {
	svc, err := historyremove.NewService(historyremove.ServiceConfig{History: c.history, Logger: c.logger})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	return mapError(svc.Run(ctx, historyremove.Request{IDs: ids}))
}

// ClearHistory removes every history entry and returns how many were removed.
func (c *Client) ClearHistory(ctx context.Context) (int, error) {
	svc, err := historyclear.NewService(historyclear.ServiceConfig{History: c.history, Logger: c.logger})
	if err != nil {
		return 0, fmt.Errorf("could not create service: %w", err)
	}

	n, err := svc.Run(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
