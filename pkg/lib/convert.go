package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/convq/internal/app/convert"
	"github.com/slok/convq/internal/app/md2word"
	"github.com/slok/convq/internal/engine"
	"github.com/slok/convq/internal/model"
)

// ConvertOpts are the optional settings of a conversion batch.
type ConvertOpts struct {
	// Retries is the number of times failed conversions are queued again.
	Retries int
	// OnStatus is called on every job status change. It must not block.
	OnStatus func(JobStatus)
}

// Convert converts the documents one at a time in order and returns the final
// status of every job. Completed conversions are added to the history.
//
// Returns [ErrNotValid] if a document has neither path nor data.
func (c *Client) Convert(ctx context.Context, docs []Document, opts *ConvertOpts) ([]JobStatus, error) {
	if opts == nil {
		opts = &ConvertOpts{}
	}

	internalDocs := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		doc, err := toInternalDocument(d)
		if err != nil {
			return nil, mapError(err)
		}
		internalDocs = append(internalDocs, doc)
	}

	select {
	case c.convertLock <- struct{}{}:
		defer func() { <-c.convertLock }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	onChange := func(model.StatusRecord) {}
	if opts.OnStatus != nil {
		onChange = func(r model.StatusRecord) { opts.OnStatus(fromInternalStatus(r)) }
	}

	e, err := engine.New(engine.Config{
		Client:       c.converter,
		History:      c.history,
		PollInterval: c.pollInterval,
		OnChange:     onChange,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := e.Run(loopCtx); err != nil {
			c.logger.Errorf("conversion engine failed: %s", err)
		}
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	svc, err := convert.NewService(convert.ServiceConfig{Engine: e, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, convert.Request{Documents: internalDocs, Retries: opts.Retries})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalStatusList(resp.Records), nil
}

// MarkdownToWord renders markdown as a Word document. The filename is sent
// without path or extension.
//
// Returns [ErrNotValid] if the markdown is empty.
func (c *Client) MarkdownToWord(ctx context.Context, markdown, filename string) (*WordDocument, error) {
	svc, err := md2word.NewService(md2word.ServiceConfig{Client: c.converter, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	doc, err := svc.Run(ctx, md2word.Request{Markdown: markdown, Filename: filename})
	if err != nil {
		return nil, mapError(err)
	}

	return &WordDocument{Filename: doc.Filename, Data: doc.Data}, nil
}

func toInternalDocument(d Document) (model.Document, error) {
	switch {
	case d.Data != nil:
		if d.Name == "" {
			return model.Document{}, fmt.Errorf("in-memory documents need a name: %w", model.ErrNotValid)
		}
		return model.Document{
			Name:        d.Name,
			Size:        int64(len(d.Data)),
			ContentType: d.ContentType,
			Content:     model.BytesContent(d.Data),
		}, nil

	case d.Path != "":
		info, err := os.Stat(d.Path)
		if err != nil {
			return model.Document{}, fmt.Errorf("could not stat %s: %w", d.Path, err)
		}
		name := d.Name
		if name == "" {
			name = filepath.Base(d.Path)
		}
		return model.Document{
			Name:        name,
			Size:        info.Size(),
			ContentType: d.ContentType,
			Content:     model.FileContent(d.Path),
		}, nil
	}

	return model.Document{}, fmt.Errorf("document needs a path or data: %w", model.ErrNotValid)
}
