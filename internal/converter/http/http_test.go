package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/convq/internal/converter"
	converterhttp "github.com/slok/convq/internal/converter/http"
	"github.com/slok/convq/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *converterhttp.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := converterhttp.NewClient(converterhttp.ClientConfig{
		BaseURL:      srv.URL + "/",
		NewRequestID: func() string { return "req-1" },
	})
	require.NoError(t, err)
	return c
}

func pdfJob() model.Job {
	return model.Job{ID: "j1", Name: "a.pdf", Kind: model.JobKindPDF, Content: model.BytesContent("%PDF-1.4 test")}
}

func TestClientStartConversion(t *testing.T) {
	tests := map[string]struct {
		status   int
		body     string
		expID    string
		expErr   bool
		expErrAs *converter.BackendError
	}{
		"A successful start should return the conversion id.": {
			status: http.StatusOK,
			body:   `{"success": true, "conversion_id": "c-1"}`,
			expID:  "c-1",
		},
		"An unsuccessful answer should return the backend message.": {
			status:   http.StatusOK,
			body:     `{"success": false, "error": "bad pdf"}`,
			expErr:   true,
			expErrAs: &converter.BackendError{Message: "bad pdf"},
		},
		"A success without conversion id should fail.": {
			status:   http.StatusOK,
			body:     `{"success": true}`,
			expErr:   true,
			expErrAs: &converter.BackendError{},
		},
		"A non 2xx status should fail with the status code.": {
			status:   http.StatusInternalServerError,
			body:     `{"error": "Server error: boom", "success": false}`,
			expErr:   true,
			expErrAs: &converter.BackendError{StatusCode: 500},
		},
		"A malformed body should fail.": {
			status: http.StatusOK,
			body:   `not json`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var gotField, gotFilename, gotContent, gotReqID string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(http.MethodPost, r.Method)
				assert.Equal("/convert", r.URL.Path)
				gotReqID = r.Header.Get("X-Request-Id")

				f, fh, err := r.FormFile("pdf")
				if err == nil {
					gotField = "pdf"
					gotFilename = fh.Filename
					b, _ := io.ReadAll(f)
					gotContent = string(b)
				}

				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}))

			id, err := c.StartConversion(context.Background(), pdfJob())

			assert.Equal("pdf", gotField)
			assert.Equal("a.pdf", gotFilename)
			assert.Equal("%PDF-1.4 test", gotContent)
			assert.Equal("req-1", gotReqID)

			if test.expErr {
				require.Error(err)
				if test.expErrAs != nil {
					var berr *converter.BackendError
					require.True(errors.As(err, &berr))
					assert.Equal(test.expErrAs, berr)
				}
			} else {
				require.NoError(err)
				assert.Equal(test.expID, id)
			}
		})
	}
}

func TestClientConvertWord(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/convert-word-to-markdown", r.URL.Path)
		_, fh, err := r.FormFile("document")
		if assert.NoError(err) {
			assert.Equal("b.docx", fh.Filename)
		}

		_, _ = w.Write([]byte(`{
			"success": true,
			"markdown": "# B",
			"filename": "b.docx",
			"fileSize": "12.0 KB",
			"pageCount": null,
			"timestamp": "2025-05-01T10:20:30.123456"
		}`))
	}))

	job := model.Job{ID: "j2", Name: "b.docx", Kind: model.JobKindDOCX, Content: model.BytesContent("PK")}
	res, err := c.ConvertWord(context.Background(), job)
	require.NoError(err)

	assert.Equal("# B", res.Markdown)
	assert.Equal("b.docx", res.Filename)
	assert.Equal("12.0 KB", res.FileSize)
	assert.Nil(res.PageCount)
	assert.Equal(time.Date(2025, 5, 1, 10, 20, 30, 123456000, time.Local), res.Timestamp)
}

func TestClientConvertWordWithoutMarkdownFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "markdown": ""}`))
	}))

	job := model.Job{ID: "j2", Name: "b.docx", Kind: model.JobKindDOCX, Content: model.BytesContent("PK")}
	_, err := c.ConvertWord(context.Background(), job)

	var berr *converter.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Empty(t, berr.Message)
}

func TestClientProgress(t *testing.T) {
	tests := map[string]struct {
		status    int
		body      string
		expReport *model.ProgressReport
		expErr    bool
	}{
		"A processing report should be decoded.": {
			status: http.StatusOK,
			body:   `{"status": "processing", "progress": 42.4, "stage": "Processing page 2 of 5...", "total_pages": 5, "current_page": 2}`,
			expReport: &model.ProgressReport{
				Status:      model.ProgressStatusProcessing,
				Progress:    42,
				Stage:       "Processing page 2 of 5...",
				TotalPages:  5,
				CurrentPage: 2,
			},
		},
		"A completed report should carry the result.": {
			status: http.StatusOK,
			body: `{"status": "completed", "progress": 100, "stage": "Conversion complete!", "result": {
				"markdown": "# A", "filename": "a.pdf", "fileSize": "1.2 MB", "pageCount": 3,
				"timestamp": "2025-05-01T10:20:30Z", "success": true}}`,
			expReport: &model.ProgressReport{
				Status:   model.ProgressStatusCompleted,
				Progress: 100,
				Stage:    "Conversion complete!",
				Result: &model.ConversionResult{
					Markdown:  "# A",
					Filename:  "a.pdf",
					FileSize:  "1.2 MB",
					PageCount: intPtr(3),
					Timestamp: time.Date(2025, 5, 1, 10, 20, 30, 0, time.UTC),
				},
			},
		},
		"An error report should carry the backend message.": {
			status:    http.StatusOK,
			body:      `{"status": "error", "error": "corrupt file"}`,
			expReport: &model.ProgressReport{Status: model.ProgressStatusError, Error: "corrupt file"},
		},
		"A missing conversion should fail.": {
			status: http.StatusNotFound,
			body:   `{"error": "Conversion not found"}`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(http.MethodGet, r.Method)
				assert.Equal("/progress/c-1", r.URL.Path)
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}))

			got, err := c.Progress(context.Background(), "c-1")
			if test.expErr {
				assert.Error(err)
				return
			}
			require.NoError(err)

			// Compare instants, not locations.
			if test.expReport.Result != nil {
				require.NotNil(got.Result)
				assert.True(test.expReport.Result.Timestamp.Equal(got.Result.Timestamp))
				got.Result.Timestamp = test.expReport.Result.Timestamp
			}
			assert.Equal(test.expReport, got)
		})
	}
}

func TestClientMarkdownToWord(t *testing.T) {
	tests := map[string]struct {
		disposition string
		filename    string
		expFilename string
		expSent     string
	}{
		"The filename should come from the content disposition.": {
			disposition: `attachment; filename="notes_20250501_102030.docx"`,
			filename:    "notes",
			expFilename: "notes_20250501_102030.docx",
			expSent:     "notes",
		},
		"A missing content disposition should use the default name.": {
			filename:    "notes",
			expFilename: "document.docx",
			expSent:     "notes",
		},
		"An empty filename should send the default base name.": {
			disposition: `attachment; filename=out.docx`,
			expFilename: "out.docx",
			expSent:     "markdown-document",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			var got struct {
				Markdown string `json:"markdown"`
				Filename string `json:"filename"`
			}
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal("/convert-markdown-to-word", r.URL.Path)
				assert.Equal("application/json", r.Header.Get("Content-Type"))
				assert.NoError(json.NewDecoder(r.Body).Decode(&got))

				if test.disposition != "" {
					w.Header().Set("Content-Disposition", test.disposition)
				}
				_, _ = w.Write([]byte("PK\x03\x04docx"))
			}))

			doc, err := c.MarkdownToWord(context.Background(), "# Title", test.filename)
			require.NoError(err)

			assert.Equal("# Title", got.Markdown)
			assert.Equal(test.expSent, got.Filename)
			assert.Equal(test.expFilename, doc.Filename)
			assert.Equal([]byte("PK\x03\x04docx"), doc.Data)
		})
	}
}

func TestClientMarkdownToWordEmptyMarkdownFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := c.MarkdownToWord(context.Background(), "  \n", "x")
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "processing"}`))
	}))
	defer srv.Close()

	c, err := converterhttp.NewClient(converterhttp.ClientConfig{BaseURL: srv.URL, RequestsPerSecond: 10})
	require.NoError(t, err)

	start := time.Now()
	for range 3 {
		_, err := c.Progress(context.Background(), "c-1")
		require.NoError(t, err)
	}

	// Burst of 10 lets the first calls through, a cancelled context fails fast.
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Progress(ctx, "c-1")
	assert.Error(t, err)
}

func TestNewClientInvalidBaseURL(t *testing.T) {
	_, err := converterhttp.NewClient(converterhttp.ClientConfig{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestFilenameFromContentDisposition(t *testing.T) {
	tests := map[string]struct {
		header string
		exp    string
	}{
		"Quoted filename":           {header: `attachment; filename="a b.docx"`, exp: "a b.docx"},
		"Unquoted filename":         {header: `attachment; filename=a.docx`, exp: "a.docx"},
		"No filename parameter":     {header: `attachment`, exp: "document.docx"},
		"Empty header":              {header: ``, exp: "document.docx"},
		"Malformed header":          {header: `;;;`, exp: "document.docx"},
		"Paths should be discarded": {header: `attachment; filename="../../etc/x.docx"`, exp: "x.docx"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, converterhttp.FilenameFromContentDisposition(test.header, "document.docx"))
		})
	}
}

func intPtr(i int) *int { return &i }
