package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Backend is an in-process conversion backend speaking the real HTTP protocol.
// Files with "corrupt" in their name fail to convert.
type Backend struct {
	*httptest.Server

	mu          sync.Mutex
	conversions map[string]*backendConversion
	nextID      int
	requests    map[string]int
}

type backendConversion struct {
	filename string
	polls    int
}

// NewBackend starts a backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		conversions: map[string]*backendConversion{},
		requests:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert", b.convert)
	mux.HandleFunc("POST /convert-word-to-markdown", b.convertWord)
	mux.HandleFunc("GET /progress/{id}", b.progress)
	mux.HandleFunc("POST /convert-markdown-to-word", b.markdownToWord)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)

	return b
}

// Requests returns the number of requests received by a path pattern.
func (b *Backend) Requests(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[pattern]
}

func (b *Backend) count(pattern string) {
	b.mu.Lock()
	b.requests[pattern]++
	b.mu.Unlock()
}

func (b *Backend) convert(w http.ResponseWriter, r *http.Request) {
	b.count("/convert")

	name, err := uploadedFilename(r, "pdf")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if strings.Contains(name, "corrupt") {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid PDF file"})
		return
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("conv-%d", b.nextID)
	b.conversions[id] = &backendConversion{filename: name}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversion_id": id})
}

func (b *Backend) convertWord(w http.ResponseWriter, r *http.Request) {
	b.count("/convert-word-to-markdown")

	name, err := uploadedFilename(r, "document")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if strings.Contains(name, "corrupt") {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"markdown":  "# " + name,
		"filename":  name,
		"fileSize":  "1 KB",
		"pageCount": nil,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (b *Backend) progress(w http.ResponseWriter, r *http.Request) {
	b.count("/progress")

	b.mu.Lock()
	conv, ok := b.conversions[r.PathValue("id")]
	if ok {
		conv.polls++
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Conversion not found"})
		return
	}

	if conv.polls < 2 {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "processing",
			"progress":     50.0,
			"stage":        "Processing page 1 of 2...",
			"total_pages":  2,
			"current_page": 1,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "completed",
		"progress": 100,
		"stage":    "Conversion complete!",
		"result": map[string]any{
			"markdown":  "# " + conv.filename,
			"filename":  conv.filename,
			"fileSize":  "2 KB",
			"pageCount": 2,
			"timestamp": time.Now().Format("2006-01-02T15:04:05.000000"),
		},
	})
}

func (b *Backend) markdownToWord(w http.ResponseWriter, r *http.Request) {
	b.count("/convert-markdown-to-word")

	var req struct {
		Markdown string `json:"markdown"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Markdown) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No markdown content provided"})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.docx"`, req.Filename))
	_, _ = io.WriteString(w, "DOCX:"+req.Markdown)
}

func uploadedFilename(r *http.Request, field string) (string, error) {
	f, h, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("no file provided: %w", err)
	}
	defer f.Close()
	return h.Filename, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
