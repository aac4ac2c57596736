package convq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusJSON struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type historyJSON struct {
	ID       int64  `json:"id"`
	Group    string `json:"group"`
	Filename string `json:"filename"`
	Markdown string `json:"markdown"`
}

func TestConvertMixedBatch(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	e := newEnv(t)
	out := filepath.Join(e.dir, "out")

	stdout, stderr, err := e.run(t, "convert", "--quiet", "--format", "json", "--output-dir", out,
		e.file(t, "a.pdf", "%PDF-1.4"),
		e.file(t, "b.docx", "docx"),
		e.file(t, "c.txt", "text"),
	)
	require.NoError(err, "stderr: %s", stderr)

	var statuses []statusJSON
	require.NoError(json.Unmarshal(stdout, &statuses))
	require.Len(statuses, 3)
	assert.Equal("completed", statuses[0].Status)
	assert.Equal("completed", statuses[1].Status)
	assert.Equal("skipped", statuses[2].Status)
	assert.Equal("Unsupported file type", statuses[2].Error)

	md, err := os.ReadFile(filepath.Join(out, "a.md"))
	require.NoError(err)
	assert.Equal("# a.pdf", string(md))

	// The skipped file never reaches the backend.
	assert.Equal(1, e.backend.Requests("/convert"))
	assert.Equal(1, e.backend.Requests("/convert-word-to-markdown"))

	stdout, stderr, err = e.run(t, "history", "list", "--format", "json")
	require.NoError(err, "stderr: %s", stderr)
	var entries []historyJSON
	require.NoError(json.Unmarshal(stdout, &entries))
	require.Len(entries, 2)
	assert.Equal("b.docx", entries[0].Filename)
	assert.Equal("Today", entries[0].Group)
}

func TestConvertFailureFailsCommand(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run(t, "convert", "--quiet", "--format", "json", "--output-dir", filepath.Join(e.dir, "out"),
		e.file(t, "corrupt file.pdf", "%PDF-1.4"),
		e.file(t, "ok.pdf", "%PDF-1.4"),
	)
	require.Error(t, err)

	var statuses []statusJSON
	require.NoError(t, json.Unmarshal(stdout, &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "error", statuses[0].Status)
	assert.Equal(t, "Invalid PDF file", statuses[0].Error)
	assert.Equal(t, "completed", statuses[1].Status)
}

func TestHistoryCommands(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	e := newEnv(t)
	_, stderr, err := e.run(t, "convert", "--quiet", "--output-dir", filepath.Join(e.dir, "out"),
		e.file(t, "invoice.docx", "x"),
		e.file(t, "letter.docx", "x"),
	)
	require.NoError(err, "stderr: %s", stderr)

	stdout, _, err := e.run(t, "history", "list", "--format", "json", "--search", "invoice")
	require.NoError(err)
	var entries []historyJSON
	require.NoError(json.Unmarshal(stdout, &entries))
	require.Len(entries, 1)

	id := entries[0].ID
	stdout, _, err = e.run(t, "history", "show", "--markdown", jsonNumber(id))
	require.NoError(err)
	assert.Equal("# invoice.docx\n", string(stdout))

	_, _, err = e.run(t, "history", "rm", jsonNumber(id))
	require.NoError(err)
	_, _, err = e.run(t, "history", "show", jsonNumber(id))
	assert.Error(err)

	stdout, _, err = e.run(t, "history", "clear")
	require.NoError(err)
	assert.Contains(string(stdout), "1 history entries removed")
}

func TestMarkdownToWord(t *testing.T) {
	e := newEnv(t)
	out := filepath.Join(e.dir, "docs")

	_, stderr, err := e.run(t, "md2word", "--output-dir", out, e.file(t, "notes.md", "# Notes"))
	require.NoError(t, err, "stderr: %s", stderr)

	data, err := os.ReadFile(filepath.Join(out, "notes.docx"))
	require.NoError(t, err)
	assert.Equal(t, "DOCX:# Notes", string(data))
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
