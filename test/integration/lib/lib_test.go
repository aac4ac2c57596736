package lib

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdklib "github.com/slok/convq/pkg/lib"
	"github.com/slok/convq/test/integration/testutils"
)

func newClient(t *testing.T) (*sdklib.Client, *testutils.Backend) {
	t.Helper()

	if os.Getenv("CONVQ_INTEGRATION") != "true" {
		t.Skip("Skipping integration test: CONVQ_INTEGRATION is not set to 'true'")
	}

	backend := testutils.NewBackend(t)
	client, err := sdklib.New(context.Background(), sdklib.Config{
		DBPath:       filepath.Join(t.TempDir(), "convq.db"),
		BackendURL:   backend.URL,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, backend
}

func TestSDKConvertWithRetry(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	client, backend := newClient(t)

	statuses, err := client.Convert(context.Background(), []sdklib.Document{
		{Name: "corrupt.pdf", Data: []byte("%PDF-1.4")},
		{Name: "report.pdf", Data: []byte("%PDF-1.4")},
	}, &sdklib.ConvertOpts{Retries: 1})
	require.NoError(err)
	require.Len(statuses, 2)

	// The backend keeps rejecting the corrupt file.
	assert.Equal(sdklib.JobStatusError, statuses[0].State)
	assert.Equal("Invalid PDF file", statuses[0].Error)
	assert.Equal(2, statuses[0].Attempt)
	assert.Equal(sdklib.JobStatusCompleted, statuses[1].State)
	assert.Equal("# report.pdf", statuses[1].Markdown)
	assert.Equal(3, backend.Requests("/convert"))

	entries, err := client.History(context.Background(), nil)
	require.NoError(err)
	require.Len(entries, 1)
	require.NotNil(entries[0].PageCount)
	assert.Equal(2, *entries[0].PageCount)
}

func TestSDKMarkdownToWord(t *testing.T) {
	client, _ := newClient(t)

	doc, err := client.MarkdownToWord(context.Background(), "# Hi", "hello.md")
	require.NoError(t, err)
	assert.Equal(t, "hello.docx", doc.Filename)
	assert.Equal(t, "DOCX:# Hi", string(doc.Data))
}
