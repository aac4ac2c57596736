package convq

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/convq/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "convq"
	}

	// go test changes the CWD to the test package directory, relative paths are ambiguous.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("CONVQ_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("convq binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "CONVQ_INTEGRATION"
		envBinary     = "CONVQ_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// env isolates a test run with its own database, backend and settings file.
type env struct {
	config  Config
	backend *testutils.Backend
	dir     string
	vars    []string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	config := NewConfig(t)
	backend := testutils.NewBackend(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	settings := fmt.Sprintf("backend_url: %s\npoll_interval: 10ms\n", backend.URL)
	require.NoError(t, os.WriteFile(configPath, []byte(settings), 0o644))

	return &env{
		config:  config,
		backend: backend,
		dir:     dir,
		vars: []string{
			"CONVQ_DB_PATH=" + filepath.Join(dir, "convq.db"),
			"CONVQ_CONFIG=" + configPath,
		},
	}
}

func (e *env) run(t *testing.T, args ...string) (stdout, stderr []byte, err error) {
	t.Helper()
	return testutils.RunConvqArgs(context.Background(), e.vars, e.config.Binary, args, true)
}

func (e *env) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, "input", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
