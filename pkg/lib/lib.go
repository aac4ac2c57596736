package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/convq/internal/conventions"
	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/converter/fake"
	converterhttp "github.com/slok/convq/internal/converter/http"
	"github.com/slok/convq/internal/history"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/storage/sqlite"
)

// BackendType identifies the conversion backend implementation.
type BackendType string

const (
	// BackendHTTP talks to the real conversion backend.
	BackendHTTP BackendType = "http"
	// BackendFake uses an in-memory simulation of the backend.
	// Use this for unit testing without infrastructure dependencies.
	BackendFake BackendType = "fake"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.convq/convq.db for the history and the backend at
// http://localhost:6201.
type Config struct {
	// DBPath is the SQLite database path.
	// Default: ~/.convq/convq.db.
	DBPath string

	// Backend selects the backend implementation.
	// Default: [BackendHTTP].
	Backend BackendType

	// BackendURL is the base URL of the conversion backend.
	// Default: http://localhost:6201.
	BackendURL string

	// PollInterval is the time between conversion progress requests.
	// Default: 500ms.
	PollInterval time.Duration

	// HistoryLimit is the maximum number of history entries kept.
	// Default: 50.
	HistoryLimit int

	// RequestTimeout is the timeout of a single backend request.
	// Default: 5m.
	RequestTimeout time.Duration

	// RequestsPerSecond limits the backend request rate, 0 is unlimited.
	RequestsPerSecond float64

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.DBPath(filepath.Join(home, conventions.DefaultDataDir))
	}

	if c.Backend == "" {
		c.Backend = BackendHTTP
	}
	if c.Backend != BackendHTTP && c.Backend != BackendFake {
		return fmt.Errorf("unknown backend %q: %w", c.Backend, ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// Conversions of a Client run one batch at a time, concurrent calls to
// [Client.Convert] wait for each other.
type Client struct {
	converter    converter.Client
	history      *history.Store
	pollInterval time.Duration
	logger       log.Logger
	convertLock  chan struct{}
	closeFn      func() error
}

// New creates a new SDK client backed by a SQLite database.
//
// The caller must call [Client.Close] when done to release the database
// connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var conv converter.Client
	switch cfg.Backend {
	case BackendFake:
		c, err := fake.NewClient(fake.ClientConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create fake backend: %w", err)
		}
		conv = c
	default:
		c, err := converterhttp.NewClient(converterhttp.ClientConfig{
			BaseURL:           cfg.BackendURL,
			Timeout:           cfg.RequestTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            cfg.Logger,
		})
		if err != nil {
			return nil, mapError(fmt.Errorf("could not create backend client: %w", err))
		}
		conv = c
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	store, err := history.NewStore(ctx, history.StoreConfig{
		Repository: repo,
		Limit:      cfg.HistoryLimit,
		Logger:     cfg.Logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not load history: %w", err)
	}

	lock := make(chan struct{}, 1)
	return &Client{
		converter:    conv,
		history:      store,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		convertLock:  lock,
		closeFn:      repo.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
