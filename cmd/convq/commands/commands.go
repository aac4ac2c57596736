package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/convq/internal/conventions"
	converterhttp "github.com/slok/convq/internal/converter/http"
	"github.com/slok/convq/internal/history"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/printer"
	storageio "github.com/slok/convq/internal/storage/io"
	"github.com/slok/convq/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// Actor is a long running process that runs along a command until the context is cancelled.
type Actor func(ctx context.Context) error

// Preparer is implemented by the commands that need background actors (e.g the
// conversion engine loop) running while the command runs.
type Preparer interface {
	Prepare(ctx context.Context) ([]Actor, error)
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DBPath     string
	ConfigPath string

	// Settings flags, zero values leave the settings file (or the defaults) untouched.
	BackendURL        string
	PollInterval      time.Duration
	DismissDelay      time.Duration
	HistoryLimit      int
	RequestTimeout    time.Duration
	RequestsPerSecond float64

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("db-path", "Path to the SQLite database file.").Default(conventions.DefaultDBPath()).StringVar(&c.DBPath)
	app.Flag("config", "Path to the YAML settings file.").Default(conventions.DefaultSettingsPath()).StringVar(&c.ConfigPath)

	app.Flag("backend-url", fmt.Sprintf("Conversion backend base URL (default %s).", converterhttp.DefaultBaseURL)).StringVar(&c.BackendURL)
	app.Flag("poll-interval", "Time between conversion progress requests (default 500ms).").DurationVar(&c.PollInterval)
	app.Flag("dismiss-delay", "Time a finished clean batch stays visible (default 5s).").DurationVar(&c.DismissDelay)
	app.Flag("history-limit", fmt.Sprintf("Maximum number of history entries kept (default %d).", history.DefaultLimit)).IntVar(&c.HistoryLimit)
	app.Flag("request-timeout", "Timeout of a single backend request (default 5m).").DurationVar(&c.RequestTimeout)
	app.Flag("requests-per-second", "Maximum backend requests per second, 0 is unlimited.").Float64Var(&c.RequestsPerSecond)

	return c
}

// Settings returns the settings file values overridden by the flags. A missing
// settings file at the default path is not an error.
func (c *RootCommand) Settings(ctx context.Context) (model.Settings, error) {
	var settings model.Settings

	if c.ConfigPath != "" {
		path, err := filepath.Abs(c.ConfigPath)
		if err != nil {
			return settings, fmt.Errorf("invalid settings path: %w", err)
		}

		repo := storageio.NewSettingsYAMLRepository(os.DirFS("/"))
		settings, err = repo.GetSettings(ctx, path[1:])
		switch {
		case errors.Is(err, fs.ErrNotExist) && c.ConfigPath == conventions.DefaultSettingsPath():
			c.Logger.Debugf("No settings file found at %s", c.ConfigPath)
		case err != nil:
			return settings, fmt.Errorf("could not load settings: %w", err)
		}
	}

	if c.BackendURL != "" {
		settings.BackendURL = c.BackendURL
	}
	if c.PollInterval > 0 {
		settings.PollInterval = c.PollInterval
	}
	if c.DismissDelay > 0 {
		settings.DismissDelay = c.DismissDelay
	}
	if c.HistoryLimit > 0 {
		settings.HistoryLimit = c.HistoryLimit
	}
	if c.RequestTimeout > 0 {
		settings.RequestTimeout = c.RequestTimeout
	}
	if c.RequestsPerSecond > 0 {
		settings.RequestsPerSecond = c.RequestsPerSecond
	}

	return settings, nil
}

// History opens the history store backed by the SQLite database. The returned
// closer must be called when done.
func (c *RootCommand) History(ctx context.Context, settings model.Settings) (*history.Store, func() error, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	store, err := history.NewStore(ctx, history.StoreConfig{
		Repository: repo,
		Limit:      settings.HistoryLimit,
		Logger:     c.Logger,
	})
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("could not create history store: %w", err)
	}

	return store, repo.Close, nil
}

// Converter returns the HTTP backend client.
func (c *RootCommand) Converter(settings model.Settings) (*converterhttp.Client, error) {
	client, err := converterhttp.NewClient(converterhttp.ClientConfig{
		BaseURL:           settings.BackendURL,
		Timeout:           settings.RequestTimeout,
		RequestsPerSecond: settings.RequestsPerSecond,
		Logger:            c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create backend client: %w", err)
	}
	return client, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(w)
	default:
		return printer.NewTablePrinter(w)
	}
}

// closeOnErr calls closeFn when the error pointed by err is set, it's meant to be deferred.
func closeOnErr(err *error, closeFn func() error) {
	if *err != nil {
		_ = closeFn()
	}
}
