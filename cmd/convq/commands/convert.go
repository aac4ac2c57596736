package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/convq/internal/app/convert"
	"github.com/slok/convq/internal/classify"
	"github.com/slok/convq/internal/engine"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/printer"
)

// ConvertCommand converts local documents to markdown.
type ConvertCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	paths     []string
	outputDir string
	retries   int
	format    string
	quiet     bool

	engine  *engine.Engine
	closeDB func() error
	printer printer.Printer
}

// NewConvertCommand returns the convert command.
func NewConvertCommand(rootCmd *RootCommand, app *kingpin.Application) *ConvertCommand {
	c := &ConvertCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("convert", "Convert PDF and DOCX documents to markdown, one at a time.")
	c.Cmd.Arg("files", "Documents to convert, in submission order.").Required().StringsVar(&c.paths)
	c.Cmd.Flag("output-dir", "Directory where the markdown results are written.").Short('o').Default(".").StringVar(&c.outputDir)
	c.Cmd.Flag("retries", "Times failed conversions are queued again.").Default("0").IntVar(&c.retries)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("quiet", "Don't print the progress of the conversions.").Short('q').BoolVar(&c.quiet)

	return c
}

func (c *ConvertCommand) Name() string { return c.Cmd.FullCommand() }

// Prepare creates the conversion engine, its loop must run along the command.
func (c *ConvertCommand) Prepare(ctx context.Context) (_ []Actor, err error) {
	logger := c.rootCmd.Logger
	c.printer = newPrinter(c.format, c.rootCmd.Stdout)

	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}

	client, err := c.rootCmd.Converter(settings)
	if err != nil {
		return nil, err
	}

	store, closeDB, err := c.rootCmd.History(ctx, settings)
	if err != nil {
		return nil, err
	}
	defer closeOnErr(&err, closeDB)
	c.closeDB = closeDB

	classifier, err := classify.NewClassifier(classify.ClassifierConfig{DetectPages: true, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create classifier: %w", err)
	}

	c.engine, err = engine.New(engine.Config{
		Client:       client,
		History:      store,
		Classifier:   classifier,
		PollInterval: settings.PollInterval,
		DismissDelay: settings.DismissDelay,
		OnChange:     c.onChange(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	return []Actor{c.engine.Run}, nil
}

// onChange prints the job updates that are visible to the user, it runs on
// the engine loop so it doesn't need locking.
func (c *ConvertCommand) onChange() func(model.StatusRecord) {
	type view struct {
		status   model.JobStatus
		progress int
		stage    string
	}
	last := map[string]view{}

	return func(r model.StatusRecord) {
		if c.quiet {
			return
		}
		v := view{status: r.Status, progress: r.Progress, stage: r.Stage}
		if last[r.JobID] == v {
			return
		}
		last[r.JobID] = v
		if err := c.printer.PrintStatus(r); err != nil {
			c.rootCmd.Logger.Warningf("could not print status: %s", err)
		}
	}
}

func (c *ConvertCommand) Run(ctx context.Context) error {
	defer c.closeDB()

	svc, err := convert.NewService(convert.ServiceConfig{
		Engine: c.engine,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, convert.Request{
		Paths:     c.paths,
		OutputDir: c.outputDir,
		Retries:   c.retries,
	})
	if err != nil {
		return fmt.Errorf("could not convert documents: %w", err)
	}

	if err := c.printer.PrintStatuses(resp.Records); err != nil {
		return fmt.Errorf("could not print statuses: %w", err)
	}

	if resp.Failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", resp.Failed, len(resp.Records))
	}
	return nil
}
