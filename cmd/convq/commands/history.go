package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/convq/internal/app/historyclear"
	"github.com/slok/convq/internal/app/historylist"
	"github.com/slok/convq/internal/app/historyremove"
	"github.com/slok/convq/internal/app/historyshow"
)

// NewHistoryCommand returns the history parent command.
func NewHistoryCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("history", "Manage the conversion history.")
}

// HistoryListCommand lists the conversion history.
type HistoryListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	search string
	limit  int
	format string
}

// NewHistoryListCommand returns the history list command.
func NewHistoryListCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryListCommand {
	c := &HistoryListCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("list", "List the converted documents, newest first.").Alias("ls")
	c.Cmd.Flag("search", "Filter by filename or markdown content.").Short('s').StringVar(&c.search)
	c.Cmd.Flag("limit", "Maximum number of entries, 0 lists all.").Default("0").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryListCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryListCommand) Run(ctx context.Context) error {
	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return err
	}
	store, closeDB, err := c.rootCmd.History(ctx, settings)
	if err != nil {
		return err
	}
	defer closeDB()

	svc, err := historylist.NewService(historylist.ServiceConfig{
		History: store,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.Run(historylist.Request{Search: c.search, Limit: c.limit})
	if err != nil {
		return fmt.Errorf("could not list history: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintHistoryList(entries, time.Now()); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}
	return nil
}

// HistoryShowCommand shows a converted document.
type HistoryShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id       int64
	format   string
	markdown bool
}

// NewHistoryShowCommand returns the history show command.
func NewHistoryShowCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryShowCommand {
	c := &HistoryShowCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("show", "Show a converted document.")
	c.Cmd.Arg("id", "History entry ID.").Required().Int64Var(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("markdown", "Print only the markdown.").BoolVar(&c.markdown)

	return c
}

func (c HistoryShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryShowCommand) Run(ctx context.Context) error {
	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return err
	}
	store, closeDB, err := c.rootCmd.History(ctx, settings)
	if err != nil {
		return err
	}
	defer closeDB()

	svc, err := historyshow.NewService(historyshow.ServiceConfig{
		History: store,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	entry, err := svc.Run(historyshow.Request{ID: c.id})
	if err != nil {
		return err
	}

	if c.markdown {
		_, err := fmt.Fprintln(c.rootCmd.Stdout, entry.Markdown)
		return err
	}
	return newPrinter(c.format, c.rootCmd.Stdout).PrintHistoryEntry(*entry)
}

// HistoryRmCommand removes converted documents from the history.
type HistoryRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	ids []string
}

// NewHistoryRmCommand returns the history rm command.
func NewHistoryRmCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryRmCommand {
	c := &HistoryRmCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("rm", "Remove history entries.")
	c.Cmd.Arg("ids", "History entry IDs.").Required().StringsVar(&c.ids)

	return c
}

func (c HistoryRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryRmCommand) Run(ctx context.Context) error {
	ids, err := parseIDs(c.ids)
	if err != nil {
		return err
	}

	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return err
	}
	store, closeDB, err := c.rootCmd.History(ctx, settings)
	if err != nil {
		return err
	}
	defer closeDB()

	svc, err := historyremove.NewService(historyremove.ServiceConfig{
		History: store,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Run(ctx, historyremove.Request{IDs: ids}); err != nil {
		return err
	}

	return newPrinter(formatTable, c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("%d history entries removed", len(ids)))
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid history id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// HistoryClearCommand removes the whole history.
type HistoryClearCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewHistoryClearCommand returns the history clear command.
func NewHistoryClearCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryClearCommand {
	c := &HistoryClearCommand{rootCmd: rootCmd}
	c.Cmd = historyCmd.Command("clear", "Remove every history entry.")
	return c
}

func (c HistoryClearCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryClearCommand) Run(ctx context.Context) error {
	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return err
	}
	store, closeDB, err := c.rootCmd.History(ctx, settings)
	if err != nil {
		return err
	}
	defer closeDB()

	svc, err := historyclear.NewService(historyclear.ServiceConfig{
		History: store,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	n, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	return newPrinter(formatTable, c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("%d history entries removed", n))
}
