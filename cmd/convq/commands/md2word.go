package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/convq/internal/app/md2word"
)

// MD2WordCommand renders a markdown file as a Word document.
type MD2WordCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path      string
	outputDir string
	filename  string
}

// NewMD2WordCommand returns the md2word command.
func NewMD2WordCommand(rootCmd *RootCommand, app *kingpin.Application) *MD2WordCommand {
	c := &MD2WordCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("md2word", "Convert a markdown file to a Word document.")
	c.Cmd.Arg("file", "Markdown file.").Required().ExistingFileVar(&c.path)
	c.Cmd.Flag("output-dir", "Directory where the document is written.").Short('o').Default(".").StringVar(&c.outputDir)
	c.Cmd.Flag("name", "Document name, defaults to the markdown file name.").StringVar(&c.filename)

	return c
}

func (c MD2WordCommand) Name() string { return c.Cmd.FullCommand() }

func (c MD2WordCommand) Run(ctx context.Context) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("could not read markdown: %w", err)
	}

	settings, err := c.rootCmd.Settings(ctx)
	if err != nil {
		return err
	}
	client, err := c.rootCmd.Converter(settings)
	if err != nil {
		return err
	}

	svc, err := md2word.NewService(md2word.ServiceConfig{
		Client: client,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	name := c.filename
	if name == "" {
		name = c.path
	}
	doc, err := svc.Run(ctx, md2word.Request{Markdown: string(data), Filename: name})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	out := filepath.Join(c.outputDir, doc.Filename)
	if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
		return fmt.Errorf("could not write document: %w", err)
	}

	return newPrinter(formatTable, c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Word document written to %s", out))
}
