package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/formatter"
	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/shared"
)

// PreDBList prints one page of PreDB entries, or writes it to a file with --output.
func (r *Runner) PreDBList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	s, err := r.open()
	if err != nil {
		return err
	}

	page, err := s.predb.List(ctx, repositories.ListOptions{
		Offset: cmd.Int("offset"),
		Limit:  cmd.Int("limit"),
		Search: cmd.String("search"),
	})
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(page, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("listing exported", "path", path, "entries", len(page.Entries))
		return r.writePlain("✓ Exported %d of %d entries to %s\n", len(page.Entries), page.Total, path)
	}

	return formatter.Render(r.output, page, format)
}

// PreDBShow prints one entry by id.
func (r *Runner) PreDBShow(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("id")
	if arg == "" {
		return fmt.Errorf("%w: entry id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: %q is not an entry id", shared.ErrInvalidArgument, arg)
	}

	s, err := r.open()
	if err != nil {
		return err
	}

	entry, err := s.predb.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, true)
	}
	formatter.EntryDetail(r.output, entry)
	return nil
}

// PreDBAdd stores a single entry along with its title hashes.
func (r *Runner) PreDBAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	nuked, err := models.ParseNukeStatus(cmd.String("nuked"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	s, err := r.open()
	if err != nil {
		return err
	}

	entry := &models.PreDBEntry{
		Title:      title,
		Filename:   cmd.String("filename"),
		Source:     cmd.String("source"),
		Category:   cmd.String("category"),
		Created:    time.Now().UTC(),
		Nuked:      nuked,
		NukeReason: cmd.String("reason"),
	}
	if err := s.predb.Create(ctx, entry); err != nil {
		return err
	}

	r.logger.Debug("entry added", "id", entry.ID, "title", entry.Title)
	return r.writePlain("✓ Added #%d %s\n", entry.ID, entry.Title)
}

// PreDBImport loads entries from a CSV file in one transaction.
func (r *Runner) PreDBImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: CSV path", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	s, err := r.open()
	if err != nil {
		return err
	}

	n, err := s.predb.ImportCSV(ctx, f)
	if err != nil {
		return err
	}

	r.logger.Info("import complete", "path", path, "entries", n)
	return r.writePlain("✓ Imported %d entries from %s\n", n, path)
}
