package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/htol/shelf/book"
	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/export"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/scanner"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var b book.Book
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the library",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				added, err := cat.Add(cmd.Context(), b)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Book '%s' added successfully!\n", added.Title)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&b.Title, "title", "", "Book title")
	flags.StringVar(&b.Author, "author", "", "Book author")
	flags.IntVar(&b.Year, "year", 0, fmt.Sprintf("Publication year (%d-%d)", book.MinYear, book.MaxYear))
	flags.StringVar(&b.Genre, "genre", "", "Genre")
	flags.StringVar(&b.ImageURL, "image-url", "", "Cover image URL")
	flags.BoolVar(&b.Read, "read", false, "Mark the book as read")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <title>",
		Short: "Remove every book with the given title (case-insensitive)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				res, err := cat.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Found() {
					fmt.Fprintf(out, "Book '%s' not found.\n", res.Title)
					return nil
				}
				fmt.Fprintf(out, "Book '%s' removed (%d).\n", res.Title, res.Count)
				return nil
			})
		},
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find books by title or author",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				results := cat.Search(cmd.Context(), args[0])
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderBooks(results, false))
				return nil
			})
		},
	}
}

// filterFlags binds --genre and --status, shared by list and toggle.
type filterFlags struct {
	genre  string
	status string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.genre, "genre", catalog.AllGenres, "Only books of this genre")
	cmd.Flags().StringVar(&f.status, "status", book.StatusAll.String(), "All, Read or Unread")
}

func (f *filterFlags) filter() (catalog.Filter, error) {
	status, err := book.ParseStatus(f.status)
	if err != nil {
		return catalog.Filter{}, usageError{err}
	}
	return catalog.Filter{Genre: f.genre, Status: status}, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered by genre and read status",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				view := cat.Filter(cmd.Context(), f)
				if len(view) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books match the filter criteria.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderBooks(view, true))
				return nil
			})
		},
	}
	ff.bind(cmd)
	return cmd
}

func newToggleCommand(ctx *commandContext) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "toggle <index>",
		Short: "Flip the read status of the book at index in the listed view",
		Long: "Flip the read status of a book. The index is the # column printed by\n" +
			"'shelf list' with the same --genre and --status flags.",
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return usageError{fmt.Errorf("invalid index %q", args[0])}
			}
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				b, err := cat.ToggleReadInView(cmd.Context(), f, index)
				if err != nil {
					return err
				}
				state := "unread"
				if b.Read {
					state = "read"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "'%s' marked as %s.\n", b.Title, state)
				return nil
			})
		},
	}
	ff.bind(cmd)
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				printStats(cmd.OutOrStdout(), cat.Statistics(cmd.Context()))
				return nil
			})
		},
	}
}

func printStats(w io.Writer, s book.Stats) {
	if s.Total == 0 {
		fmt.Fprintln(w, "No books to display statistics.")
		return
	}
	fmt.Fprintf(w, "Total Books: %d\nRead Books: %d\nUnread Books: %d\n", s.Total, s.Read, s.Unread)
}

func newGenresCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the distinct genres",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				for _, g := range cat.Genres(cmd.Context()) {
					fmt.Fprintln(cmd.OutOrStdout(), g)
				}
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatName, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the library as CSV, JSON or YAML",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return usageError{err}
			}
			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				books := cat.Books(cmd.Context())
				if out == "-" {
					return export.Write(cmd.OutOrStdout(), format, books)
				}
				path := out
				if path == "" {
					path = export.DefaultFileName(format)
				}
				if err := export.ToFile(path, format, books); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Library exported to %s (%d books).\n", path, len(books))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.CSV), "csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, '-' for stdout (default library_export.<format>)")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Add books from the metadata of FB2 files under dir",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				workers = ctx.config.Import.Workers
			}
			if workers < 1 {
				return usageError{fmt.Errorf("--workers must be positive, got %d", workers)}
			}

			results, err := scanner.ScanDir(cmd.Context(), args[0], workers)
			if err != nil {
				return err
			}
			books := make([]book.Book, 0, len(results))
			for _, r := range results {
				books = append(books, r.Book)
			}

			return ctx.withCatalog(cmd.Context(), func(cat *catalog.Catalog) error {
				added, rejected, err := cat.AddBatch(cmd.Context(), books)
				if err != nil {
					return err
				}
				for _, r := range rejected {
					logger.Warn("Skipping book", "title", r.Book.Title, "error", r.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d books from %s.\n", added, len(results), args[0])
				if len(rejected) > 0 {
					titles := make([]string, 0, len(rejected))
					for _, r := range rejected {
						titles = append(titles, r.Book.Title)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %s\n", strings.Join(titles, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel file parsers (default from config)")
	return cmd
}
