package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/maruel/ksid"
	"github.com/maruel/shelf/internal/jsonldb"
	"github.com/maruel/shelf/internal/library"
	"github.com/spf13/cobra"
)

var (
	errFillAllFields   = errors.New("please fill in all fields")
	errEmptyQuery      = errors.New("please enter a search term")
	errHistoryDisabled = errors.New("history is disabled; pass --history or set history.enabled in the configuration")
)

func newAddCmd(a *app) *cobra.Command {
	var b library.Book
	var year string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b.Year = library.Year(year)
			return a.add(cmd.Context(), b)
		},
	}
	f := cmd.Flags()
	f.StringVar(&b.Title, "title", "", "Title")
	f.StringVar(&b.Author, "author", "", "Author")
	f.StringVar(&year, "year", "", "Publication year")
	f.StringVar(&b.Genre, "genre", "", "Genre")
	f.BoolVar(&b.Read, "read", false, "Mark the book as read")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove TITLE",
		Short: "Remove the first book with this title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.remove(cmd.Context(), args[0])
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Search books by title or author",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.search(args[0])
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	var title, author, year, genre string
	var read bool
	cmd := &cobra.Command{
		Use:   "edit TITLE",
		Short: "Edit the first book with this title",
		Long: `Edit the first book with this title.

Fields whose flag is not given keep their value. A flag given with an empty
value clears the field, except --title which cannot be blank. --read is
always applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			p := library.Patch{Read: read}
			if f.Changed("title") {
				p.Title = &title
			}
			if f.Changed("author") {
				p.Author = &author
			}
			if f.Changed("year") {
				y := library.Year(year)
				p.Year = &y
			}
			if f.Changed("genre") {
				p.Genre = &genre
			}
			return a.edit(cmd.Context(), args[0], p)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&author, "author", "", "New author")
	f.StringVar(&year, "year", "", "New publication year")
	f.StringVar(&genre, "genre", "", "New genre")
	f.BoolVar(&read, "read", false, "Whether the book has been read")
	_ = cmd.MarkFlagRequired("read")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Display all books",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a.list()
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Display statistics",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a.stats()
			return nil
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Rewrite the library file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Library saved to file.")
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the library file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := jsonldb.Schema[library.Book]()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, string(s))
			return err
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var n int
	var show string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the git revisions of the library file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.repo == nil {
				return errHistoryDisabled
			}
			ctx := cmd.Context()
			if show != "" {
				data, err := a.repo.FileAt(ctx, show, a.store.Path())
				if err != nil {
					return err
				}
				_, err = a.out.Write(data)
				return err
			}
			commits, err := a.repo.Log(ctx, a.store.Path(), n)
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Fprintln(a.out, "No history.")
				return nil
			}
			for _, c := range commits {
				fmt.Fprintf(a.out, "%s %s %s\n", c.Hash[:8], c.Date.Local().Format("2006-01-02 15:04"), c.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 10, "Maximum number of revisions to list")
	cmd.Flags().StringVar(&show, "show", "", "Print the library file as of this revision instead")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [PATH]",
		Short: "Write a snapshot copy of the library",
		Long: `Write a snapshot copy of the library.

Without PATH, the snapshot is written to library-<id>.json in the export
directory, where <id> sorts by creation time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := filepath.Join(a.cfg.ExportDir, "library-"+ksid.NewID().String()+".json")
			if len(args) == 1 {
				path = args[0]
			}
			if err := a.store.Export(path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Library exported to %s\n", path)
			return nil
		},
	}
}

// Actions shared by the subcommands and the interactive shell.

func (a *app) add(ctx context.Context, b library.Book) error {
	if err := b.Validate(); err != nil {
		return invalidInput(err)
	}
	if err := a.store.Add(ctx, b); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Book added successfully!")
	return nil
}

func (a *app) remove(ctx context.Context, title string) error {
	if _, err := a.store.Remove(ctx, title); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return fmt.Errorf("%w: %q", err, title)
		}
		return err
	}
	fmt.Fprintln(a.out, "Book removed successfully!")
	return nil
}

func (a *app) search(query string) error {
	if query == "" {
		return errEmptyQuery
	}
	matches := a.store.Search(query)
	if len(matches) == 0 {
		fmt.Fprintln(a.out, "No matching books found.")
		return nil
	}
	fmt.Fprintln(a.out, "Matching Books:")
	for _, b := range matches {
		fmt.Fprintln(a.out, formatBook(b))
	}
	return nil
}

func (a *app) edit(ctx context.Context, title string, p library.Patch) error {
	if err := p.Validate(); err != nil {
		return invalidInput(err)
	}
	if _, err := a.store.Edit(ctx, title, p); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return fmt.Errorf("%w: %q", err, title)
		}
		return err
	}
	fmt.Fprintln(a.out, "Book updated successfully!")
	return nil
}

func (a *app) list() {
	books := a.store.List()
	if len(books) == 0 {
		fmt.Fprintln(a.out, "No books in library.")
		return
	}
	fmt.Fprintln(a.out, "Your Library:")
	for _, b := range books {
		fmt.Fprintln(a.out, formatBook(b))
	}
}

func (a *app) stats() {
	st := a.store.Statistics()
	fmt.Fprintf(a.out, "Total books: %d\n", st.Total)
	fmt.Fprintf(a.out, "Percentage read: %s%%\n", strconv.FormatFloat(st.PercentRead, 'f', 2, 64))
}

// invalidInput asks the user to fill in the fields, unless the text is
// badly encoded.
func invalidInput(err error) error {
	if errors.Is(err, library.ErrInvalidUTF8) {
		return err
	}
	return fmt.Errorf("%w: %w", errFillAllFields, err)
}

func formatBook(b library.Book) string {
	status := "Unread"
	if b.Read {
		status = "Read"
	}
	return fmt.Sprintf("%s by %s (%s) - %s - %s", b.Title, b.Author, b.Year, b.Genre, status)
}
