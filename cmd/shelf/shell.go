package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/maruel/shelf/internal/library"
	"github.com/maruel/shelf/internal/watch"
	"github.com/spf13/cobra"
)

const menu = `
Personal Library Manager
1. Add a book
2. Remove a book
3. Search for a book
4. Edit a book
5. Display all books
6. Display statistics
7. Exit`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive menu session",
		Long: `Interactive menu session.

Exit (or end of input) saves the library. The library file is watched and a
warning is logged when another program modifies it during the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.shell(cmd.Context())
		},
	}
}

// shell runs the menu loop until exit or end of input.
func (a *app) shell(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	path := a.store.Path()
	err := watch.File(ctx, path, a.store.InSync, func() {
		slog.WarnContext(ctx, "Library file modified by another program; saving will overwrite those changes", "path", path)
	})
	if err != nil {
		slog.WarnContext(ctx, "Not watching the library file", "err", err)
	}

	p := &prompter{r: bufio.NewReader(a.in), w: a.out}
	for {
		fmt.Fprintln(a.out, menu)
		choice, err := p.ask("Select an action")
		if errors.Is(err, io.EOF) {
			return a.exit(ctx)
		}
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			err = a.shellAdd(ctx, p)
		case "2":
			err = a.shellRemove(ctx, p)
		case "3":
			err = a.shellSearch(p)
		case "4":
			err = a.shellEdit(ctx, p)
		case "5":
			a.list()
		case "6":
			a.stats()
		case "7":
			return a.exit(ctx)
		default:
			fmt.Fprintln(a.out, "Invalid choice. Please select 1 to 7.")
		}
		if errors.Is(err, io.EOF) {
			return a.exit(ctx)
		}
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

func (a *app) exit(ctx context.Context) error {
	if err := a.store.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Library saved to file. Goodbye!")
	return nil
}

func (a *app) shellAdd(ctx context.Context, p *prompter) error {
	var b library.Book
	var year string
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"Title", &b.Title},
		{"Author", &b.Author},
		{"Year", &year},
		{"Genre", &b.Genre},
	} {
		v, err := p.ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	b.Year = library.Year(year)
	read, err := p.yesNo("Have you read this book?")
	if err != nil {
		return err
	}
	b.Read = read
	return a.add(ctx, b)
}

func (a *app) shellRemove(ctx context.Context, p *prompter) error {
	title, err := p.ask("Enter the title of the book to remove")
	if err != nil {
		return err
	}
	if title == "" {
		return errors.New("please enter a book title")
	}
	return a.remove(ctx, title)
}

func (a *app) shellSearch(p *prompter) error {
	q, err := p.ask("Enter title or author to search")
	if err != nil {
		return err
	}
	return a.search(q)
}

// shellEdit asks for the new values. A blank answer keeps the field.
func (a *app) shellEdit(ctx context.Context, p *prompter) error {
	title, err := p.ask("Enter the title of the book to edit")
	if err != nil {
		return err
	}
	if title == "" {
		return errors.New("please enter the title of the book to edit")
	}
	var newTitle, newAuthor, newYear, newGenre string
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"New title", &newTitle},
		{"New author", &newAuthor},
		{"New year", &newYear},
		{"New genre", &newGenre},
	} {
		if *f.dst, err = p.ask(f.label); err != nil {
			return err
		}
	}
	var patch library.Patch
	if newTitle != "" {
		patch.Title = &newTitle
	}
	if newAuthor != "" {
		patch.Author = &newAuthor
	}
	if newYear != "" {
		y := library.Year(newYear)
		patch.Year = &y
	}
	if newGenre != "" {
		patch.Genre = &newGenre
	}
	if patch.Read, err = p.yesNo("Have you read this book?"); err != nil {
		return err
	}
	return a.edit(ctx, title, patch)
}

// prompter reads one answer per line.
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

// ask prints label and returns the trimmed line. It returns io.EOF only when
// the input ended before any answer.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.w, "%s: ", label)
	line, err := p.r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) yesNo(label string) (bool, error) {
	v, err := p.ask(label + " (y/n)")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(v), "y"), nil
}
