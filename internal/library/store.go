package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/maruel/shelf/internal/jsonldb"
)

// ErrNotFound is returned by Remove and Edit when no title matches.
var ErrNotFound = errors.New("book not found")

// Recorder is told about every change persisted by the store.
type Recorder interface {
	Record(ctx context.Context, path, msg string) error
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder makes the store report each persisted change to r.
//
// A failing recorder is logged; the change itself has already succeeded.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// Store owns the library: the in-memory list of books and the file it is
// persisted to.
//
// Every mutation rewrites the whole file before returning. If the write
// fails, the in-memory list is left as it was.
type Store struct {
	table    *jsonldb.Table[Book]
	recorder Recorder
}

// Open creates a store bound to path and loads it.
func Open(path string, opts ...Option) *Store {
	s := &Store{table: jsonldb.NewTable[Book](path)}
	for _, opt := range opts {
		opt(s)
	}
	s.Load()
	return s
}

// Path returns the library file.
func (s *Store) Path() string {
	return s.table.Path()
}

// Load reads the library file.
//
// A missing or unreadable file yields an empty library, never an error. Use
// LoadWarning to find out whether existing content was discarded.
func (s *Store) Load() {
	s.table.Load()
	if err := s.table.LoadErr(); err != nil {
		slog.Warn("Library file could not be loaded, starting with an empty library", "path", s.table.Path(), "err", err)
		return
	}
	slog.Debug("Library loaded", "path", s.table.Path(), "books", s.table.Len())
}

// LoadWarning returns why the last Load started from an empty library, or nil
// when the file was loaded or did not exist.
func (s *Store) LoadWarning() error {
	return s.table.LoadErr()
}

// InSync reports whether the file still holds what the store last read or wrote.
func (s *Store) InSync() (bool, error) {
	return s.table.InSync()
}

// Save rewrites the library file with the current books.
func (s *Store) Save(ctx context.Context) error {
	if err := s.table.Save(); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	s.record(ctx, "Save library")
	return nil
}

// Add appends b at the end of the library and saves.
//
// There is no duplicate check and no validation; see Book.Validate.
func (s *Store) Add(ctx context.Context, b Book) error {
	if err := s.table.Append(b); err != nil {
		return fmt.Errorf("failed to save library: %w", err)
	}
	s.record(ctx, fmt.Sprintf("Add %q", b.Title))
	return nil
}

// Remove deletes the first book whose title matches case-insensitively and
// saves. The file is not written when nothing matches.
func (s *Store) Remove(ctx context.Context, title string) (Book, error) {
	var removed Book
	err := s.table.Modify(func(rows []Book) ([]Book, error) {
		i := indexOf(rows, title)
		if i < 0 {
			return nil, ErrNotFound
		}
		removed = rows[i]
		return slices.Delete(rows, i, i+1), nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Book{}, err
		}
		return Book{}, fmt.Errorf("failed to save library: %w", err)
	}
	s.record(ctx, fmt.Sprintf("Remove %q", removed.Title))
	return removed, nil
}

// Edit applies p to the first book whose title matches case-insensitively and
// saves. It returns the updated book.
func (s *Store) Edit(ctx context.Context, title string, p Patch) (Book, error) {
	var edited Book
	err := s.table.Modify(func(rows []Book) ([]Book, error) {
		i := indexOf(rows, title)
		if i < 0 {
			return nil, ErrNotFound
		}
		edited = p.apply(rows[i])
		rows[i] = edited
		return rows, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Book{}, err
		}
		return Book{}, fmt.Errorf("failed to save library: %w", err)
	}
	s.record(ctx, fmt.Sprintf("Edit %q", title))
	return edited, nil
}

// Search returns every book whose title or author contains query,
// case-insensitively, in library order.
//
// An empty query matches every book.
func (s *Store) Search(query string) []Book {
	q := strings.ToLower(query)
	var matches []Book
	for _, b := range s.table.All() {
		if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			matches = append(matches, b)
		}
	}
	return matches
}

// List returns all books in stored order.
func (s *Store) List() []Book {
	return s.table.All()
}

// Statistics counts the books and the share that has been read.
func (s *Store) Statistics() Stats {
	var st Stats
	for _, b := range s.table.All() {
		st.Total++
		if b.Read {
			st.Read++
		}
	}
	st.Unread = st.Total - st.Read
	if st.Total > 0 {
		st.PercentRead = float64(st.Read) * 100 / float64(st.Total)
	}
	return st
}

// Export writes a copy of the current books to path, in the library format.
func (s *Store) Export(path string) error {
	dst := jsonldb.NewTable[Book](path)
	if err := dst.Replace(s.table.All()); err != nil {
		return fmt.Errorf("failed to export library: %w", err)
	}
	return nil
}

func (s *Store) record(ctx context.Context, msg string) {
	slog.DebugContext(ctx, "Library saved", "path", s.table.Path(), "change", msg)
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, s.table.Path(), msg); err != nil {
		slog.WarnContext(ctx, "Failed to record library change", "change", msg, "err", err)
	}
}

func indexOf(rows []Book, title string) int {
	return slices.IndexFunc(rows, func(b Book) bool {
		return strings.EqualFold(b.Title, title)
	})
}
