package jsonldb

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// ErrCorrupt is reported by LoadErr when the file does not hold a JSON array of rows.
var ErrCorrupt = errors.New("table file is corrupt")

// indent matches what most hand-edited JSON files use.
const indent = "    "

var json = jsoniter.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Table handles storage and in-memory caching for a single table stored as a
// JSON array.
type Table[T Cloner[T]] struct {
	path string
	mu   sync.RWMutex

	rows    []T
	loadErr error
	// synced is the file content as last read or written.
	synced []byte
}

// NewTable creates a Table bound to path. Call Load to read the file.
func NewTable[T Cloner[T]](path string) *Table[T] {
	return &Table[T]{path: path, rows: []T{}}
}

// Path returns the file backing the table.
func (t *Table[T]) Path() string {
	return t.path
}

// Load replaces the in-memory rows with the content of the file.
//
// It never fails: on any problem the table is left empty and the cause is
// available from LoadErr. A missing file is not a problem.
func (t *Table[T]) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = []T{}
	t.loadErr = nil
	t.synced = nil

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.loadErr = fmt.Errorf("failed to read table file %s: %w", t.path, err)
		}
		return
	}
	rows, err := decode[T](data)
	if err != nil {
		t.loadErr = fmt.Errorf("%w: %s: %w", ErrCorrupt, t.path, err)
		return
	}
	t.rows = rows
	t.synced = data
}

// LoadErr returns why the last Load produced an empty table, or nil.
func (t *Table[T]) LoadErr() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loadErr
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All returns clones of all rows in stored order.
func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneRows(t.rows)
}

// Append adds a new row at the end of the table and persists it.
func (t *Table[T]) Append(row T) error {
	return t.Modify(func(rows []T) ([]T, error) {
		return append(rows, row), nil
	})
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	return t.Modify(func([]T) ([]T, error) {
		return cloneRows(rows), nil
	})
}

// Modify runs fn on a copy of the rows and persists the slice it returns.
//
// If fn returns an error, nothing is written and the error is returned as is.
// The in-memory rows are only replaced once the file has been written.
func (t *Table[T]) Modify(fn func(rows []T) ([]T, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := fn(cloneRows(t.rows))
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []T{}
	}
	data, err := t.write(rows)
	if err != nil {
		return err
	}
	t.rows = rows
	t.synced = data
	return nil
}

// Save rewrites the file with the current rows.
func (t *Table[T]) Save() error {
	return t.Modify(func(rows []T) ([]T, error) {
		return rows, nil
	})
}

// InSync reports whether the file still holds what the table last read or
// wrote. A missing file is in sync with a table that never wrote it.
func (t *Table[T]) InSync() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return t.synced == nil, nil
		}
		return false, fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	return bytes.Equal(data, t.synced), nil
}

// write persists rows to a temporary file and renames it over t.path.
func (t *Table[T]) write(rows []T) ([]byte, error) {
	data, err := json.MarshalIndent(rows, "", indent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", t.path, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		// No-op once renamed.
		_ = os.Remove(tmp)
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", t.path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to sync %s: %w", t.path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", t.path, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil { //nolint:gosec // G302: the table is a user document
		return nil, fmt.Errorf("failed to chmod %s: %w", t.path, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", t.path, err)
	}
	return data, nil
}

func decode[T any](data []byte) ([]T, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func cloneRows[T Cloner[T]](rows []T) []T {
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}
