// Package jsonldb provides a generic, JSON-file-backed table.
//
// # Overview
//
// [Table] keeps every row in memory and persists the whole set as a single
// indented JSON array. Reads are served from memory. Every write rewrites the
// entire file: the new content goes to a temporary file in the same directory
// which is then renamed over the old one.
//
// # Loading
//
// Loading never fails. A missing file is an empty table. A file that cannot be
// read or does not hold a JSON array of rows is also an empty table; the cause
// is kept and returned by [Table.LoadErr] so callers can tell the two apart.
//
// # Concurrency
//
// Table is safe for concurrent use. [Table.Modify] holds the write lock for the
// entire read-modify-write and only swaps the in-memory rows once the file has
// been written, so a failed write leaves both memory and disk untouched.
//
// The file itself is not locked. Another process writing the same file between
// a load and a save loses its changes to the next save. [Table.InSync] reports
// whether the file still holds what the table last read or wrote.
package jsonldb
