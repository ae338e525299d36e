// Package library implements the personal library catalog: an ordered list of
// book records persisted as one JSON file.
package library

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidUTF8 is reported by Validate for text that is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("not valid UTF-8")

var (
	errTitleRequired  = errors.New("title is required")
	errAuthorRequired = errors.New("author is required")
	errYearRequired   = errors.New("year is required")
	errGenreRequired  = errors.New("genre is required")
)

// Book is one record of the library.
type Book struct {
	Title  string `json:"title" jsonschema:"description=Book title. Matched case-insensitively by remove and edit"`
	Author string `json:"author" jsonschema:"description=Author name"`
	Year   Year   `json:"year" jsonschema:"description=Publication year as free text"`
	Genre  string `json:"genre" jsonschema:"description=Genre"`
	Read   bool   `json:"read" jsonschema:"description=Whether the book has been read"`
}

// Clone returns a copy of the book.
func (b Book) Clone() Book {
	return b
}

// Validate checks that every text field is filled in with valid UTF-8.
//
// The store does not call it; it is for callers taking user input.
func (b *Book) Validate() error {
	var errs []error
	for _, f := range []struct {
		name     string
		value    string
		required error
	}{
		{"title", b.Title, errTitleRequired},
		{"author", b.Author, errAuthorRequired},
		{"year", string(b.Year), errYearRequired},
		{"genre", b.Genre, errGenreRequired},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, f.required)
		} else if !utf8.ValidString(f.value) {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, ErrInvalidUTF8))
		}
	}
	return errors.Join(errs...)
}

// Year is the publication year.
//
// It is free text and always written as a JSON string. A JSON number is
// accepted when reading files produced by other tools.
type Year string

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*y = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("year must be a string or a number, got %s", b)
	}
	*y = Year(b)
	return nil
}

// Patch describes an edit. A nil field keeps the current value; a non-nil
// field replaces it, even with an empty value. The title is the exception:
// see Validate.
//
// Read has no "keep" state and is always applied.
type Patch struct {
	Title  *string
	Author *string
	Year   *Year
	Genre  *string
	Read   bool
}

// Validate checks the values the patch would write: the title cannot be
// blanked and all text must be valid UTF-8.
//
// Like Book.Validate, it is for callers taking user input.
func (p *Patch) Validate() error {
	var errs []error
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs = append(errs, errTitleRequired)
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"title", p.Title},
		{"author", p.Author},
		{"year", (*string)(p.Year)},
		{"genre", p.Genre},
	} {
		if f.value != nil && !utf8.ValidString(*f.value) {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, ErrInvalidUTF8))
		}
	}
	return errors.Join(errs...)
}

// apply returns b with the patch applied.
func (p *Patch) apply(b Book) Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Year != nil {
		b.Year = *p.Year
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	b.Read = p.Read
	return b
}

// Stats summarizes the library.
type Stats struct {
	Total  int
	Read   int
	Unread int
	// PercentRead is 0 for an empty library.
	PercentRead float64
}
