package library

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "library.json"), opts...)
}

func dune() Book {
	return Book{Title: "Dune", Author: "Frank Herbert", Year: "1965", Genre: "Sci-Fi"}
}

func ptr[T any](v T) *T { return &v }

// checkRoundTrip verifies that reloading the file reproduces the store.
func checkRoundTrip(t *testing.T, s *Store) {
	t.Helper()
	reloaded := Open(s.Path())
	if err := reloaded.LoadWarning(); err != nil {
		t.Fatalf("reload warning: %v", err)
	}
	want, got := s.List(), reloaded.List()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("reloaded library differs:\nmemory: %+v\nfile:   %+v", want, got)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type fakeRecorder struct {
	msgs []string
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, _, msg string) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestStore(t *testing.T) {
	t.Run("Load", func(t *testing.T) {
		t.Run("missing", func(t *testing.T) {
			s := testStore(t)
			if len(s.List()) != 0 || s.LoadWarning() != nil {
				t.Errorf("List() = %v, LoadWarning() = %v", s.List(), s.LoadWarning())
			}
		})

		t.Run("corrupt", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "library.json")
			if err := os.WriteFile(path, []byte(`[{"title": "Dune",`), 0o600); err != nil {
				t.Fatal(err)
			}
			s := Open(path)
			if len(s.List()) != 0 {
				t.Errorf("List() = %v, want empty", s.List())
			}
			if s.LoadWarning() == nil {
				t.Error("LoadWarning() = nil, want corruption reported")
			}
		})

		t.Run("numeric year", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "library.json")
			content := `[{"title": "Dune", "author": "Frank Herbert", "year": 1965, "genre": "Sci-Fi", "read": true}]`
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			s := Open(path)
			want := []Book{{Title: "Dune", Author: "Frank Herbert", Year: "1965", Genre: "Sci-Fi", Read: true}}
			if got := s.List(); !reflect.DeepEqual(got, want) {
				t.Errorf("List() = %+v, want %+v", got, want)
			}
		})
	})

	t.Run("Add", func(t *testing.T) {
		s := testStore(t)
		books := []Book{
			dune(),
			{Title: "Emma", Author: "Jane Austen", Year: "1815", Genre: "Novel", Read: true},
			dune(), // Duplicates are allowed.
		}
		for i, b := range books {
			if err := s.Add(t.Context(), b); err != nil {
				t.Fatalf("Add(%d) failed: %v", i, err)
			}
			got := s.List()
			if len(got) != i+1 {
				t.Fatalf("len = %d after %d adds", len(got), i+1)
			}
			if got[i] != b {
				t.Errorf("last book = %+v, want %+v", got[i], b)
			}
			checkRoundTrip(t, s)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		t.Run("first match case-insensitive", func(t *testing.T) {
			s := testStore(t)
			first := dune()
			second := dune()
			second.Read = true
			for _, b := range []Book{first, {Title: "Emma", Author: "Jane Austen"}, second} {
				if err := s.Add(t.Context(), b); err != nil {
					t.Fatal(err)
				}
			}
			removed, err := s.Remove(t.Context(), "DUNE")
			if err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if removed != first {
				t.Errorf("removed %+v, want %+v", removed, first)
			}
			got := s.List()
			if len(got) != 2 || got[0].Title != "Emma" || got[1] != second {
				t.Errorf("List() = %+v", got)
			}
			checkRoundTrip(t, s)
		})

		t.Run("not found does not write", func(t *testing.T) {
			rec := &fakeRecorder{}
			s := testStore(t, WithRecorder(rec))
			if err := s.Add(t.Context(), dune()); err != nil {
				t.Fatal(err)
			}
			before := readFile(t, s.Path())
			info, err := os.Stat(s.Path())
			if err != nil {
				t.Fatal(err)
			}
			_, err = s.Remove(t.Context(), "Emma")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Remove() = %v, want ErrNotFound", err)
			}
			if after := readFile(t, s.Path()); !bytes.Equal(before, after) {
				t.Errorf("file changed")
			}
			info2, err := os.Stat(s.Path())
			if err != nil {
				t.Fatal(err)
			}
			if !os.SameFile(info, info2) {
				t.Error("file was rewritten")
			}
			if len(rec.msgs) != 1 {
				t.Errorf("recorded %v, want only the add", rec.msgs)
			}
		})

		t.Run("not found on empty library creates no file", func(t *testing.T) {
			s := testStore(t)
			if _, err := s.Remove(t.Context(), "Dune"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Remove() = %v, want ErrNotFound", err)
			}
			if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
				t.Errorf("file exists after not-found remove: %v", err)
			}
		})
	})

	t.Run("Edit", func(t *testing.T) {
		t.Run("only read flag", func(t *testing.T) {
			s := testStore(t)
			if err := s.Add(t.Context(), dune()); err != nil {
				t.Fatal(err)
			}
			got, err := s.Edit(t.Context(), "dune", Patch{Read: true})
			if err != nil {
				t.Fatalf("Edit failed: %v", err)
			}
			want := dune()
			want.Read = true
			if got != want {
				t.Errorf("Edit() = %+v, want %+v", got, want)
			}
			if s.List()[0] != want {
				t.Errorf("stored %+v, want %+v", s.List()[0], want)
			}
			checkRoundTrip(t, s)
		})

		t.Run("replace fields", func(t *testing.T) {
			s := testStore(t)
			if err := s.Add(t.Context(), dune()); err != nil {
				t.Fatal(err)
			}
			p := Patch{
				Title:  ptr("Dune Messiah"),
				Year:   ptr(Year("1969")),
				Genre:  ptr(""),
				Read:   false,
				Author: nil,
			}
			got, err := s.Edit(t.Context(), "Dune", p)
			if err != nil {
				t.Fatal(err)
			}
			want := Book{Title: "Dune Messiah", Author: "Frank Herbert", Year: "1969", Genre: "", Read: false}
			if got != want {
				t.Errorf("Edit() = %+v, want %+v", got, want)
			}
			checkRoundTrip(t, s)
		})

		t.Run("read always applied", func(t *testing.T) {
			s := testStore(t)
			b := dune()
			b.Read = true
			if err := s.Add(t.Context(), b); err != nil {
				t.Fatal(err)
			}
			got, err := s.Edit(t.Context(), "Dune", Patch{})
			if err != nil {
				t.Fatal(err)
			}
			if got.Read {
				t.Error("read flag kept, want it cleared")
			}
		})

		t.Run("not found", func(t *testing.T) {
			s := testStore(t)
			if err := s.Add(t.Context(), dune()); err != nil {
				t.Fatal(err)
			}
			before := readFile(t, s.Path())
			if _, err := s.Edit(t.Context(), "Emma", Patch{Read: true}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Edit() = %v, want ErrNotFound", err)
			}
			if !bytes.Equal(before, readFile(t, s.Path())) {
				t.Error("file changed")
			}
			if s.List()[0].Read {
				t.Error("in-memory book changed")
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		s := testStore(t)
		books := []Book{
			dune(),
			{Title: "Emma", Author: "Jane Austen"},
			{Title: "Children of Dune", Author: "Frank Herbert"},
		}
		for _, b := range books {
			if err := s.Add(t.Context(), b); err != nil {
				t.Fatal(err)
			}
		}
		before := readFile(t, s.Path())
		tests := []struct {
			query string
			want  []string
		}{
			{"dun", []string{"Dune", "Children of Dune"}},
			{"herb", []string{"Dune", "Children of Dune"}},
			{"HERB", []string{"Dune", "Children of Dune"}},
			{"austen", []string{"Emma"}},
			{"xyz", nil},
			{"", []string{"Dune", "Emma", "Children of Dune"}},
		}
		for _, tt := range tests {
			t.Run(tt.query, func(t *testing.T) {
				var got []string
				for _, b := range s.Search(tt.query) {
					got = append(got, b.Title)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
				}
			})
		}
		if !bytes.Equal(before, readFile(t, s.Path())) {
			t.Error("search wrote the file")
		}
	})

	t.Run("List returns copies", func(t *testing.T) {
		s := testStore(t)
		if err := s.Add(t.Context(), dune()); err != nil {
			t.Fatal(err)
		}
		l := s.List()
		l[0].Title = "changed"
		if s.List()[0].Title != "Dune" {
			t.Error("List exposed internal state")
		}
	})

	t.Run("Statistics", func(t *testing.T) {
		s := testStore(t)
		if got := s.Statistics(); got != (Stats{}) {
			t.Errorf("empty Statistics() = %+v", got)
		}
		for i, read := range []bool{true, false, false, true, true} {
			b := dune()
			b.Title = string(rune('A' + i))
			b.Read = read
			if err := s.Add(t.Context(), b); err != nil {
				t.Fatal(err)
			}
		}
		want := Stats{Total: 5, Read: 3, Unread: 2, PercentRead: 60}
		if got := s.Statistics(); got != want {
			t.Errorf("Statistics() = %+v, want %+v", got, want)
		}
	})

	t.Run("Save", func(t *testing.T) {
		rec := &fakeRecorder{}
		s := testStore(t, WithRecorder(rec))
		if err := s.Save(t.Context()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if got := string(readFile(t, s.Path())); got != "[]\n" {
			t.Errorf("file = %q", got)
		}
		if len(rec.msgs) != 1 {
			t.Errorf("recorded %v", rec.msgs)
		}
	})

	t.Run("Save failure keeps memory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "library.json")
		// A non-empty directory in place of the file makes every write fail.
		if err := os.MkdirAll(filepath.Join(path, "x"), 0o700); err != nil {
			t.Fatal(err)
		}
		s := Open(path)
		if err := s.Add(t.Context(), dune()); err == nil {
			t.Fatal("Add() succeeded, want write error")
		}
		if len(s.List()) != 0 {
			t.Errorf("List() = %v after failed add", s.List())
		}
	})

	t.Run("recorder failure is not fatal", func(t *testing.T) {
		rec := &fakeRecorder{err: errors.New("boom")}
		s := testStore(t, WithRecorder(rec))
		if err := s.Add(t.Context(), dune()); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		if len(rec.msgs) != 1 || rec.msgs[0] != `Add "Dune"` {
			t.Errorf("recorded %v", rec.msgs)
		}
	})

	t.Run("Export", func(t *testing.T) {
		s := testStore(t)
		if err := s.Add(t.Context(), dune()); err != nil {
			t.Fatal(err)
		}
		dst := filepath.Join(t.TempDir(), "sub", "copy.json")
		if err := s.Export(dst); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if !bytes.Equal(readFile(t, s.Path()), readFile(t, dst)) {
			t.Error("export differs from library file")
		}
	})

	t.Run("Scenario", func(t *testing.T) {
		ctx := t.Context()
		s := testStore(t)
		if err := s.Add(ctx, dune()); err != nil {
			t.Fatal(err)
		}
		if got := s.List(); len(got) != 1 || got[0] != dune() {
			t.Fatalf("after add: %+v", got)
		}
		edited, err := s.Edit(ctx, "Dune", Patch{Read: true})
		if err != nil {
			t.Fatal(err)
		}
		want := dune()
		want.Read = true
		if edited != want {
			t.Fatalf("after edit: %+v", edited)
		}
		if _, err := s.Remove(ctx, "dune"); err != nil {
			t.Fatal(err)
		}
		if len(s.List()) != 0 {
			t.Fatalf("after remove: %+v", s.List())
		}
		reloaded := Open(s.Path())
		if len(reloaded.List()) != 0 || reloaded.LoadWarning() != nil {
			t.Errorf("reloaded: %+v, %v", reloaded.List(), reloaded.LoadWarning())
		}
		if got := string(readFile(t, s.Path())); got != "[]\n" {
			t.Errorf("file = %q, want empty array", got)
		}
	})
}
