// Package history keeps the revisions of the library file in a git repository,
// using go-git (pure Go, no git binary dependency).
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxLog caps Log.
const maxLog = 1000

// Commit is one revision of a file.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// Repo is a git repository holding the library file.
type Repo struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// Open opens the git repository at dir, initializing it if needed.
//
// name and email sign the commits.
func Open(dir, name, email string) (*Repo, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if !errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("failed to open git repo: %w", err)
		}
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Repo{dir: dir, name: name, email: email, repo: repo}, nil
}

// Record stages path and commits it with msg. Nothing is committed when the
// file did not change.
func (r *Repo) Record(_ context.Context, path, msg string) error {
	rel, err := r.rel(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(rel); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	// Status only lists changed files.
	if fs, ok := status[rel]; !ok || fs.Staging == gogit.Unmodified {
		return nil
	}

	now := time.Now()
	sig := &object.Signature{Name: r.name, Email: r.email, When: now}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Log returns up to n commits touching path, newest first. n is capped at
// 1000; n <= 0 means the cap.
func (r *Repo) Log(_ context.Context, path string, n int) ([]*Commit, error) {
	rel, err := r.rel(path)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > maxLog {
		n = maxLog
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	iter, err := r.repo.Log(&gogit.LogOptions{FileName: &rel})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// No commits yet.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			Date:    c.Author.When,
		})
	}
	return commits, nil
}

// FileAt returns the content of path at commit hash. "HEAD" is accepted.
func (r *Repo) FileAt(_ context.Context, hash, path string) ([]byte, error) {
	rel, err := r.rel(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h := plumbing.NewHash(hash)
	if hash == "HEAD" {
		ref, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		h = ref.Hash()
	} else if len(hash) < 40 {
		resolved, err := r.repo.ResolveRevision(plumbing.Revision(hash))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", hash, err)
		}
		h = *resolved
	}

	c, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	f, err := c.File(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

// rel returns path relative to the repository root, with forward slashes.
func (r *Repo) rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of repository %s", path, r.dir)
	}
	return filepath.ToSlash(rel), nil
}
