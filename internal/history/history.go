// Package history records successive versions of table files in a git
// repository using go-git (pure Go, no git binary dependency).
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies who made a change.
type Author struct {
	Name  string
	Email string
}

// Commit is one recorded version.
type Commit struct {
	Hash        string
	Message     string
	Body        string
	Author      string
	AuthorEmail string
	Date        time.Time
}

// Repo is a git repository holding table files.
type Repo struct {
	dir    string
	author Author
	repo   *gogit.Repository
	mu     sync.Mutex
}

// Open opens the repository at dir, initializing it if needed.
func Open(_ context.Context, dir string, author Author) (*Repo, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		// Not a repository yet.
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = author.Name
		cfg.User.Email = author.Email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &Repo{dir: dir, author: author, repo: repo}, nil
}

// Dir returns the repository root.
func (r *Repo) Dir() string {
	return r.dir
}

// Commit stages files and commits them with msg.
//
// It returns false without committing when none of the files changed.
func (r *Repo) Commit(_ context.Context, msg string, files ...string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	rels := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := r.rel(f)
		if err != nil {
			return false, err
		}
		if _, err := w.Add(rel); err != nil {
			return false, fmt.Errorf("failed to stage %s: %w", rel, err)
		}
		rels = append(rels, rel)
	}

	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	staged := false
	for _, rel := range rels {
		if s := status.File(rel).Staging; s != gogit.Unmodified && s != gogit.Untracked {
			staged = true
		}
	}
	if !staged {
		return false, nil
	}

	now := time.Now()
	sig := &object.Signature{Name: r.author.Name, Email: r.author.Email, When: now}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// Log returns up to n commits touching file, newest first.
//
// n is capped at 1000. If n <= 0, defaults to 1000.
func (r *Repo) Log(_ context.Context, file string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	rel, err := r.rel(file)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	iter, err := r.repo.Log(&gogit.LogOptions{FileName: &rel})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// No commits yet.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:        c.Hash.String(),
			Message:     subject,
			Body:        strings.TrimSpace(body),
			Author:      c.Author.Name,
			AuthorEmail: c.Author.Email,
			Date:        c.Author.When,
		})
	}
	return commits, nil
}

// FileAt returns the content of file at commit hash. "HEAD" is accepted.
func (r *Repo) FileAt(_ context.Context, hash, file string) ([]byte, error) {
	rel, err := r.rel(file)
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

// rel converts path to a slash-separated path relative to the repository.
func (r *Repo) rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside repository %s", path, r.dir)
	}
	return filepath.ToSlash(rel), nil
}
