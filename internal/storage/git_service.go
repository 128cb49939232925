package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	historyName  = "webdb"
	historyEmail = "webdb@localhost"
)

// GitService records document writes in a git repository rooted at the data
// directory. Only the documents passed to CommitChange are staged.
type GitService struct {
	repoDir string
	repo    *gogit.Repository
	mu      sync.Mutex
}

// NewGitService opens the repository in rootDir, initializing it if needed.
func NewGitService(rootDir string) (*GitService, error) {
	repo, err := gogit.PlainOpen(rootDir)
	if err != nil {
		repo, err = gogit.PlainInit(rootDir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo in %s: %w", rootDir, err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = historyName
		cfg.User.Email = historyEmail
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &GitService{repoDir: rootDir, repo: repo}, nil
}

// CommitChange stages files (slash separated, relative to the data directory)
// and commits them with author as the commit author. Nothing is committed
// when the files are unchanged.
func (gs *GitService) CommitChange(_ context.Context, author, message string, files ...string) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	w, err := gs.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			return fmt.Errorf("failed to stage %s: %w", f, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	// The data directory holds untracked files (catalog, other tables), so
	// only the staged state of the requested files matters.
	changed := false
	for _, f := range files {
		if s, ok := status[f]; ok && s.Staging != gogit.Unmodified && s.Staging != gogit.Untracked {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if author == "" {
		author = historyName
	}
	now := time.Now()
	_, err = w.Commit(message, &gogit.CommitOptions{
		Author:    &object.Signature{Name: author, Email: historyEmail, When: now},
		Committer: &object.Signature{Name: historyName, Email: historyEmail, When: now},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Commit represents a commit in git history.
type Commit struct {
	Hash      string    `json:"hash"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GetHistory returns up to n commits touching path, newest first.
func (gs *GitService) GetHistory(_ context.Context, path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	iter, err := gs.repo.Log(&gogit.LogOptions{FileName: &path})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// No commits yet.
		return []*Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", path, err)
	}
	defer iter.Close()

	commits := []*Commit{}
	for range n {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read history of %s: %w", path, err)
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:      c.Hash.String(),
			Author:    c.Author.Name,
			Message:   subject,
			Timestamp: c.Author.When,
		})
	}
	return commits, nil
}
