// Package gitinfo reads last-modified information for content files from the
// git repository that contains them.
package gitinfo

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Info describes the last commit that touched a file.
type Info struct {
	Commit  string
	Author  string
	Date    time.Time
	Message string
}

// ShortCommit returns the abbreviated commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}

// Repo answers last-modified queries for one repository. Results are cached;
// a Repo is meant to live for a single build.
type Repo struct {
	repo *git.Repository
	root string

	mu    sync.Mutex
	cache map[string]lookup
}

type lookup struct {
	info Info
	ok   bool
}

// Open finds the repository containing path, searching parent directories.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root(), cache: map[string]lookup{}}, nil
}

// Root returns the worktree root.
func (r *Repo) Root() string { return r.root }

// LastModified returns the newest commit touching path. ok is false when the
// file has no history (untracked or outside the repository).
func (r *Repo) LastModified(path string) (Info, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, false, err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Info{}, false, nil
	}
	rel = filepath.ToSlash(rel)

	r.mu.Lock()
	defer r.mu.Unlock()
	if hit, ok := r.cache[rel]; ok {
		return hit.info, hit.ok, nil
	}

	info, ok, err := r.query(rel)
	if err != nil {
		return Info{}, false, err
	}
	r.cache[rel] = lookup{info: info, ok: ok}
	return info, ok, nil
}

func (r *Repo) query(rel string) (Info, bool, error) {
	iter, err := r.repo.Log(&git.LogOptions{FileName: &rel, Order: git.LogOrderCommitterTime})
	if err != nil {
		// An empty repository has no HEAD yet.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Info{}, false, nil
		}
		return Info{}, false, fmt.Errorf("git log %s: %w", rel, err)
	}
	defer iter.Close()

	c, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, fmt.Errorf("git log %s: %w", rel, err)
	}
	return fromCommit(c), true, nil
}

func fromCommit(c *object.Commit) Info {
	return Info{
		Commit:  c.Hash.String(),
		Author:  c.Author.Name,
		Date:    c.Committer.When,
		Message: firstLine(c.Message),
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
