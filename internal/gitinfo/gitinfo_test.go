package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, root, rel, content, msg string, when time.Time) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(filepath.ToSlash(rel))
	require.NoError(t, err)
	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: when}
	_, err = w.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
}

func TestLastModified(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	commitFile(t, repo, root, "docs/intro.md", "# Intro\n", "Add intro\n\nbody", t1)
	commitFile(t, repo, root, "docs/guide.md", "# Guide\n", "Add guide", t2)

	r, err := Open(filepath.Join(root, "docs"))
	require.NoError(t, err)

	info, ok, err := r.LastModified(filepath.Join(root, "docs", "intro.md"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, info.Date.Equal(t1))
	assert.Equal(t, "Test Author", info.Author)
	assert.Equal(t, "Add intro", info.Message)
	assert.Len(t, info.ShortCommit(), 7)

	info, ok, err = r.LastModified(filepath.Join(root, "docs", "guide.md"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, info.Date.Equal(t2))
}

func TestLastModified_UpdatedFile(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	commitFile(t, repo, root, "a.md", "one", "first", t1)
	commitFile(t, repo, root, "a.md", "two", "second", t2)

	r, err := Open(root)
	require.NoError(t, err)
	info, ok, err := r.LastModified(filepath.Join(root, "a.md"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", info.Message)
	assert.True(t, info.Date.Equal(t2))
}

func TestLastModified_Untracked(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	commitFile(t, repo, root, "a.md", "one", "first", time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.md"), []byte("x"), 0o600))

	r, err := Open(root)
	require.NoError(t, err)
	_, ok, err := r.LastModified(filepath.Join(root, "new.md"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.LastModified(filepath.Join(filepath.Dir(root), "elsewhere.md"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastModified_EmptyRepository(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	r, err := Open(root)
	require.NoError(t, err)
	_, ok, err := r.LastModified(filepath.Join(root, "a.md"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}
