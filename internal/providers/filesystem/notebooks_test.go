package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notebookJSON = `{"cells": [], "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "a.ipynb", notebookJSON)
	writeFile(t, root, "sub/b.ipynb", notebookJSON)
	writeFile(t, root, "sub/deeper/c.ipynb", notebookJSON)
	writeFile(t, root, "sub/.ipynb_checkpoints/b-checkpoint.ipynb", notebookJSON)
	writeFile(t, root, ".hidden/d.ipynb", notebookJSON)
	writeFile(t, root, ".scratch.ipynb", notebookJSON)
	writeFile(t, root, "sub/.draft.ipynb", notebookJSON)
	writeFile(t, root, "notes.txt", "not a notebook")
	writeFile(t, root, "broken.ipynb", "")
	return root
}

func relPaths(nbs []Notebook) []string {
	out := make([]string, len(nbs))
	for i, nb := range nbs {
		out[i] = nb.RelativePath
	}
	return out
}

func TestFindNotebooks(t *testing.T) {
	root := setupTree(t)

	t.Run("default pattern", func(t *testing.T) {
		nbs, err := FindNotebooks(context.Background(), root, FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.ipynb", "broken.ipynb", "sub/b.ipynb", "sub/deeper/c.ipynb"}, relPaths(nbs))

		for _, nb := range nbs {
			assert.Equal(t, filepath.Base(nb.Path), nb.Name)
			assert.True(t, filepath.IsAbs(nb.Path))
			assert.False(t, nb.Modified.IsZero())
		}
	})

	t.Run("hidden files and directories on request", func(t *testing.T) {
		nbs, err := FindNotebooks(context.Background(), root, FindOptions{IncludeHidden: true})
		require.NoError(t, err)
		assert.Contains(t, relPaths(nbs), ".hidden/d.ipynb")
		assert.Contains(t, relPaths(nbs), ".scratch.ipynb")
		assert.Contains(t, relPaths(nbs), "sub/.draft.ipynb")
		assert.NotContains(t, relPaths(nbs), "sub/.ipynb_checkpoints/b-checkpoint.ipynb")
	})

	t.Run("custom pattern", func(t *testing.T) {
		nbs, err := FindNotebooks(context.Background(), root, FindOptions{Pattern: "sub/*.ipynb"})
		require.NoError(t, err)
		assert.Equal(t, []string{"sub/b.ipynb"}, relPaths(nbs))
	})

	t.Run("inspect drops non json files", func(t *testing.T) {
		nbs, err := FindNotebooks(context.Background(), root, FindOptions{Inspect: true})
		require.NoError(t, err)
		assert.NotContains(t, relPaths(nbs), "broken.ipynb")
		require.NotEmpty(t, nbs)
		assert.Contains(t, nbs[0].MimeType, "application/json")
	})

	t.Run("limit keeps the first paths in order", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			nbs, err := FindNotebooks(context.Background(), root, FindOptions{Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"a.ipynb", "broken.ipynb"}, relPaths(nbs))
		}
	})
}

func TestFindNotebooksErrors(t *testing.T) {
	root := setupTree(t)

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := FindNotebooks(context.Background(), root, FindOptions{Pattern: "[a-"})
		assert.Error(t, err)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := FindNotebooks(context.Background(), filepath.Join(root, "nope"), FindOptions{})
		assert.Error(t, err)
	})

	t.Run("root is a file", func(t *testing.T) {
		_, err := FindNotebooks(context.Background(), filepath.Join(root, "a.ipynb"), FindOptions{})
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FindNotebooks(ctx, root, FindOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
