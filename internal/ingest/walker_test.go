package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkProject(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "sub/lib.go", "package sub\n")
	writeFile(t, root, "script.py", "print('hi')\n")
	writeFile(t, root, "notes.txt", "not source\n")
	writeFile(t, root, "ignored.go", "package main\n")
	writeFile(t, root, "secret/hidden.go", "package secret\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {}\n")
	writeFile(t, root, ".gitignore", "ignored.go\nsecret/\n")

	entries, err := WalkProject(root)
	require.NoError(t, err)

	var rels []string
	for _, entry := range entries {
		rels = append(rels, entry.RelPath)
	}
	assert.ElementsMatch(t, []string{"main.go", "sub/lib.go", "script.py"}, rels)

	for _, entry := range entries {
		assert.NotEmpty(t, entry.Content, entry.RelPath)
		assert.Greater(t, entry.Size, int64(0), entry.RelPath)
		assert.NotZero(t, entry.ModTime, entry.RelPath)
		assert.True(t, filepath.IsAbs(entry.AbsPath), entry.RelPath)
		if entry.RelPath == "script.py" {
			assert.Equal(t, "python", entry.Language)
		}
	}
}

func TestWalkProject_NoGitignore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	entries, err := WalkProject(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "go", entries[0].Language)
}

func TestLanguageOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "go", LanguageOf("a/b/c.go"))
	assert.Equal(t, "python", LanguageOf("SCRIPT.PY"))
	assert.Equal(t, "typescript", LanguageOf("app.ts"))
	assert.Equal(t, "", LanguageOf("README.md"))
	assert.Equal(t, "", LanguageOf("Makefile"))
}
