package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsegraph/synapse-go/internal/ingest"
	"github.com/synapsegraph/synapse-go/internal/store"
)

func TestAnalyzeCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("AnalyzeGoProject", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()

		files := map[string]string{
			"main.go": `package main

import "fmt"

func main() {
	fmt.Println("hello")
}
`,
			"service.go": `package main

type Service struct{}

func (s *Service) Run() {}
`,
		}
		for path, content := range files {
			require.NoError(t, os.WriteFile(filepath.Join(tmpDir, path), []byte(content), 0o644))
		}

		cmd := &AnalyzeCmd{Path: tmpDir}
		require.NoError(t, cmd.Run())

		// Analysis leaves behind the data directory and metadata.
		_, err := os.Stat(filepath.Join(tmpDir, ".synapse"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(tmpDir, ".synapse", "meta.json"))
		assert.NoError(t, err)

		// The stored graph is loadable under the derived ID.
		st := store.NewBadgerStore()
		require.NoError(t, st.Initialize(filepath.Join(tmpDir, ".synapse", "badger")))
		defer func() { _ = st.Close() }()

		g, err := st.LoadGraph(t.Context(), ingest.GraphIDForPath(tmpDir))
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Greater(t, g.NodeCount(), 0)
	})

	t.Run("ReanalysisBumpsVersion", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "main.go"), []byte("package main\n"), 0o644))

		cmd := &AnalyzeCmd{Path: tmpDir}
		require.NoError(t, cmd.Run())
		require.NoError(t, cmd.Run())

		st := store.NewBadgerStore()
		require.NoError(t, st.Initialize(filepath.Join(tmpDir, ".synapse", "badger")))
		defer func() { _ = st.Close() }()

		g, err := st.LoadGraph(t.Context(), ingest.GraphIDForPath(tmpDir))
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Equal(t, int64(2), g.Version())
	})

	t.Run("InvalidPath", func(t *testing.T) {
		t.Parallel()
		cmd := &AnalyzeCmd{Path: "/nonexistent/path"}
		assert.Error(t, cmd.Run())
	})

	t.Run("NotADirectory", func(t *testing.T) {
		t.Parallel()
		tmpFile := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0o644))

		cmd := &AnalyzeCmd{Path: tmpFile}
		assert.Error(t, cmd.Run())
	})
}

func TestCLI_Execute(t *testing.T) {
	t.Run("AnalyzeViaCLI", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "main.go"), []byte("package main\n"), 0o644))

		cli := NewCLI()
		require.NoError(t, cli.Execute([]string{"analyze", tmpDir}))

		_, err := os.Stat(filepath.Join(tmpDir, ".synapse", "meta.json"))
		assert.NoError(t, err)
	})
}

func TestLoadStorage_NoGraph(t *testing.T) {
	tmpDir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(cwd) }()

	_, _, err = loadStorage()
	assert.ErrorContains(t, err, "Run 'synapse analyze' first")
}
