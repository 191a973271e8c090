// Package ingest builds knowledge graphs from source trees.
//
// It is the graph generator: it walks a project, analyzes supported source
// files, and produces the node/relationship batches the store persists. The
// query engine treats its output as opaque input.
package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileEntry is one source file picked up by the walker.
type FileEntry struct {
	// RelPath is the project-relative path.
	RelPath string

	// AbsPath is the absolute path.
	AbsPath string

	// Language is the detected language key (e.g., "go").
	Language string

	// Content is the raw file content.
	Content []byte

	// Size and ModTime come from the file's stat info.
	Size    int64
	ModTime int64
}

// languageByExt maps file extensions to language keys.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rs":   "rust",
}

// ignoredDirs are always skipped regardless of gitignore.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".synapse":     true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
}

// WalkProject collects all supported source files under projectPath,
// honoring the project's .gitignore and the built-in skip list.
func WalkProject(projectPath string) ([]FileEntry, error) {
	matcher, err := loadGitignoreMatcher(projectPath)
	if err != nil {
		matcher = nil // continue without gitignore
	}

	var entries []FileEntry
	err = filepath.Walk(projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, relErr := filepath.Rel(projectPath, path)
		if relErr != nil {
			return nil
		}

		if info.IsDir() {
			if path != projectPath && shouldSkipDir(info.Name(), relPath, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		language := LanguageOf(path)
		if language == "" {
			return nil
		}
		if matcher != nil && matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil // unreadable file, skip
		}

		entries = append(entries, FileEntry{
			RelPath:  filepath.ToSlash(relPath),
			AbsPath:  path,
			Language: language,
			Content:  content,
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// LanguageOf returns the language key for a path, or "" if unsupported.
func LanguageOf(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// shouldSkipDir reports whether a directory is excluded from the walk.
func shouldSkipDir(name, relPath string, matcher gitignore.Matcher) bool {
	if ignoredDirs[name] {
		return true
	}
	if matcher != nil && matcher.Match(splitPath(relPath), true) {
		return true
	}
	return false
}

// loadGitignoreMatcher parses the project root .gitignore, if present.
func loadGitignoreMatcher(projectPath string) (gitignore.Matcher, error) {
	gitignorePath := filepath.Join(projectPath, ".gitignore")
	content, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), nil
}

func splitPath(relPath string) []string {
	return strings.Split(filepath.ToSlash(relPath), "/")
}
