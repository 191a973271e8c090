package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/synapsegraph/synapse-go/internal/store"
)

// batchWindow is how long the watcher waits after the last event before
// rebuilding, so bursts of saves collapse into one regeneration.
const batchWindow = 2 * time.Second

// WatchProject monitors a project for source changes and regenerates its
// knowledge graph when they settle. Each rebuild carries the persisted
// graph's version forward and bumps it before storing. Blocks until the
// context is cancelled.
func WatchProject(ctx context.Context, projectPath string, st store.GraphStore) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path: %w", err)
	}

	matcher, err := loadGitignoreMatcher(absPath)
	if err != nil {
		matcher = nil // continue without gitignore
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(absPath, path)
		if relErr != nil {
			return nil
		}
		if path != absPath && shouldSkipDir(info.Name(), relPath, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	batchTimer := time.NewTimer(batchWindow)
	batchTimer.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(absPath, event, matcher) {
				continue
			}
			// New directories must be added to the watch set themselves.
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			pending++
			batchTimer.Reset(batchWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-batchTimer.C:
			if pending == 0 {
				continue
			}
			if err := rebuild(ctx, absPath, st); err != nil {
				fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			}
			pending = 0
		}
	}
}

// rebuild regenerates the project graph and persists it, continuing the
// stored version sequence.
func rebuild(ctx context.Context, projectPath string, st store.GraphStore) error {
	g, err := Generate(ctx, projectPath)
	if err != nil {
		return err
	}

	prev, err := st.LoadGraph(ctx, g.ID())
	if err != nil {
		return err
	}
	if prev != nil {
		g.SetVersion(prev.Version())
		g.BumpVersion()
	}

	if err := st.StoreGraph(ctx, g); err != nil {
		return err
	}
	fmt.Printf("rebuilt %s: %d nodes, %d relationships (v%d)\n",
		g.ID(), g.NodeCount(), g.RelationshipCount(), g.Version())
	return nil
}

// relevantEvent reports whether a filesystem event concerns a tracked
// source file or directory.
func relevantEvent(projectPath string, event fsnotify.Event, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(projectPath, event.Name)
	if err != nil {
		return false
	}
	if matcher != nil && matcher.Match(splitPath(relPath), false) {
		return false
	}
	if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
		return !shouldSkipDir(info.Name(), relPath, matcher)
	}
	return LanguageOf(event.Name) != ""
}
