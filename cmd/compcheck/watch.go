package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// watchAndRerun calls rerun after the watched paths settle following a
// change, until ctx is cancelled. Files are watched through their parent
// directory so editors that replace files on save are still noticed.
func watchAndRerun(
	ctx context.Context,
	targets []string,
	ignore func(string) bool,
	debounce time.Duration,
	logger *zap.Logger,
	rerun func(context.Context),
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(targets) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Info("watching for changes", zap.String("dir", dir))
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevantOps == 0 || ignore(event.Name) {
				continue
			}
			logger.Debug("change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			rerun(ctx)
		}
	}
}

// watchDirs maps targets to the directories to watch, dropping duplicates
// and paths that do not exist.
func watchDirs(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	dirs := make([]string, 0, len(targets))
	for _, target := range targets {
		if target == "" {
			continue
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			abs = filepath.Dir(abs)
		}
		if !seen[abs] {
			seen[abs] = true
			dirs = append(dirs, abs)
		}
	}
	return dirs
}

func watchTargets(cfg appConfig) []string {
	targets := []string{cfg.Cases, cfg.Programs}
	if strings.ContainsRune(cfg.Compiler, '/') || strings.ContainsRune(cfg.Compiler, filepath.Separator) {
		targets = append(targets, cfg.Compiler)
	}
	return targets
}

// ignoreArtifacts filters out the files a run writes itself, which would
// otherwise trigger another run: the artifact anywhere, and anything the
// compiler leaves next to it in a shared workdir other than the watched
// case list and compiler.
func ignoreArtifacts(cfg appConfig) func(string) bool {
	artifact := cfg.Artifact
	if artifact == "" {
		artifact = "output"
	}
	workdir := absOrEmpty(cfg.Workdir)
	keep := map[string]bool{
		absOrEmpty(cfg.Cases):    true,
		absOrEmpty(cfg.Compiler): true,
	}

	return func(path string) bool {
		if filepath.Base(path) == artifact {
			return true
		}
		if workdir == "" {
			return false
		}
		abs := absOrEmpty(path)
		return filepath.Dir(abs) == workdir && !keep[abs]
	}
}

func absOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return abs
}
