package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads connectivity from a state file containing "online" or
// "offline". A missing or unrecognised file counts as online, so operators
// force offline mode by writing "offline" and undo it by removing the file.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

// Watch reports the current file state, then one sample per change to the
// file. The parent directory is watched so the file may be created later.
func (f *FileSource) Watch(ctx context.Context, report func(bool)) error {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("connectivity: watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.Path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("connectivity: watch %s: %w", dir, err)
	}
	logger.Info("connectivity: watching state file", slog.String("path", f.Path))

	report(ReadStateFile(f.Path))

	name := filepath.Clean(f.Path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			report(ReadStateFile(f.Path))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("connectivity: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// ReadStateFile returns the connectivity recorded in path.
func ReadStateFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("connectivity: read state file", slog.String("path", path), slog.String("error", err.Error()))
		}
		return true
	}
	return strings.TrimSpace(strings.ToLower(string(data))) != "offline"
}

// WriteStateFile records online or offline in path. The content is written to
// a temporary file in the same directory and renamed over path, so a watcher
// never reads a truncated file.
func WriteStateFile(path string, online bool) error {
	state := "offline"
	if online {
		state = "online"
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("connectivity: write state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(state + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("connectivity: write state file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("connectivity: write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("connectivity: write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("connectivity: replace state file: %w", err)
	}
	return nil
}
