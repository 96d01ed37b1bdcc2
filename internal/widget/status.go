// Package widget shares the recording flag and session count with
// processes outside the daemon through a small JSON file.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Status is the state the widget shows.
type Status struct {
	IsRecording  bool      `json:"isRecording"`
	SessionCount int       `json:"sessionCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StatusFile publishes Status to a path. Writes are atomic: readers see
// either the old file or the new one.
type StatusFile struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewStatusFile returns a publisher for path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path, now: time.Now}
}

// Path returns the file location.
func (f *StatusFile) Path() string { return f.path }

// PublishStatus writes the recording flag and session count.
func (f *StatusFile) PublishStatus(recording bool, sessionCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(Status{
		IsRecording:  recording,
		SessionCount: sessionCount,
		UpdatedAt:    f.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("create temp status: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace status: %w", err)
	}
	return nil
}

// Read loads the status at path. A missing file reads as idle with no
// sessions.
func Read(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read status: %w", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return Status{}, fmt.Errorf("parse status: %w", err)
	}
	return s, nil
}

// Watch calls fn with the current status and again whenever the file is
// replaced, until ctx is done. The parent directory is watched so atomic
// renames are seen.
func Watch(ctx context.Context, path string, fn func(Status)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	last, err := Read(path)
	if err != nil {
		return err
	}
	fn(last)

	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s, err := Read(path)
			if err != nil {
				// Partially visible writes settle on the next event.
				continue
			}
			if s != last {
				last = s
				fn(s)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
