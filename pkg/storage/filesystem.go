package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage hands out per-request workspaces under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads/tmp"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// BaseDir returns the root under which workspaces are created.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// NewWorkspace creates an isolated directory for one request's artifacts.
func (s *LocalStorage) NewWorkspace() (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{id: id, dir: dir}, nil
}

// CleanupOlderThan removes workspaces whose last modification predates the TTL and returns their names.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list uploads directory: %w", err)
	}
	deleted := make([]string, 0)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("stat upload entry: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return deleted, fmt.Errorf("remove stale upload: %w", err)
		}
		deleted = append(deleted, entry.Name())
	}
	return deleted, nil
}

// Remove deletes a workspace directory by path. Paths outside the base directory are refused.
func (s *LocalStorage) Remove(dir string) error {
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("resolve uploads directory: %w", err)
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	if filepath.Dir(target) != base {
		return fmt.Errorf("refusing to remove %s outside %s", target, base)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// Workspace owns every ephemeral file produced while handling a single upload.
// Cleanup removes all of them and is safe to call more than once.
type Workspace struct {
	id  string
	dir string

	mu        sync.Mutex
	artifacts []string
	cleaned   bool
}

// ID identifies the workspace in logs.
func (w *Workspace) ID() string {
	return w.id
}

// Dir is the directory holding the workspace files.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path resolves a file name inside the workspace and records it as an artifact.
func (w *Workspace) Path(name string) string {
	path := filepath.Join(w.dir, filepath.Base(name))
	w.Track(path)
	return path
}

// Track registers an externally created file for removal at cleanup.
func (w *Workspace) Track(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.artifacts = append(w.artifacts, path)
}

// Save writes data to name inside the workspace.
func (w *Workspace) Save(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write workspace file: %w", err)
	}
	return path, nil
}

// Cleanup deletes every tracked artifact and the workspace directory.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cleaned {
		return nil
	}
	var errs []error
	for _, path := range w.artifacts {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(w.dir); err != nil {
		errs = append(errs, err)
	}
	w.cleaned = true
	w.artifacts = nil
	if len(errs) > 0 {
		return fmt.Errorf("cleanup workspace %s: %w", w.id, errors.Join(errs...))
	}
	return nil
}
