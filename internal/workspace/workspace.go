// Package workspace manages isolated working directories for hollons.
// Each claimed task gets its own directory so concurrent workers never
// touch each other's files.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workspace represents an isolated working directory owned by one
// worker for the duration of one task.
type Workspace struct {
	// Path is the absolute path to the workspace directory.
	Path string
	// WorkerID is the hollon that owns this workspace.
	WorkerID string
	// TaskID is the task the workspace was created for.
	TaskID string
	// CreatedAt is when the workspace was created.
	CreatedAt time.Time
}

// Provider defines the interface for workspace management.
// This interface allows mocking workspace operations in tests.
type Provider interface {
	// Create creates a workspace for the given worker and task.
	Create(workerID, taskID string) (*Workspace, error)
	// Remove deletes a workspace directory.
	Remove(path string) error
	// List returns all workspaces under the base directory.
	List() ([]*Workspace, error)
	// SweepStale removes workspaces older than maxAge and returns how
	// many were removed.
	SweepStale(maxAge time.Duration) (int, error)
	// BaseDir returns the base directory where workspaces are created.
	BaseDir() string
}

// Verify Manager implements Provider at compile time.
var _ Provider = (*Manager)(nil)

// Manager creates and reclaims workspace directories under a base dir.
type Manager struct {
	baseDir string
	mu      sync.Mutex
}

// NewManager creates a Manager rooted at baseDir.
// baseDir defaults to ~/.cache/hollon/workspaces.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".cache", "hollon", "workspaces")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace base directory: %w", err)
	}

	return &Manager{baseDir: baseDir}, nil
}

// Create creates a workspace directory for the given worker and task.
func (m *Manager) Create(workerID, taskID string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if workerID == "" {
		workerID = uuid.New().String()
	}
	if taskID == "" {
		taskID = uuid.New().String()
	}

	name := fmt.Sprintf("%s--%s", workerID, taskID)
	path := filepath.Join(m.baseDir, name)

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{
		Path:      path,
		WorkerID:  workerID,
		TaskID:    taskID,
		CreatedAt: time.Now(),
	}, nil
}

// Remove deletes a workspace directory. The path must be inside the
// base directory; anything else is rejected.
func (m *Manager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInside(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// List returns all workspaces currently on disk.
func (m *Manager) List() ([]*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list()
}

func (m *Manager) list() ([]*Workspace, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read workspace base directory: %w", err)
	}

	var workspaces []*Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		workerID, taskID, ok := strings.Cut(entry.Name(), "--")
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		workspaces = append(workspaces, &Workspace{
			Path:      filepath.Join(m.baseDir, entry.Name()),
			WorkerID:  workerID,
			TaskID:    taskID,
			CreatedAt: info.ModTime(),
		})
	}
	return workspaces, nil
}

// SweepStale removes workspaces whose directories have not been touched
// for maxAge. Run at startup to reclaim space left by crashed workers.
func (m *Manager) SweepStale(maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	workspaces, err := m.list()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, ws := range workspaces {
		if ws.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(ws.Path); err != nil {
			return removed, fmt.Errorf("remove stale workspace %s: %w", ws.Path, err)
		}
		removed++
	}
	return removed, nil
}

// BaseDir returns the base directory where workspaces are created.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

func (m *Manager) checkInside(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}
	base, err := filepath.Abs(m.baseDir)
	if err != nil {
		return fmt.Errorf("resolve base directory: %w", err)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %s is outside workspace base %s", path, m.baseDir)
	}
	return nil
}
