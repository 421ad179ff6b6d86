package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileSessionRepository implements SessionRepository using file-based storage
type FileSessionRepository struct {
	dataDir  string
	sessions map[string]Session // keyed by session name
	mutex    sync.RWMutex
}

// NewFileSessionRepository creates a new file-based session repository
func NewFileSessionRepository(dataDir string) (*FileSessionRepository, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileSessionRepository{
		dataDir:  dataDir,
		sessions: make(map[string]Session),
	}

	// Load existing data
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Save stores or replaces the session stored under name.
func (r *FileSessionRepository) Save(ctx context.Context, name string, sess Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, existed := r.sessions[name]
	r.sessions[name] = sess

	if err := r.save(); err != nil {
		// Rollback
		if existed {
			r.sessions[name] = previous
		} else {
			delete(r.sessions, name)
		}
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// Get returns the session stored under name.
func (r *FileSessionRepository) Get(ctx context.Context, name string) (Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sess, ok := r.sessions[name]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session stored under name.
func (r *FileSessionRepository) Delete(ctx context.Context, name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, existed := r.sessions[name]
	if !existed {
		return nil
	}
	delete(r.sessions, name)

	if err := r.save(); err != nil {
		// Rollback
		r.sessions[name] = previous
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// List returns the names of all stored sessions in sorted order.
func (r *FileSessionRepository) List(ctx context.Context) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// filePath returns the path of the sessions data file
func (r *FileSessionRepository) filePath() string {
	return filepath.Join(r.dataDir, "sessions.json")
}

// load reads the sessions data file into memory
func (r *FileSessionRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read sessions file: %w", err)
	}

	if err := json.Unmarshal(data, &r.sessions); err != nil {
		return fmt.Errorf("failed to parse sessions file: %w", err)
	}
	return nil
}

// save writes the in-memory sessions to the data file
func (r *FileSessionRepository) save() error {
	data, err := json.MarshalIndent(r.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	// Session files hold live credentials, keep them owner-only.
	if err := os.WriteFile(r.filePath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	return nil
}
