// Package sessionstore persists the host session cookies of panelctl between runs.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

const sessionsFile = "sessions.json"

// Cookie is a persisted session cookie.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FileStore keeps the cookies of every server panelctl talked to in one JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// DefaultDir returns ~/.panelhost.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".panelhost"), nil
}

// NewFileStore creates a store in dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, sessionsFile)}, nil
}

func (s *FileStore) readAll() (map[string][]Cookie, error) {
	all := map[string][]Cookie{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return all, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	return all, nil
}

// Load returns the cookies saved for server as http cookies.
func (s *FileStore) Load(server string) ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]*http.Cookie, 0, len(all[server]))
	for _, c := range all[server] {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return out, nil
}

// Save replaces the cookies of server. An empty list forgets the server.
func (s *FileStore) Save(server string, cookies []*http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		delete(all, server)
	} else {
		saved := make([]Cookie, 0, len(cookies))
		for _, c := range cookies {
			saved = append(saved, Cookie{Name: c.Name, Value: c.Value})
		}
		all[server] = saved
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}
