package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists the session credential.
type Store interface {
	// Load returns the persisted credential, or (nil, nil) when absent or
	// unreadable as JSON. Malformed content is treated as absence.
	Load() (*Credential, error)
	// Save atomically replaces the persisted credential.
	Save(cred *Credential) error
	// Clear removes the persisted credential.
	Clear() error
}

// DefaultPath returns the per-user credential file location,
// e.g. ~/.config/livectl/auth.json on Linux.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "livectl", "auth.json"), nil
}

// FileStore keeps the credential in a single JSON file. Writes go to a temp
// file in the same directory followed by a rename, so a crash mid-write never
// leaves a partial credential behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Credential, error) {
	cred, err := s.loadRaw()
	if err != nil || cred == nil {
		return nil, err
	}
	if !cred.Valid() {
		return nil, nil
	}
	return cred, nil
}

// loadRaw reads and parses the file without completeness checks. The keyring
// store needs this to read files whose token fields live elsewhere.
func (s *FileStore) loadRaw() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		slog.Warn("credential file corrupt, treating as logged out", "path", s.path, "error", err)
		return nil, nil
	}
	return &cred, nil
}

func (s *FileStore) Save(cred *Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to persist incomplete credential")
	}
	return s.saveRaw(cred)
}

// saveRaw writes without completeness checks (see KeyringStore.Save).
func (s *FileStore) saveRaw(cred *Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-*.json")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp credential file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
