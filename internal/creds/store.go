package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"instagram-mcp/pkg/logging"
)

// FileStore persists the credential record as a JSON file.
//
// SECURITY: the file holds bearer credentials. It is written with 0600
// permissions inside a 0700 directory, and token values are never logged.
//
// Writes go to a temp file in the same directory followed by a rename, so a
// reader (including one in another process) never observes a torn record.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted record. A store that was never written returns
// (nil, nil): absence is a distinct state, not an error. Data that exists but
// cannot be parsed into a valid record fails with ErrStoreCorrupt.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreCorrupt, s.path, err)
	}

	// Unknown fields are tolerated for forward compatibility.
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrStoreCorrupt, s.path, err)
	}

	if record.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s has no access_token", ErrStoreCorrupt, s.path)
	}

	return &record, nil
}

// Save atomically replaces the persisted record. The previous record is never
// observably half-overwritten, even if the process dies mid-write.
func (s *FileStore) Save(record *Record) error {
	if record == nil || record.AccessToken == "" {
		return fmt.Errorf("%w: refusing to save record without access_token", ErrStoreWriteFailed)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStoreWriteFailed, dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing temp file: %v", ErrStoreWriteFailed, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming into place: %v", ErrStoreWriteFailed, err)
	}

	logging.Debug("Creds", "Credential record saved to %s (expires %s)",
		s.path, record.ExpiresAt().Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

// Delete removes the persisted record. Deleting an absent record is not an
// error. This is only ever driven by an explicit user action; the lifecycle
// manager never deletes a record on its own.
func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", ErrStoreWriteFailed, s.path, err)
	}
	return nil
}
