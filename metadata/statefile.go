package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
)

// schemaVersion is the current state blob format version. Bump when the blob
// gains fields that older readers cannot safely ignore.
const schemaVersion = 1

// FileStateStore persists the state blob as a single JSON file. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated blob behind.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore creates a store at the default location,
// ~/.cache/orgsync/state.json.
func NewFileStateStore() (*FileStateStore, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %v", err)
	}
	return NewFileStateStoreAt(filepath.Join(usr.HomeDir, ".cache", "orgsync", "state.json")), nil
}

// NewFileStateStoreAt creates a store at an explicit path.
func NewFileStateStoreAt(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the blob. A missing file is an empty state, not an error; a
// blob written by an unknown schema version is refused.
func (s *FileStateStore) Load() (StateBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return StateBlob{SchemaVersion: schemaVersion}, nil
	}
	if err != nil {
		return StateBlob{}, fmt.Errorf("failed to read state file: %v", err)
	}

	var blob StateBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return StateBlob{}, fmt.Errorf("failed to unmarshal state file: %v", err)
	}
	if blob.SchemaVersion > schemaVersion || blob.SchemaVersion < 1 {
		return StateBlob{}, fmt.Errorf("state file has unsupported schema version %d (supported: %d)", blob.SchemaVersion, schemaVersion)
	}
	return blob, nil
}

// Save writes the blob wholesale.
func (s *FileStateStore) Save(blob StateBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob.SchemaVersion = schemaVersion
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write state file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %v", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set state file mode: %v", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %v", err)
	}
	return nil
}

// MemoryStateStore keeps the blob in memory. Used by tests and by callers
// that do not want persistence.
type MemoryStateStore struct {
	mu    sync.Mutex
	blob  StateBlob
	Saves int
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{blob: StateBlob{SchemaVersion: schemaVersion}}
}

func (s *MemoryStateStore) Load() (StateBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Deep-copy via JSON so callers cannot alias the stored maps.
	data, err := json.Marshal(s.blob)
	if err != nil {
		return StateBlob{}, err
	}
	var out StateBlob
	if err := json.Unmarshal(data, &out); err != nil {
		return StateBlob{}, err
	}
	return out, nil
}

func (s *MemoryStateStore) Save(blob StateBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = blob
	s.Saves++
	return nil
}
