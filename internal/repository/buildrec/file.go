package buildrec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record describes one completed build.
type Record struct {
	// ID is the unique identifier of the build invocation.
	ID string `json:"id"`
	// DescriptorPath is the descriptor the build was invoked with.
	DescriptorPath string `json:"descriptor_path"`
	// ArtifactPath is where the produced artifact was written.
	ArtifactPath string `json:"artifact_path"`
	// Name is the bundle's base name.
	Name string `json:"name"`
	// Version is the bundler version that produced the artifact.
	Version string `json:"version"`
	// Checksum is the base64-encoded SHA-512 of the finished artifact.
	Checksum string `json:"checksum"`
	// StartedAt is when the build began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the artifact was fully written.
	FinishedAt time.Time `json:"finished_at"`
}

// Repository defines persistence operations for build records.
type Repository interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, record Record) error
}

// ErrNotFound is returned when the record file does not exist yet.
var ErrNotFound = errors.New("build records not found")

// recordFilePermissions keeps record files owner-writable.
const recordFilePermissions = 0o644

// FileRepository persists build records to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads all records from disk.
func (r *FileRepository) Load(_ context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadLocked()
}

// Append adds a record to the file, creating it on first use.
func (r *FileRepository) Append(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadLocked()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode build records: %w", err)
	}

	if err = os.WriteFile(r.path, data, recordFilePermissions); err != nil {
		return fmt.Errorf("write build records: %w", err)
	}

	return nil
}

// loadLocked reads the file while the mutex is held.
func (r *FileRepository) loadLocked() ([]Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read build records: %w", err)
	}

	var records []Record
	if err = json.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("decode build records: %w", err)
	}

	return records, nil
}
