package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowsmith/pkg/persistence"
)

// repository stores one JSON document per record in a directory.
type repository[T any] struct {
	dir string
}

func newRepository[T any](root, name string) *repository[T] {
	return &repository[T]{dir: filepath.Join(root, name)}
}

func (r *repository[T]) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", persistence.ErrInvalidID, id)
	}

	return filepath.Join(r.dir, id+".json"), nil
}

// all loads every record; the order follows the file names.
func (r *repository[T]) all() ([]*T, error) {
	files, err := fs.Glob(os.DirFS(r.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.dir, err)
	}

	records := make([]*T, 0, len(files))

	for _, file := range files {
		record, err := r.get(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

func (r *repository[T]) get(id string) (*T, error) {
	filePath, err := r.path(id)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", persistence.ErrCorruptRecord, filePath, err)
	}

	return &record, nil
}

// save writes the record to a temporary file and renames it into place so
// readers never observe a partially written document.
func (r *repository[T]) save(id string, record *T) error {
	filePath, err := r.path(id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", r.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}

	return os.Rename(tmp.Name(), filePath)
}

func (r *repository[T]) delete(id string) error {
	filePath, err := r.path(id)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", filePath, err)
	}

	return nil
}
