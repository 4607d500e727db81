// Package override persists the tunnel port override record.
//
// The record lives at <storage path>/wg_config.json and holds exactly two
// fields, the leased port and the history of previously leased ports. Every
// write replaces the whole file.
package override

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the name of the override file inside the storage path.
const FileName = "wg_config.json"

// FileMode restricts the override file to owner and group.
const FileMode os.FileMode = 0o660

var (
	// ErrNotFound is returned by Read when no override file exists.
	ErrNotFound = errors.New("override file not found")
	// ErrMalformed is returned by Read when the file is valid JSON but
	// carries no WG_PORT.
	ErrMalformed = errors.New("override file has no WG_PORT")
)

// Record is the persisted port override.
type Record struct {
	Port    int   `json:"WG_PORT"`
	History []int `json:"WG_HISTORY_PORT"`
}

// Reset is the record written on release.
func Reset() Record {
	return Record{Port: 0, History: []int{}}
}

// File reads and writes the override file in a storage directory.
type File struct {
	dir string
}

// NewFile returns a File rooted at dir.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Path returns the absolute location of the override file.
func (f *File) Path() string {
	return filepath.Join(f.dir, FileName)
}

// Read loads the record. Fields other than WG_PORT and WG_HISTORY_PORT are
// ignored; a missing WG_HISTORY_PORT reads as an empty history.
func (f *File) Read() (*Record, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}

	var doc struct {
		Port    *int   `json:"WG_PORT"`
		History *[]int `json:"WG_HISTORY_PORT"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse override file: %w", err)
	}
	if doc.Port == nil {
		return nil, ErrMalformed
	}

	rec := Record{Port: *doc.Port, History: []int{}}
	if doc.History != nil && *doc.History != nil {
		rec.History = *doc.History
	}
	return &rec, nil
}

// Write replaces the override file with rec. The record is written to a
// temporary file in the same directory and renamed into place, so readers
// see either the previous record or the new one.
func (f *File) Write(rec Record) error {
	if rec.History == nil {
		rec.History = []int{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode override record: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create override file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write override file: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set override file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync override file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close override file: %w", err)
	}

	if err := os.Rename(tmpName, f.Path()); err != nil {
		return fmt.Errorf("failed to replace override file: %w", err)
	}
	return nil
}
