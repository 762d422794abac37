package primitives

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Filepath is a type-safe wrapper around the paths of table files.
//
// Example usage:
//
//	dataDir := primitives.Filepath("/data")
//	tablePath := dataDir.Join("orders.bin")
//	if tablePath.Exists() {
//	    tablePath.Remove()
//	}
type Filepath string

// Hash derives the TableID of the file at this path.
// The same path always produces the same ID.
func (f Filepath) Hash() TableID {
	return TableID(xxhash.Sum64String(string(f.Clean())))
}

func (f Filepath) String() string {
	return string(f)
}

// Join joins path elements onto this path.
func (f Filepath) Join(elem ...string) Filepath {
	parts := append([]string{string(f)}, elem...)
	return Filepath(filepath.Join(parts...))
}

func (f Filepath) Base() string {
	return filepath.Base(string(f))
}

func (f Filepath) Dir() string {
	return filepath.Dir(string(f))
}

// Exists reports whether a file exists at this path.
func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}

// Remove deletes the file. A missing file is not an error.
func (f Filepath) Remove() error {
	err := os.Remove(string(f))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f Filepath) IsEmpty() bool {
	return strings.TrimSpace(string(f)) == ""
}

func (f Filepath) Clean() Filepath {
	if f == "" {
		return f
	}
	return Filepath(filepath.Clean(string(f)))
}
