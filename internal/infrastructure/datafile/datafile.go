// Package datafile is the file-backed key/value object store used when
// Railrunner is configured with `storage.backend: file`.
//
// Each object is one indented JSON document under the data directory. Keys
// may contain a single level of nesting ("maps/<map_id>"), which is how
// map-scoped data is kept apart from global data. Writes go through a
// temporary file and rename so a crash never leaves a half-written object.
package datafile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
	fileExtension   = ".json"
)

// ErrNotFound is returned by ReadObject when the key does not exist.
var ErrNotFound = errors.New("datafile: object not found")

// ErrInvalidKey is returned for empty keys or keys escaping the data directory.
var ErrInvalidKey = errors.New("datafile: invalid key")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store reads and writes JSON objects under a directory.
type Store struct {
	dir string
}

// Open creates the data directory if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty data directory", ErrInvalidKey)
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether key has been written.
func (s *Store) Exists(key string) bool {
	path, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ReadObject decodes the object stored under key into v.
func (s *Store) ReadObject(key string, v any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// WriteObject encodes v and replaces the object stored under key.
func (s *Store) WriteObject(key string, v any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close() //nolint:errcheck // chmod error takes precedence
		return fmt.Errorf("setting permissions on %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

// MapKey returns the key for map-scoped data.
func MapKey(prefix, mapID string) string {
	return prefix + "/" + SanitiseKey(mapID)
}

// SanitiseKey replaces characters that are unsafe in file names.
func SanitiseKey(part string) string {
	part = unsafeChars.ReplaceAllString(part, "_")
	part = strings.Trim(part, ".")
	if part == "" {
		return "_"
	}
	return part
}

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, clean+fileExtension), nil
}
