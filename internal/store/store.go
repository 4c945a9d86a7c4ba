// Package store persists the setup document: a flat ini file with a single
// [setup] section of string values.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Section is the ini section every key is stored under.
const Section = "setup"

// DefaultPath is the file name used when no path is configured. It is
// resolved against the process working directory.
const DefaultPath = "setup.ini"

// IOError reports a failure to read or write the store file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrInvalidValue is returned for keys or values that cannot be stored on a
// single ini line.
var ErrInvalidValue = errors.New("key or value not storable on one line")

// Store reads and writes the setup document. Writes are serialised: every
// write is a read-modify-write of the whole document followed by an atomic
// rename, so at most one writer may be active at a time.
type Store struct {
	path string

	mu sync.Mutex
}

// New returns a Store for the file at path. An empty path selects DefaultPath.
// The file is not touched until the first read or write.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the file path backing the store.
func (s *Store) Path() string { return s.path }

// Exists reports whether the store file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Read returns the value of key in the setup section. A missing file or key
// is reported as absent, not as an error.
func (s *Store) Read(key string) (string, bool, error) {
	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	return doc.get(Section, key)
}

// ReadAll returns every key of the setup section. A missing file yields an
// empty map.
func (s *Store) ReadAll() (map[string]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if sec := doc.section(Section); sec != nil {
		for _, e := range sec.entries {
			out[e.key] = e.value
		}
	}
	return out, nil
}

// Write sets a single key, creating the file if needed.
func (s *Store) Write(key, value string) error {
	return s.WriteAll([]KeyValue{{Key: key, Value: value}})
}

// KeyValue is one entry passed to WriteAll. A slice is used rather than a map
// so new documents keep a stable key order.
type KeyValue struct {
	Key   string
	Value string
}

// WriteAll sets every given key inside one critical section and one file
// replacement.
func (s *Store) WriteAll(values []KeyValue) error {
	for _, kv := range values {
		if strings.ContainsAny(kv.Key, "\r\n=") || strings.ContainsAny(kv.Value, "\r\n") {
			return fmt.Errorf("write %q: %w", kv.Key, ErrInvalidValue)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	for _, kv := range values {
		doc.set(Section, kv.Key, kv.Value)
	}
	return s.replace(doc.encode())
}

// Delete removes the store file. Deleting a missing file is not an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "delete", Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) load() (*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// loadLocked parses the file. The caller must hold s.mu.
func (s *Store) loadLocked() (*document, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}
	defer func() { _ = f.Close() }()

	doc, err := parse(f)
	if err != nil {
		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}
	return doc, nil
}

// replace writes data to a temp file next to the target and renames it over
// the target. The caller must hold s.mu.
func (s *Store) replace(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
