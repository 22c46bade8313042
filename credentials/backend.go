package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Backend persists credential entries as a single unit. Load returns the
// full entry map; Store replaces it. Store must be atomic - a reader
// never observes a partially written set of entries.
type Backend interface {
	Load() (map[string]string, error)
	Store(entries map[string]string) error
}

// FileBackend keeps the entries in a JSON file. Writes go through a
// temporary file and a rename so a crash mid-write leaves the previous
// contents intact.
type FileBackend struct {
	path string
	lock sync.Mutex
}

var _ Backend = (*FileBackend)(nil)

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (fb *FileBackend) Load() (map[string]string, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()

	data, err := os.ReadFile(fb.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileBackend.Load] ReadFile")
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "[FileBackend.Load] Unmarshal")
	}
	return entries, nil
}

func (fb *FileBackend) Store(entries map[string]string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileBackend.Store] Marshal")
	}

	dir := filepath.Dir(fb.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileBackend.Store] MkdirAll")
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "[FileBackend.Store] CreateTemp")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileBackend.Store] Write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileBackend.Store] Close")
	}

	if err := os.Rename(tmpName, fb.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileBackend.Store] Rename")
	}
	return nil
}
