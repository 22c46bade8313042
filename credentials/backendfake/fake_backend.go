package backendfake

import (
	"sync"

	"github.com/mycoding/go-session/credentials"
	"github.com/pkg/errors"
)

var _ credentials.Backend = (*FakeBackend)(nil)

// FakeBackend is an in-memory credentials.Backend for tests. Set
// FailLoads or FailStores to simulate an unavailable backend.
type FakeBackend struct {
	lock    sync.Mutex
	entries map[string]string

	FailLoads  bool
	FailStores bool

	LoadCallCount  int
	StoreCallCount int
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		entries: make(map[string]string),
	}
}

func (fb *FakeBackend) Load() (map[string]string, error) {
	fb.lock.Lock()
	defer fb.lock.Unlock()

	fb.LoadCallCount++
	if fb.FailLoads {
		return nil, errors.New("backend unavailable")
	}

	copied := make(map[string]string, len(fb.entries))
	for k, v := range fb.entries {
		copied[k] = v
	}
	return copied, nil
}

func (fb *FakeBackend) Store(entries map[string]string) error {
	fb.lock.Lock()
	defer fb.lock.Unlock()

	fb.StoreCallCount++
	if fb.FailStores {
		return errors.New("backend unavailable")
	}

	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	fb.entries = copied
	return nil
}

// Snapshot returns a copy of the stored entries for assertions.
func (fb *FakeBackend) Snapshot() map[string]string {
	fb.lock.Lock()
	defer fb.lock.Unlock()

	copied := make(map[string]string, len(fb.entries))
	for k, v := range fb.entries {
		copied[k] = v
	}
	return copied
}
