package datrie

import (
	"context"
	"fmt"
	"sync"

	"github.com/oarkflow/datrie/utils"
)

// Manager is a registry of named trie instances.
type Manager struct {
	tries map[string]Trie
	mutex sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		tries: make(map[string]Trie),
	}
}

// Add registers t under name and returns the name. An empty name is
// replaced by a generated one.
func (m *Manager) Add(name string, t Trie) string {
	if name == "" {
		name = fmt.Sprintf("trie-%d", utils.NewID().Int64())
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tries[name] = t
	return name
}

func (m *Manager) Get(name string) (Trie, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, ok := m.tries[name]
	return t, ok
}

func (m *Manager) Delete(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.tries, name)
}

func (m *Manager) List() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	names := make([]string, 0, len(m.tries))
	for name := range m.tries {
		names = append(names, name)
	}
	return names
}

// Insert stores value under key in the named trie.
func (m *Manager) Insert(name string, key []byte, value int32) error {
	t, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("datrie: trie %s not found", name)
	}
	return t.Insert(key, value)
}

// Search looks up key in the named trie.
func (m *Manager) Search(name string, key []byte) (int32, bool, error) {
	t, ok := m.Get(name)
	if !ok {
		return 0, false, fmt.Errorf("datrie: trie %s not found", name)
	}
	return t.Search(key)
}

// Build serializes the named trie to path.
func (m *Manager) Build(name, path string, verbose bool) error {
	t, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("datrie: trie %s not found", name)
	}
	return t.Build(path, verbose)
}

// Ingest bulk-loads entries into the named trie.
func (m *Manager) Ingest(ctx context.Context, name string, req IngestRequest) (int, error) {
	t, ok := m.Get(name)
	if !ok {
		return 0, fmt.Errorf("datrie: trie %s not found", name)
	}
	return Ingest(ctx, t, req)
}
