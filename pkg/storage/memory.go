package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps every collection in process memory. Data is lost on
// restart. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Children(_ context.Context, path string) (map[string][]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, &Error{Op: "children", Path: path, Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.nodes[path]))
	for k, v := range m.nodes[path] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *MemoryStore) GetInt(_ context.Context, path string) (int64, bool, error) {
	parent, child, err := split(path)
	if err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}
	m.mu.RLock()
	raw, ok := m.nodes[parent][child]
	m.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	v, err := decodeInt(raw)
	if err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}
	return v, true, nil
}

func (m *MemoryStore) Update(_ context.Context, mutations []Mutation) error {
	values, err := encodeAll(mutations)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mu := range mutations {
		m.put(mu.Path, values[i])
	}
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	return m.Update(ctx, []Mutation{{Path: path, Value: value}})
}

// put must be called with mu held and a validated path.
func (m *MemoryStore) put(path string, value []byte) {
	parent, child, _ := split(path)
	node, ok := m.nodes[parent]
	if !ok {
		node = make(map[string][]byte)
		m.nodes[parent] = node
	}
	node[child] = value
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
