package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/HatiCode/sensorsync/pkg/storage"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps a MemoryStore, counts calls and fails selected operations.
type faultyStore struct {
	*storage.MemoryStore

	mu           sync.Mutex
	failChildren bool
	failGetInt   bool
	failUpdate   bool
	failSet      map[string]bool

	childrenCalls int
	getIntCalls   int
	updates       [][]storage.Mutation
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: storage.NewMemoryStore(), failSet: map[string]bool{}}
}

func (f *faultyStore) Children(ctx context.Context, path string) (map[string][]byte, error) {
	f.mu.Lock()
	f.childrenCalls++
	fail := f.failChildren
	f.mu.Unlock()
	if fail {
		return nil, &storage.Error{Op: "children", Path: path, Err: errInjected}
	}
	return f.MemoryStore.Children(ctx, path)
}

func (f *faultyStore) GetInt(ctx context.Context, path string) (int64, bool, error) {
	f.mu.Lock()
	f.getIntCalls++
	fail := f.failGetInt
	f.mu.Unlock()
	if fail {
		return 0, false, &storage.Error{Op: "get", Path: path, Err: errInjected}
	}
	return f.MemoryStore.GetInt(ctx, path)
}

func (f *faultyStore) Update(ctx context.Context, muts []storage.Mutation) error {
	f.mu.Lock()
	f.updates = append(f.updates, muts)
	fail := f.failUpdate
	f.mu.Unlock()
	if fail {
		return &storage.Error{Op: "update", Err: errInjected}
	}
	return f.MemoryStore.Update(ctx, muts)
}

func (f *faultyStore) Set(ctx context.Context, path string, value any) error {
	f.mu.Lock()
	fail := f.failSet[path]
	f.mu.Unlock()
	if fail {
		return &storage.Error{Op: "set", Path: path, Err: errInjected}
	}
	return f.MemoryStore.Set(ctx, path, value)
}
