package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the tree in an embedded BadgerDB, one key per leaf path.
// Update writes all mutations in a single transaction.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a database under dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if dir == "" {
		return nil, errors.New("badger path is required")
	}
	opts := badger.DefaultOptions(filepath.Join(dir, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Children(_ context.Context, path string) (map[string][]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, &Error{Op: "children", Path: path, Err: err}
	}
	prefix := []byte(path + "/")
	out := make(map[string][]byte)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			child := strings.TrimPrefix(string(item.Key()), string(prefix))
			if strings.Contains(child, "/") {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[child] = val
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "children", Path: path, Err: err}
	}
	return out, nil
}

func (b *BadgerStore) GetInt(_ context.Context, path string) (int64, bool, error) {
	if err := validatePath(path); err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}

	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}

	v, err := decodeInt(raw)
	if err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}
	return v, true, nil
}

func (b *BadgerStore) Update(_ context.Context, mutations []Mutation) error {
	values, err := encodeAll(mutations)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		for i, m := range mutations {
			if err := txn.Set([]byte(m.Path), values[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &Error{Op: "update", Path: fmt.Sprintf("%d paths", len(mutations)), Err: err}
	}
	return nil
}

func (b *BadgerStore) Set(ctx context.Context, path string, value any) error {
	return b.Update(ctx, []Mutation{{Path: path, Value: value}})
}

func (b *BadgerStore) Ping(context.Context) error {
	if b.db.IsClosed() {
		return &Error{Op: "ping", Err: errors.New("database is closed")}
	}
	return nil
}

func (b *BadgerStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
