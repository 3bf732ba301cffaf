package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const rootHash = "_root"

// RedisStore maps each parent path to one Redis hash whose fields are the
// child segments. Reading a collection is a single HGETALL and Update runs
// every HSET inside one MULTI/EXEC block.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily to addr. Call Ping to verify connectivity.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns the
// client and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) hashKey(parent string) string {
	if parent == "" {
		return r.prefix + rootHash
	}
	return r.prefix + parent
}

func (r *RedisStore) Children(ctx context.Context, path string) (map[string][]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, &Error{Op: "children", Path: path, Err: err}
	}
	fields, err := r.client.HGetAll(ctx, r.hashKey(path)).Result()
	if err != nil {
		return nil, &Error{Op: "children", Path: path, Err: err}
	}
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *RedisStore) GetInt(ctx context.Context, path string) (int64, bool, error) {
	parent, child, err := split(path)
	if err != nil {
		return 0, false, &Error{Op: "get", Path: path, Err: err}
	}
	raw, err := r.client.HGet(ctx, r.hashKey(parent), child).Bytes()
	if errors.Is(err, redis.Nil) {
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

func (r *RedisStore) Update(ctx context.Context, mutations []Mutation) error {
	values, err := encodeAll(mutations)
	if err != nil {
		return err
	}
	if len(mutations) == 0 {
		return nil
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range mutations {
			parent, child, _ := split(m.Path)
			pipe.HSet(ctx, r.hashKey(parent), child, values[i])
		}
		return nil
	})
	if err != nil {
		return &Error{Op: "update", Path: fmt.Sprintf("%d paths", len(mutations)), Err: err}
	}
	return nil
}

func (r *RedisStore) Set(ctx context.Context, path string, value any) error {
	return r.Update(ctx, []Mutation{{Path: path, Value: value}})
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &Error{Op: "ping", Err: err}
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
