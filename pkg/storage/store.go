// Package storage provides the hierarchical key-value store sensorsync
// persists to.
//
// Paths are slash separated ("sensorData/temperature/recordCount"). Every
// value lives at a leaf path and is stored as JSON. A path's parent groups its
// siblings so that a whole collection ("sensorMeta") can be read in one call.
//
// Three backends implement Store:
//
//   - MemoryStore: in-process, for tests and local development.
//   - RedisStore: one Redis hash per parent path; updates run in MULTI/EXEC.
//   - BadgerStore: embedded BadgerDB; updates run in one transaction.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mutation sets Value at Path. Value is JSON encoded unless it is already
// a []byte or json.RawMessage.
type Mutation struct {
	Path  string
	Value any
}

// Store is a hierarchical key-value store.
type Store interface {
	// Children returns the direct leaf children of path, keyed by the last
	// path segment. A missing collection yields an empty map.
	Children(ctx context.Context, path string) (map[string][]byte, error)

	// GetInt reads a numeric leaf. found is false when path does not exist.
	GetInt(ctx context.Context, path string) (value int64, found bool, err error)

	// Update applies mutations in order as a single atomic write.
	Update(ctx context.Context, mutations []Mutation) error

	// Set writes one JSON value.
	Set(ctx context.Context, path string, value any) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("invalid path")

// Error is a failed storage operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// split returns the parent and last segment of path.
func split(path string) (parent, child string, err error) {
	if err := validatePath(path); err != nil {
		return "", "", err
	}
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path, nil
	}
	return path[:i], path[i+1:], nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

func encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	return json.Marshal(v)
}

func decodeInt(raw []byte) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f), nil
}

// encodeAll validates and encodes mutations before any backend write.
func encodeAll(mutations []Mutation) ([][]byte, error) {
	out := make([][]byte, len(mutations))
	for i, m := range mutations {
		if err := validatePath(m.Path); err != nil {
			return nil, &Error{Op: "update", Path: m.Path, Err: err}
		}
		b, err := encode(m.Value)
		if err != nil {
			return nil, &Error{Op: "update", Path: m.Path, Err: err}
		}
		out[i] = b
	}
	return out, nil
}
