package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/HatiCode/sensorsync/cmd/syncer/config"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew_Memory(t *testing.T) {
	s, err := New(&config.Config{Storage: "memory"}, discard)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.MemoryStore); !ok {
		t.Errorf("got %T, want *storage.MemoryStore", s)
	}
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := New(&config.Config{Storage: "redis", RedisAddr: mr.Addr(), RedisPrefix: "t:"}, discard)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.RedisStore); !ok {
		t.Errorf("got %T, want *storage.RedisStore", s)
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := New(&config.Config{Storage: "redis", RedisAddr: addr}, discard); err == nil {
		t.Fatal("expected health check failure")
	}
}

func TestNew_Badger(t *testing.T) {
	s, err := New(&config.Config{Storage: "badger", BadgerPath: t.TempDir()}, discard)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*storage.BadgerStore); !ok {
		t.Errorf("got %T, want *storage.BadgerStore", s)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(&config.Config{Storage: "s3"}, discard); err == nil {
		t.Fatal("expected error for unknown storage")
	}
	if _, err := New(&config.Config{Storage: "badger"}, discard); err == nil {
		t.Fatal("expected error for badger without path")
	}
}
