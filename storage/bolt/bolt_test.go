package bolt

import (
	"errors"
	"os"
	"testing"

	"github.com/jmcleod/gatehouse/storage"
)

type testRecord struct {
	Name string `json:"name"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "gatehouse-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	s, err := NewStoreFromFile(path, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(path)
	})
	return s
}

func TestBoltStore(t *testing.T) {
	s := newTestStore(t)

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put("users", "alice", &testRecord{Name: "alice"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		var got testRecord
		if err := s.Get("users", "alice", &got); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Name != "alice" {
			t.Fatalf("got %q, want %q", got.Name, "alice")
		}
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		var got testRecord
		if err := s.Get("users", "nobody", &got); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetMissingScope", func(t *testing.T) {
		var got testRecord
		if err := s.Get("no-such-scope", "alice", &got); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CorruptShape", func(t *testing.T) {
		// A record whose bytes do not deserialize to the requested shape.
		if err := s.Put("users", "mangled", "just a string"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		var got testRecord
		if err := s.Get("users", "mangled", &got); !errors.Is(err, storage.ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Put("sessions", "alice", &testRecord{}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Delete("sessions", "alice"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete("sessions", "alice"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
