package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/jmcleod/gatehouse/storage"
)

type testRecord struct {
	Name string `json:"name"`
}

func TestMemoryStore(t *testing.T) {
	s := NewStore()

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

	t.Run("GetMissing", func(t *testing.T) {
		var got testRecord
		if err := s.Get("users", "nobody", &got); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CorruptShape", func(t *testing.T) {
		if err := s.Put("users", "mangled", 42); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		var got testRecord
		if err := s.Get("users", "mangled", &got); !errors.Is(err, storage.ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Put("otp", "alice", &testRecord{}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Delete("otp", "alice"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete("otp", "alice"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Put("users", "shared", &testRecord{Name: "x"})
				var got testRecord
				_ = s.Get("users", "shared", &got)
			}
		}()
	}
	wg.Wait()
}
