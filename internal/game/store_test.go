package game

import (
	"errors"
	"sync"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	s := &Session{ID: "abc", TotalRounds: 3}
	store.Put(s)

	got, err := store.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != s {
		t.Fatalf("get returned a different session")
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if err := store.WithLock("missing", func(*Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("withlock err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreWithLockSerializes(t *testing.T) {
	store := NewMemoryStore()
	store.Put(&Session{ID: "abc"})

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithLock("abc", func(s *Session) error {
				s.RoundNumber++
				return nil
			})
		}()
	}
	wg.Wait()

	s, err := store.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.RoundNumber != workers {
		t.Fatalf("round number = %d, want %d (lost updates)", s.RoundNumber, workers)
	}
}

func TestMemoryStoreWithLockPropagatesError(t *testing.T) {
	store := NewMemoryStore()
	store.Put(&Session{ID: "abc"})

	want := errors.New("boom")
	if err := store.WithLock("abc", func(*Session) error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
