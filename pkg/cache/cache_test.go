package cache

import (
	"testing"
	"time"
)

func TestStorePutGet(t *testing.T) {
	s := New[string]()

	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	s.Put("greeting", "hello")
	v, ok := s.Get("greeting")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if v != "hello" {
		t.Errorf("got %q, want %q", v, "hello")
	}

	s.Put("greeting", "goodbye")
	v, _ = s.Get("greeting")
	if v != "goodbye" {
		t.Errorf("got %q after overwrite, want %q", v, "goodbye")
	}
}

func TestStoreFreshness(t *testing.T) {
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New[int]()
	s.now = func() time.Time { return current }

	if s.Fresh("counter", time.Minute) {
		t.Error("missing key reported fresh")
	}

	s.Put("counter", 42)
	if !s.Fresh("counter", 5*time.Minute) {
		t.Error("entry written just now reported stale")
	}

	current = current.Add(4 * time.Minute)
	if !s.Fresh("counter", 5*time.Minute) {
		t.Error("entry younger than ttl reported stale")
	}

	current = current.Add(time.Minute)
	if s.Fresh("counter", 5*time.Minute) {
		t.Error("entry exactly ttl old reported fresh")
	}

	// Stale entries stay readable until overwritten or invalidated.
	if v, ok := s.Get("counter"); !ok || v != 42 {
		t.Errorf("stale entry unreadable: got %d, %v", v, ok)
	}
}

func TestStoreInvalidate(t *testing.T) {
	s := New[[]float64]()
	s.Put("series", []float64{1, 2, 3})

	s.Invalidate("series")
	if _, ok := s.Get("series"); ok {
		t.Error("expected miss after Invalidate")
	}
	if s.Fresh("series", time.Hour) {
		t.Error("invalidated key reported fresh")
	}

	// Invalidating an absent key is a no-op.
	s.Invalidate("series")
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New[int]()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.Put("shared", i)
		}
	}()

	for i := 0; i < 1000; i++ {
		s.Get("shared")
		s.Fresh("shared", time.Second)
	}
	<-done

	if v, ok := s.Get("shared"); !ok || v != 999 {
		t.Errorf("got %d, %v after writer finished, want 999, true", v, ok)
	}
}
