package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	r := NewRegistry(time.Hour, Options{})

	s := r.Create()
	if s.ID() == "" {
		t.Fatal("Expected a session id")
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Len())
	}

	got, err := r.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get returned %v, %v", got, err)
	}

	if err := r.Delete(s.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := r.Get(s.ID()); !errors.Is(err, ErrNotFound) || KindOf(err) != KindNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	r := NewRegistry(0, Options{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Create().ID()
		if seen[id] {
			t.Fatalf("Duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(time.Hour, Options{Now: clock.Now})

	idle := r.Create()
	busy := r.Create()
	idle.AddLine("lost", -1)

	clock.Advance(50 * time.Minute)
	r.Get(busy.ID())
	clock.Advance(20 * time.Minute)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("Expected 1 expired session, got %d", n)
	}
	if _, err := r.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("Expected idle session removed")
	}
	if _, err := r.Get(busy.ID()); err != nil {
		t.Error("Expected recently used session kept")
	}
	if len(idle.Lines()) != 0 {
		t.Error("Expected expired session to be reset")
	}
}

func TestRegistry_SweepDisabled(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	r := NewRegistry(0, Options{Now: clock.Now})
	r.Create()
	clock.Advance(1000 * time.Hour)

	if n := r.Sweep(); n != 0 {
		t.Errorf("Expected no expiry with ttl 0, got %d", n)
	}
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r := NewRegistry(time.Hour, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
