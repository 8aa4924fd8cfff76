package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, ok, err := s.Load(ctx, "friend:1"); ok || err != nil {
		t.Fatalf("Load(missing) = ok %v, err %v; want false, nil", ok, err)
	}
	if err := s.Save(ctx, "friend:1", 10); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.SaveAll(ctx, map[string]int64{"friend:1": 12, "group:7": 3}); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	seq, ok, err := s.Load(ctx, "friend:1")
	if err != nil || !ok || seq != 12 {
		t.Errorf("Load() = %d, %v, %v; want 12, true, nil", seq, ok, err)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}

	if err := s.Delete(ctx, "group:7"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "group:7"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}

	s.Close()
	if err := s.Save(ctx, "x", 1); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, _, err := s.Load(ctx, "x"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load() after Close error = %v, want ErrStoreClosed", err)
	}
}
