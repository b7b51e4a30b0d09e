package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "reports/a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	data := []byte("hello")
	if err := s.Put(ctx, "reports/a", data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data[0] = 'j'

	got, err := s.Get(ctx, "reports/a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want hello", got)
	}

	got[0] = 'y'
	again, _ := s.Get(ctx, "reports/a")
	if string(again) != "hello" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}

	if keys := s.Keys(); len(keys) != 1 || keys[0] != "reports/a" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	if err := New().Put(context.Background(), "../x", nil); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Put() error = %v, want ErrInvalidKey", err)
	}
}

func TestStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Get(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}
