package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetGetAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	ctx := context.Background()

	first := NewFile(path)
	if err := first.Set(ctx, KeyAuthToken, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second := NewFile(path)
	v, ok, err := second.Get(ctx, KeyAuthToken)
	if err != nil || !ok || v != "abc" {
		t.Fatalf("expected value to survive reopen, v=%q ok=%v err=%v", v, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 store file, got %v", info.Mode().Perm())
	}
}

func TestFileRemoveIsIdempotent(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "store.json"))
	ctx := context.Background()

	if err := s.Remove(ctx, KeyAuthToken); err != nil {
		t.Fatalf("remove on missing file: %v", err)
	}
	if err := s.Set(ctx, KeyAuthToken, "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, KeyPersistUI, "{}"); err != nil {
		t.Fatalf("set: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Remove(ctx, KeyAuthToken); err != nil {
			t.Fatalf("remove #%d: %v", i, err)
		}
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != KeyPersistUI {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestFileCorruptDocumentIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := NewFile(path).Get(context.Background(), KeyAuthToken)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
