package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

func TestWriteAsset(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "assets"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	if err := s.WriteAsset(context.Background(), "piano", []byte("v1")); err != nil {
		t.Fatalf("WriteAsset: %v", err)
	}
	if err := s.WriteAsset(context.Background(), "piano", []byte("v2")); err != nil {
		t.Fatalf("WriteAsset overwrite: %v", err)
	}

	data, err := os.ReadFile(s.Path("piano"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("content = %q, want v2", data)
	}
	if !s.Has("piano") || s.Has("organ") {
		t.Error("Has() mismatch")
	}

	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 1 {
		t.Errorf("found %d entries, temp files left behind", len(entries))
	}
}

func TestWriteAssetSanitizesID(t *testing.T) {
	s, _ := NewFileStorage(t.TempDir())
	if err := s.WriteAsset(context.Background(), "../evil/id", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(s.Path("../evil/id")) != s.Root() {
		t.Errorf("Path escapes root: %s", s.Path("../evil/id"))
	}
}

func TestWriteAssetCancelled(t *testing.T) {
	s, _ := NewFileStorage(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteAsset(ctx, "x", nil); !errors.Is(err, contracts.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestWriteAssetMissingRoot(t *testing.T) {
	root := t.TempDir()
	s, _ := NewFileStorage(root)
	os.RemoveAll(root)
	if err := s.WriteAsset(context.Background(), "x", nil); !errors.Is(err, contracts.ErrIOFailure) {
		t.Fatalf("err = %v, want ErrIOFailure", err)
	}
}
