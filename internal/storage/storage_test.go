package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFSStorage_RoundTrip(t *testing.T) {
	store, err := NewFSStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStorage: %v", err)
	}
	ctx := context.Background()

	key := "attempts/12/answers/3/solution.pdf"
	if err := store.Save(ctx, key, strings.NewReader("file body")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "file body" {
		t.Errorf("body = %q, want %q", body, "file body")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, key); err == nil {
		t.Error("Open after Delete succeeded, want error")
	}
}

func TestFSStorage_RejectsTraversal(t *testing.T) {
	store, err := NewFSStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStorage: %v", err)
	}

	for _, key := range []string{"../escape", "/abs/path", "."} {
		if err := store.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) succeeded, want error", key)
		}
	}
}
