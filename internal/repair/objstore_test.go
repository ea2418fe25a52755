package repair

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestObjectPath(t *testing.T) {
	if got := ObjectPath("delivery_note", "I1001042"); got != "delivery_note/I1001042.pdf" {
		t.Fatalf("path = %q", got)
	}
}

func TestMemoryObjectStore(t *testing.T) {
	s := NewMemoryObjectStore()
	url, err := s.Put(context.Background(), ObjectPath("invoice", "T1"), []byte("%PDF"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "mem://invoice/T1.pdf" {
		t.Fatalf("url = %q", url)
	}
	b, ok := s.Get("invoice/T1.pdf")
	if !ok || !bytes.Equal(b, []byte("%PDF")) {
		t.Fatalf("stored blob missing or wrong")
	}
}

func TestFSObjectStore(t *testing.T) {
	root := t.TempDir()
	s := NewFSObjectStore(root)
	key := ObjectPath("release_form", "T1")
	if _, err := s.Put(context.Background(), key, []byte("%PDF")); err != nil {
		t.Fatalf("put: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(root, "release_form", "T1.pdf"))
	if err != nil || !bytes.Equal(b, []byte("%PDF")) {
		t.Fatalf("file not written: %v", err)
	}
}
