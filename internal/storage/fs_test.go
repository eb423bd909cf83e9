package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/spendscope/internal/apperr"
	"github.com/starford/spendscope/internal/checksum"
)

func tempInbox(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempInbox(t)
	content := []byte(`[{"date":"01/01/2025","debit":"10"}]`)
	if err := s.Write("jan.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("jan.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWrite_RejectsUnsupportedType(t *testing.T) {
	s := tempInbox(t)
	if err := s.Write("notes.txt", []byte("x")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRead_Missing(t *testing.T) {
	s := tempInbox(t)
	if _, err := s.Read("nope.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("del.yaml", []byte("[]"))
	if err := s.Delete("del.yaml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.yaml"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete("del.yaml"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestReject(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("bad.json", []byte("{"))
	moved, err := s.Reject("bad.json")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !strings.HasPrefix(moved, RejectedDir+"/bad.") || !strings.HasSuffix(moved, ".json") {
		t.Errorf("moved to %q", moved)
	}
	if _, err := s.Read("bad.json"); err == nil {
		t.Error("original should be gone")
	}
	if _, err := s.Read(moved); err != nil {
		t.Errorf("Read rejected copy: %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("a.json", []byte("[]"))
	_ = s.Write("sub/b.yaml", []byte("[]"))
	_ = s.Write("sub/c.YML", []byte("[]"))
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("skip"), 0o644)
	_ = os.WriteFile(filepath.Join(s.root, ".hidden.json"), []byte("skip"), 0o644)
	_ = s.Write("d.json", []byte("{"))
	if _, err := s.Reject("d.json"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %+v, want 3", items)
	}
	if items[0].Path != "a.json" || items[1].Path != "sub/b.yaml" {
		t.Errorf("paths = %s, %s", items[0].Path, items[1].Path)
	}
	if items[0].Checksum != checksum.Sum([]byte("[]")) {
		t.Errorf("checksum = %s", items[0].Checksum)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempInbox(t)

	cases := []string{
		"../../etc/passwd.json",
		"../outside.json",
		"/etc/shadow.json",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("read %q err = %v", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("atomic.json", []byte("[1]"))

	if err := s.Write("atomic.json", []byte("[2]")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != "[2]" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".spendscope-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestRel(t *testing.T) {
	s := tempInbox(t)
	rel, err := s.Rel(filepath.Join(s.Root(), "x", "y.json"))
	if err != nil || rel != "x/y.json" {
		t.Errorf("Rel = %q, %v", rel, err)
	}
	if _, err := s.Rel(filepath.Dir(s.Root())); err == nil {
		t.Error("expected error for path outside inbox")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "spendscope-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
