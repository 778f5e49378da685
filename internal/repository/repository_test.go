package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trashd/trashd/internal/mover"
)

func newTestRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	base := t.TempDir()
	r, err := New(base, Home(), mover.TryAnything{})
	if err != nil {
		t.Fatal(err)
	}
	return r, base
}

func TestAddThenListThenRestore(t *testing.T) {
	r, base := newTestRepo(t)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.txt")
	if err := os.WriteFile(src, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	name, err := r.Add(src)
	if err != nil {
		t.Fatal(err)
	}
	if name != "a.txt" {
		t.Fatalf("expected trashname a.txt, got %q", name)
	}

	var items []TrashItem
	if err := r.Items(func(ti TrashItem) { items = append(items, ti) }); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].TrashName != "a.txt" || items[0].OriginalPath != src {
		t.Fatalf("unexpected item %+v", items[0])
	}

	data, err := os.ReadFile(filepath.Join(r.FilesDir(), "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Fatal("content mismatch in files/")
	}

	if err := r.Restore(name); err != nil {
		t.Fatal(err)
	}
	restored, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(restored) != "hello\n" {
		t.Fatal("restore produced wrong content")
	}
	if _, err := os.Lstat(filepath.Join(r.FilesDir(), "a.txt")); !os.IsNotExist(err) {
		t.Fatal("files/ entry should be gone after restore")
	}
	_ = base
}

func TestCollisionNaming(t *testing.T) {
	r, _ := newTestRepo(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "f")

	os.WriteFile(src, []byte("a"), 0644)
	n1, err := r.Add(src)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(src, []byte("b"), 0644)
	n2, err := r.Add(src)
	if err != nil {
		t.Fatal(err)
	}

	if n1 != "f" || n2 != "f.1" {
		t.Fatalf("expected f, f.1 got %s, %s", n1, n2)
	}

	if err := r.Restore(n2); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(src)
	if string(data) != "b" {
		t.Fatalf("restore of f.1 should give 'b', got %q", data)
	}
	if _, err := os.Lstat(filepath.Join(r.FilesDir(), "f")); err != nil {
		t.Fatal("f should be untouched")
	}
}

func TestCleanupRestoresBijection(t *testing.T) {
	r, _ := newTestRepo(t)

	os.WriteFile(filepath.Join(r.FilesDir(), "a"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(r.FilesDir(), "b"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(r.InfoDir(), "a.trashinfo"), []byte("[Trash Info]\nPath=/tmp/a\nDeletionDate=2024-01-01T00:00:00\n"), 0644)
	os.WriteFile(filepath.Join(r.InfoDir(), "c.trashinfo"), []byte("[Trash Info]\nPath=/tmp/c\nDeletionDate=2024-01-01T00:00:00\n"), 0644)

	if err := r.Cleanup(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Lstat(filepath.Join(r.FilesDir(), "b")); !os.IsNotExist(err) {
		t.Fatal("files/b should have been removed")
	}
	if _, err := os.Lstat(filepath.Join(r.InfoDir(), "c.trashinfo")); !os.IsNotExist(err) {
		t.Fatal("info/c.trashinfo should have been removed")
	}
	if _, err := os.Lstat(filepath.Join(r.FilesDir(), "a")); err != nil {
		t.Fatal("files/a should remain")
	}
	if _, err := os.Lstat(filepath.Join(r.InfoDir(), "a.trashinfo")); err != nil {
		t.Fatal("info/a.trashinfo should remain")
	}
}

func TestShredRemovesContent(t *testing.T) {
	r, _ := newTestRepo(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "secret")
	os.WriteFile(src, []byte("sensitive data"), 0644)

	name, err := r.Add(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Shred(name); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(filepath.Join(r.FilesDir(), name)); !os.IsNotExist(err) {
		t.Fatal("shredded file should be gone")
	}
	if _, err := os.Lstat(filepath.Join(r.InfoDir(), name+".trashinfo")); !os.IsNotExist(err) {
		t.Fatal("shredded info should be gone")
	}
}

func TestWrongModeRejected(t *testing.T) {
	base := t.TempDir()
	trashDir := filepath.Join(base, "Trash")
	os.MkdirAll(filepath.Join(trashDir, "files"), 0755)
	os.MkdirAll(filepath.Join(trashDir, "info"), 0700)

	_, err := New(base, Home(), mover.TryAnything{})
	if err != ErrTrashDirectoryMode {
		t.Fatalf("expected ErrTrashDirectoryMode, got %v", err)
	}
}
