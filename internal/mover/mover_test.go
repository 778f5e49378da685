package mover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenameOnlyMovesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "dst", "a.txt")
	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := (RenameOnly{}).Move(src, dst); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestRenameOnlyMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := (RenameOnly{}).Move(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err != ErrFileToTrashDoesNotExist {
		t.Fatalf("expected ErrFileToTrashDoesNotExist, got %v", err)
	}
}

func TestCopyDeleteMovesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "dst", "a.txt")
	if err := os.WriteFile(src, []byte("world\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := (CopyDelete{}).Move(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "world\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestTryAnythingFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "dst", "a.txt")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := (TryAnything{}).Move(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatal(err)
	}
}
