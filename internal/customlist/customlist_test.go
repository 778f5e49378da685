package customlist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom")
	os.WriteFile(path, []byte("/mnt/a:/data/shared\n/mnt/b:/data\n"), 0644)

	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	m, ok := l.Lookup("/data/shared/file.txt")
	if !ok || m.CanBase != "/mnt/a" {
		t.Fatalf("expected /mnt/a match, got %+v ok=%v", m, ok)
	}

	m, ok = l.Lookup("/data/other/file.txt")
	if !ok || m.CanBase != "/mnt/b" {
		t.Fatalf("expected /mnt/b match, got %+v ok=%v", m, ok)
	}
}

func TestLookupRequiresStrictPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom")
	os.WriteFile(path, []byte("/mnt/a:/data/file.txt\n"), 0644)

	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Lookup("/data/file.txt"); ok {
		t.Fatal("target_prefix equal to filename must not match")
	}
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom")

	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	l.mappings = append(l.mappings, Mapping{CanBase: "/mnt/a", TargetPrefix: "/data"})
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}

	l2, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got := l2.Mappings()
	if len(got) != 1 || got[0].CanBase != "/mnt/a" || got[0].TargetPrefix != "/data" {
		t.Fatalf("unexpected round-trip %+v", got)
	}
}
