package atomicwrite

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWriteFile_Replaces(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "jwks.json")

	if err := WriteFile(p, []byte("one"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFile(p, []byte("two"), 0o600); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" {
		t.Fatalf("content = %q, %v", b, err)
	}
	st, _ := os.Stat(p)
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v", st.Mode().Perm())
	}
	assertNoTemps(t, dir)
}

func TestWriteNew_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "k1.json")

	if err := WriteNew(p, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteNew: %v", err)
	}
	err := WriteNew(p, []byte("second"), 0o600)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "first" {
		t.Fatalf("existing file was modified: %q", b)
	}
	assertNoTemps(t, dir)
}

func TestWriteNew_ConcurrentSingleWinner(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "race.json")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := WriteNew(p, []byte("x"), 0o600); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	if err := WriteFile(filepath.Join(t.TempDir(), "nope", "f"), []byte("x"), 0o600); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	m, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if len(m) != 0 {
		t.Fatalf("temp files left behind: %v", m)
	}
}
