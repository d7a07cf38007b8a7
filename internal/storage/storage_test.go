package storage

import (
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	if _, ok, err := s.Get(KeyAccessToken); err != nil || ok {
		t.Fatalf("empty store Get: ok=%v err=%v", ok, err)
	}
	if err := s.Set(KeyAccessToken, "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyAccessToken, "tok-2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := s.Set(KeyUserRole, "admin"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(KeyAccessToken)
	if err != nil || !ok || v != "tok-2" {
		t.Fatalf("Get=%q,%v,%v want tok-2 (last write wins)", v, ok, err)
	}

	if err := s.Delete(KeyAccessToken, KeyUserRole, "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range []string{KeyAccessToken, KeyUserRole} {
		if _, ok, _ := s.Get(k); ok {
			t.Fatalf("%s still present after Delete", k)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Set(KeyUserID, "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(KeyUserID); !ok || v != "42" {
		t.Fatalf("value not persisted across reopen: %q %v", v, ok)
	}
}
