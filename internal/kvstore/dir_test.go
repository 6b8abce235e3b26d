package kvstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KunlingLio/project-timer/internal/kvstore"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys on empty store: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Keys on empty store = %v, want none", keys)
	}

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	if err := s.Update(ctx, "timerStorageV2-dev-b", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("Update (insert): %v", err)
	}
	if err := s.Update(ctx, "timerStorage-my/project", []byte(`{"project_name":"my/project"}`)); err != nil {
		t.Fatalf("Update (legacy key): %v", err)
	}
	if err := s.Update(ctx, "timerStorageV2-dev-b", []byte(`{"n":2}`)); err != nil {
		t.Fatalf("Update (overwrite): %v", err)
	}

	got, ok, err := s.Get(ctx, "timerStorageV2-dev-b")
	if err != nil || !ok {
		t.Fatalf("Get after update: ok %v, err %v", ok, err)
	}
	if string(got) != `{"n":2}` {
		t.Errorf("Get = %s, want %s", got, `{"n":2}`)
	}

	keys, err = s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"timerStorage-my/project", "timerStorageV2-dev-b"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if err := s.Update(ctx, "timerStorageV2-dev-b", nil); err != nil {
		t.Fatalf("Update (delete): %v", err)
	}
	if _, ok, _ := s.Get(ctx, "timerStorageV2-dev-b"); ok {
		t.Error("key still present after tombstone")
	}
	// Deleting a missing key is not an error.
	if err := s.Update(ctx, "timerStorageV2-dev-b", nil); err != nil {
		t.Errorf("Update (delete missing): %v", err)
	}

	if err := s.SetKeysForSync(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("SetKeysForSync: %v", err)
	}
	if err := s.SetKeysForSync(ctx, []string{"b"}); err != nil {
		t.Fatalf("SetKeysForSync (replace): %v", err)
	}
}

func TestDirStore(t *testing.T) {
	s, err := kvstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)

	keys, err := s.SyncKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("SyncKeys = %v, want [b]", keys)
	}
}

func TestDirStoreKeepsEscapedKeysInside(t *testing.T) {
	base := t.TempDir()
	s, err := kvstore.NewDir(base)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Update(context.Background(), "timerStorage-../../escape", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(base, "records"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("records dir has %d entries, want 1", len(entries))
	}
}

func TestDirStoreCorruptFile(t *testing.T) {
	// A corrupt file is backed up and reported.
	base := t.TempDir()
	s, err := kvstore.NewDir(base)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(base, "records", "timerStorageV2-dev-p.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err = s.Get(context.Background(), "timerStorageV2-dev-p")
	if !errors.Is(err, kvstore.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for corrupt JSON, got %v", err)
	}
	if _, err2 := os.Stat(path + ".corrupt"); os.IsNotExist(err2) {
		t.Error("expected backup file to exist after corrupt JSON")
	}
}

func TestDirStoreNoTempFilesLeft(t *testing.T) {
	base := t.TempDir()
	s, err := kvstore.NewDir(base)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Update(context.Background(), "k", []byte(`1`)); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(base, "records", "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestMemoryStore(t *testing.T) {
	m := kvstore.NewMemory()
	exerciseStore(t, m)
	if keys := m.SyncKeys(); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("SyncKeys = %v, want [b]", keys)
	}

	m.Close()
	if _, err := m.Keys(context.Background()); err != kvstore.ErrClosed {
		t.Errorf("Keys after Close = %v, want ErrClosed", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := kvstore.Open("redis", "", t.TempDir()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
