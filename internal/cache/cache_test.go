package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type payload struct {
	Modules []string `json:"modules"`
}

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Platform.dsc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	return path
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := New(t.TempDir(), 0, nil)
	dsc := writeDescriptor(t, "[Defines]\n")
	flags := map[string]string{"TARGET": "DEBUG", "ARCH": "X64"}

	saved := payload{Modules: []string{"a.inf", "b.inf"}}
	if err := store.Save(dsc, flags, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.IsValid(dsc, flags) {
		t.Fatalf("expected a valid entry after Save")
	}

	var loaded payload
	if !store.Load(dsc, flags, &loaded) {
		t.Fatalf("expected a hit")
	}
	if len(loaded.Modules) != 2 || loaded.Modules[0] != "a.inf" {
		t.Fatalf("unexpected payload: %+v", loaded)
	}
}

func TestKeyIsOrderInsensitiveButConfigSensitive(t *testing.T) {
	a := Key("Platform.dsc", map[string]string{"TARGET": "DEBUG", "ARCH": "X64"})
	b := Key("Platform.dsc", map[string]string{"ARCH": "X64", "TARGET": "DEBUG"})
	if a != b {
		t.Fatalf("flag order must not change the key: %s vs %s", a, b)
	}

	c := Key("Platform.dsc", map[string]string{"TARGET": "RELEASE", "ARCH": "X64"})
	if a == c {
		t.Fatalf("different configurations must not share a key")
	}
	if d := Key("Other.dsc", map[string]string{"TARGET": "DEBUG", "ARCH": "X64"}); a == d {
		t.Fatalf("different descriptors must not share a key")
	}
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	store := New(t.TempDir(), time.Hour, nil)
	dsc := writeDescriptor(t, "[Defines]\n")
	flags := map[string]string{"TARGET": "DEBUG"}

	if err := store.Save(dsc, flags, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if store.IsValid(dsc, flags) {
		t.Fatalf("entry past its TTL must be a miss")
	}
}

func TestEditedDescriptorInvalidates(t *testing.T) {
	store := New(t.TempDir(), 0, nil)
	dsc := writeDescriptor(t, "[Defines]\n")
	flags := map[string]string{"TARGET": "DEBUG"}

	if err := store.Save(dsc, flags, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Same length, different bytes. Age alone cannot catch this.
	if err := os.WriteFile(dsc, []byte("[defines]\n"), 0o644); err != nil {
		t.Fatalf("rewrite descriptor: %v", err)
	}
	if store.IsValid(dsc, flags) {
		t.Fatalf("edited descriptor must invalidate the entry")
	}
}

func TestMissingDescriptorIsAMiss(t *testing.T) {
	store := New(t.TempDir(), 0, nil)
	dsc := writeDescriptor(t, "[Defines]\n")
	flags := map[string]string{}

	if err := store.Save(dsc, flags, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(dsc); err != nil {
		t.Fatalf("remove descriptor: %v", err)
	}
	if store.IsValid(dsc, flags) {
		t.Fatalf("entry for a deleted descriptor must be a miss")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, 0, nil)
	dsc := writeDescriptor(t, "[Defines]\n")
	flags := map[string]string{"TARGET": "DEBUG"}

	if err := store.Save(dsc, flags, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, Key(dsc, flags)+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	var out payload
	if store.Load(dsc, flags, &out) {
		t.Fatalf("corrupt entry must be a miss, not an error")
	}
}

func TestClearAndStats(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, 0, nil)
	dsc := writeDescriptor(t, "[Defines]\n")

	if err := store.Save(dsc, map[string]string{"TARGET": "DEBUG"}, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(dsc, map[string]string{"TARGET": "RELEASE"}, payload{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 || stats.TotalBytes == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Oldest.IsZero() || stats.Newest.Before(stats.Oldest) {
		t.Fatalf("unexpected timestamp spread: %+v", stats)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err = store.Stats()
	if err != nil {
		t.Fatalf("Stats after Clear: %v", err)
	}
	if stats.Entries != 0 {
		t.Fatalf("expected an empty cache, got %+v", stats)
	}
}

func TestStatsOnMissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"), 0, nil)

	stats, err := store.Stats()
	if err != nil || stats.Entries != 0 {
		t.Fatalf("missing directory must read as empty: %+v, %v", stats, err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on missing directory: %v", err)
	}
}
