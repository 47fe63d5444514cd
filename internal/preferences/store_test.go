// internal/preferences/store_test.go
package preferences

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "prefs.json"), "", nil)
	ctx := context.Background()

	if prefs := store.Read(ctx); len(prefs) != 0 {
		t.Fatalf("missing file should read as empty, got %v", prefs)
	}

	if err := os.WriteFile(filepath.Join(dir, "prefs.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if prefs := store.Read(ctx); len(prefs) != 0 {
		t.Fatalf("corrupt file should read as empty, got %v", prefs)
	}
}

func TestWriteMergesAndMirrors(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "private", "prefs.json")
	mirror := filepath.Join(dir, "public", "prefs.json")
	store := NewFileStore(primary, mirror, nil)
	ctx := context.Background()

	if err := store.Write(ctx, Preferences{KeyIP: "192.168.0.50", "custom": true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write(ctx, Preferences{KeyBTAddress: "AA:BB:CC:DD:EE:FF", KeyBTName: "PT-210"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	prefs := store.Read(ctx)
	if prefs.IP() != "192.168.0.50" || prefs.BTAddress() != "AA:BB:CC:DD:EE:FF" || prefs.BTName() != "PT-210" {
		t.Errorf("merge lost keys: %v", prefs)
	}
	if prefs["custom"] != true {
		t.Errorf("unknown key not preserved: %v", prefs)
	}

	data, err := os.ReadFile(mirror)
	if err != nil {
		t.Fatalf("mirror not written: %v", err)
	}
	var mirrored map[string]interface{}
	if err := json.Unmarshal(data, &mirrored); err != nil {
		t.Fatalf("mirror not JSON: %v", err)
	}
	if mirrored[KeyBTName] != "PT-210" || mirrored[KeyIP] != "192.168.0.50" {
		t.Errorf("mirror out of date: %v", mirrored)
	}
}

func TestMirrorFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// the mirror directory is a regular file, so the mirror write fails
	store := NewFileStore(filepath.Join(dir, "prefs.json"), filepath.Join(blocker, "prefs.json"), nil)

	if err := store.Write(context.Background(), Preferences{KeyIP: "10.0.0.2"}); err != nil {
		t.Fatalf("mirror failure must not fail the write: %v", err)
	}
	if store.Read(context.Background()).IP() != "10.0.0.2" {
		t.Error("primary write lost")
	}
}

func TestMirrorOnBoot(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "prefs.json")
	mirror := filepath.Join(dir, "public", "prefs.json")
	if err := os.WriteFile(primary, []byte(`{"ip":"1.2.3.4"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	NewFileStore(primary, mirror, nil).MirrorOnBoot(context.Background())

	data, err := os.ReadFile(mirror)
	if err != nil || string(data) != `{"ip":"1.2.3.4"}` {
		t.Fatalf("expected mirrored copy, got %q (%v)", data, err)
	}
}

func TestNormalizeWebURL(t *testing.T) {
	tests := map[string]string{
		"esmartpos.com/app":   "https://esmartpos.com/app",
		" http://local:8080 ": "http://local:8080",
		"HTTPS://Example.com": "HTTPS://Example.com",
		"":                    "",
	}
	for in, want := range tests {
		if got := NormalizeWebURL(in); got != want {
			t.Errorf("NormalizeWebURL(%q) = %q, want %q", in, got, want)
		}
	}
}
