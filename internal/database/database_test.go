// internal/database/database_test.go
package database

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSourceURL(t *testing.T) {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		t.Fatal(err)
	}
	want := "file://" + filepath.ToSlash(abs)

	for _, in := range []string{"", "migrations", "file://migrations"} {
		got, err := SourceURL(in)
		if err != nil {
			t.Fatalf("SourceURL(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("SourceURL(%q) = %q, want %q", in, got, want)
		}
	}

	got, err := SourceURL("/srv/bridge/migrations")
	if err != nil || !strings.HasSuffix(got, "/srv/bridge/migrations") {
		t.Errorf("absolute path not kept: %q, %v", got, err)
	}
}
