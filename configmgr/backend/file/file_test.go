package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jiufeng-go/jiufeng/configmgr/backend"
)

func TestFlushThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.conf")
	b := New()
	if err := b.Open(backend.Config{Path: path}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := map[string]string{
		"service.web.state":   "running",
		"service.web.startup": "automatic",
	}
	if err := b.Flush(want); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := b.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() = %#v, want %#v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Load()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	b := New()
	if err := b.Open(backend.Config{Path: filepath.Join(t.TempDir(), "missing.conf")}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := b.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load() = %#v, want empty", got)
	}
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.conf")
	content := "# a full-line comment\n\nname=value\nother=va\\#lue # trailing comment\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := New()
	if err := b.Open(backend.Config{Path: path}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := b.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["name"] != "value" {
		t.Fatalf("Load()[name] = %q, want %q", got["name"], "value")
	}
	if got["other"] != "va#lue" {
		t.Fatalf("Load()[other] = %q, want %q (escaped # unescaped, trailing comment stripped)", got["other"], "va#lue")
	}
}
