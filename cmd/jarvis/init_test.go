package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/nugget/jarvis/internal/defaults"
)

func TestRunInit(t *testing.T) {
	// Permission checks need a predictable umask.
	old := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(old) })

	dir := filepath.Join(t.TempDir(), "home")
	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	if info, err := os.Stat(filepath.Join(dir, "db")); err != nil || !info.IsDir() {
		t.Errorf("db directory missing: %v", err)
	}

	files := []struct {
		name string
		want []byte
		perm os.FileMode
	}{
		{"config.yaml", defaults.ConfigYAML, 0o600},
		{"persona.md", defaults.PersonaMD, 0o644},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("%s not written: %v", f.name, err)
			continue
		}
		if got := info.Mode().Perm(); got != f.perm {
			t.Errorf("%s mode = %o, want %o", f.name, got, f.perm)
		}
		got, _ := os.ReadFile(path)
		if !bytes.Equal(got, f.want) {
			t.Errorf("%s does not match the embedded default", f.name)
		}
	}

	if n := strings.Count(out.String(), "✓"); n != len(files) {
		t.Errorf("created markers = %d, want %d:\n%s", n, len(files), out.String())
	}
}

func TestRunInit_KeepsEditedFiles(t *testing.T) {
	dir := t.TempDir()
	edited := []byte("listen:\n  port: 9999\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), edited, 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, edited) {
		t.Error("config.yaml was overwritten")
	}
	if !strings.Contains(out.String(), "config.yaml (exists, skipping)") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "persona.md")); err != nil {
		t.Errorf("persona.md should still be written: %v", err)
	}
}
