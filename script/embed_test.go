package script

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsEmbedded(t *testing.T) {
	if !IsEmbedded() {
		t.Fatal("converter scripts are not embedded")
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum()
	b := Checksum()
	if a != b {
		t.Errorf("Checksum() not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Checksum() length = %d, want 64 hex chars", len(a))
	}
}

func TestExtractScripts(t *testing.T) {
	dir, err := ExtractedDir()
	if err != nil {
		t.Fatalf("ExtractedDir() failed: %v", err)
	}
	t.Cleanup(func() { _ = Cleanup() })

	for _, name := range []string{PthScriptName, GPT4AllScriptName} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("extracted script %s missing: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("extracted script %s is empty", name)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("extracted script %s is not executable", name)
		}
	}

	// Second call is idempotent and returns the same directory.
	dir2, err := ExtractedDir()
	if err != nil {
		t.Fatalf("second ExtractedDir() failed: %v", err)
	}
	if dir2 != dir {
		t.Errorf("ExtractedDir() = %s then %s, want cached path", dir, dir2)
	}

	pth, err := PthScriptPath()
	if err != nil {
		t.Fatalf("PthScriptPath() failed: %v", err)
	}
	if filepath.Dir(pth) != dir {
		t.Errorf("PthScriptPath() = %s, want under %s", pth, dir)
	}
}
