// Package script provides embedded converter script management.
//
// The converter scripts are embedded at build time and extracted to a
// temporary directory on first use. This keeps the smelt binary
// self-contained without requiring a separate converter installation.
package script

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pyrite-io/smelt/types"
)

//go:embed bundle/convert_pth_to_ggml.py
var pthScript []byte

//go:embed bundle/convert_gpt4all_to_ggml.py
var gpt4allScript []byte

// PthScriptName is the file name of the extracted checkpoint converter.
const PthScriptName = "convert_pth_to_ggml.py"

// GPT4AllScriptName is the file name of the extracted gpt4all converter.
const GPT4AllScriptName = "convert_gpt4all_to_ggml.py"

// extractOnce ensures extraction happens only once per process.
var extractOnce sync.Once
var extractedDir string
var extractErr error

// IsEmbedded returns true if converter scripts are embedded in this binary.
func IsEmbedded() bool {
	return len(pthScript) > 0 && len(gpt4allScript) > 0
}

// Checksum returns the SHA256 checksum over both embedded scripts.
func Checksum() string {
	hash := sha256.New()
	hash.Write(pthScript)
	hash.Write(gpt4allScript)
	return hex.EncodeToString(hash.Sum(nil))
}

// ExtractedDir returns the directory holding the extracted scripts.
// Extracts on first call; subsequent calls return the cached path.
func ExtractedDir() (string, error) {
	extractOnce.Do(func() {
		extractedDir, extractErr = extractScripts()
	})
	return extractedDir, extractErr
}

// PthScriptPath returns the path to the extracted checkpoint converter.
func PthScriptPath() (string, error) {
	dir, err := ExtractedDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PthScriptName), nil
}

// GPT4AllScriptPath returns the path to the extracted gpt4all converter.
func GPT4AllScriptPath() (string, error) {
	dir, err := ExtractedDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GPT4AllScriptName), nil
}

// extractScripts extracts the embedded scripts to a temp directory.
func extractScripts() (string, error) {
	if !IsEmbedded() {
		return "", fmt.Errorf("no embedded converter scripts available")
	}

	// Hash-based directory name lets multiple versions coexist.
	checksum := Checksum()[:16]
	dirName := fmt.Sprintf("smelt-converters-%s-%s", types.Version, checksum)
	tempDir := filepath.Join(os.TempDir(), dirName)

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	files := map[string][]byte{
		PthScriptName:     pthScript,
		GPT4AllScriptName: gpt4allScript,
	}
	for name, content := range files {
		path := filepath.Join(tempDir, name)

		// Already extracted (idempotent).
		if info, err := os.Stat(path); err == nil && info.Size() == int64(len(content)) {
			continue
		}
		if err := os.WriteFile(path, content, 0o755); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	return tempDir, nil
}

// Cleanup removes the extracted script directory.
// Safe to call multiple times or if extraction never happened.
func Cleanup() error {
	if extractedDir == "" {
		return nil
	}
	if err := os.RemoveAll(extractedDir); err != nil {
		return fmt.Errorf("failed to cleanup converter scripts: %w", err)
	}
	return nil
}
