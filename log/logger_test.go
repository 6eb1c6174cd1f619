package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pyrite-io/smelt/types"
)

func TestLoggerIncludesConversionContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter("conv-123", types.FamilyLlama, &buf)

	logger.Info("validating model", map[string]any{"model_path": "/models/7B"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["conversion_id"] != "conv-123" {
		t.Errorf("conversion_id = %v, want conv-123", entry["conversion_id"])
	}
	if entry["family"] != "llama" {
		t.Errorf("family = %v, want llama", entry["family"])
	}
	if entry["message"] != "validating model" {
		t.Errorf("message = %v, want 'validating model'", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter("conv-1", types.FamilyGGML, &buf)

	logger.Debug("d", nil)
	logger.Warn("w", nil)
	logger.Error("e", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3", len(lines))
	}

	wantLevels := []string{"debug", "warn", "error"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["level"] != wantLevels[i] {
			t.Errorf("line %d level = %v, want %s", i, entry["level"], wantLevels[i])
		}
	}
}

func TestSugaredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter("conv-2", types.FamilyGPT4All, &buf)

	logger.Sugar().Infof("converting %s", "/models/gpt4all.bin")

	if !strings.Contains(buf.String(), "converting /models/gpt4all.bin") {
		t.Errorf("sugared output missing formatted message: %s", buf.String())
	}
}
