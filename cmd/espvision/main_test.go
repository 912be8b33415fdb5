package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a TOML config pointing at temp locations and returns
// its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootShowsHelpWithoutArgs(t *testing.T) {
	out, err := runCommand(t)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("help output missing usage section:\n%s", out)
	}
}

func TestDepsReportsMissingModel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, `
data_dir = "`+dir+`"

[model]
path = "`+filepath.Join(dir, "missing.onnx")+`"

[encoder]
ffmpeg = "`+filepath.Join(dir, "no-ffmpeg")+`"
ffprobe = "`+filepath.Join(dir, "no-ffprobe")+`"
`)

	out, err := runCommand(t, "--config", cfgPath, "deps")
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
	if !strings.Contains(out, "missing") {
		t.Errorf("output should flag missing dependencies:\n%s", out)
	}
}

func TestDepsPassesWhenModelPresent(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "yolov8n.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	cfgPath := writeConfig(t, `
data_dir = "`+dir+`"

[model]
path = "`+model+`"
`)

	out, err := runCommand(t, "--config", cfgPath, "deps")
	if err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "model") {
		t.Errorf("output missing model row:\n%s", out)
	}
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, `data_dir = "`+dir+`"`)

	out, err := runCommand(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "No jobs recorded yet.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfgPath := writeConfig(t, `
[model]
confidence_threshold = 7.5
`)

	_, err := runCommand(t, "--config", cfgPath, "history")
	if err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}
	if !strings.Contains(err.Error(), "confidence_threshold") {
		t.Errorf("error = %v, want mention of confidence_threshold", err)
	}
}
