package mux

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// writeScript creates an executable shell script and returns its path.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRemux_Success(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")

	// Stub ffmpeg: write a marker byte to the arg before the trailing -y.
	ffmpeg := writeScript(t, "ffmpeg", `
prev=""
target=""
for arg; do
  if [ "$arg" = "-y" ]; then target="$prev"; fi
  prev="$arg"
done
printf muxed > "$target"`)

	m := New(ffmpeg, "")
	err := m.Remux(context.Background(), "silent.mp4", "orig.mp4", out)
	if err != nil {
		t.Fatalf("Remux() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "muxed" {
		t.Errorf("output = %q, want muxed", data)
	}
}

func TestRemux_NonZeroExit(t *testing.T) {
	ffmpeg := writeScript(t, "ffmpeg", `echo "Stream map '1:a:0' matches no streams." >&2; exit 1`)

	m := New(ffmpeg, "")
	err := m.Remux(context.Background(), "silent.mp4", "orig.mp4", "out.mp4")
	if err == nil {
		t.Fatal("Remux() should fail when ffmpeg exits non-zero")
	}
	if !strings.Contains(err.Error(), "matches no streams") {
		t.Errorf("error %q should carry ffmpeg stderr", err)
	}
}

func TestRemux_MissingBinary(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "no-such-ffmpeg"), "")
	err := m.Remux(context.Background(), "silent.mp4", "orig.mp4", "out.mp4")
	if !errors.Is(err, ErrEncoderNotFound) {
		t.Fatalf("Remux() error = %v, want ErrEncoderNotFound", err)
	}
}

func TestAvailable(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "no-such-ffmpeg"), "")
	if m.Available() {
		t.Error("Available() = true for missing binary")
	}

	ffmpeg := writeScript(t, "ffmpeg", "exit 0")
	m = New(ffmpeg, "")
	if !m.Available() {
		t.Error("Available() = false for existing stub")
	}
}

func TestProbe_ParsesStreams(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe", `cat <<'EOF'
{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {"filename": "in.mp4", "nb_streams": 2, "format_name": "mov,mp4"}
}
EOF`)

	m := New("", ffprobe)
	result, err := m.Probe(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if !result.HasAudio() {
		t.Error("HasAudio() = false, want true")
	}
	if result.VideoStreamCount() != 1 {
		t.Errorf("VideoStreamCount() = %d, want 1", result.VideoStreamCount())
	}
	if result.Streams[0].Width != 1280 {
		t.Errorf("width = %d, want 1280", result.Streams[0].Width)
	}
}

func TestProbe_NoAudio(t *testing.T) {
	ffprobe := writeScript(t, "ffprobe", `printf '{"streams":[{"index":0,"codec_type":"video"}],"format":{}}'`)

	m := New("", ffprobe)
	result, err := m.Probe(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if result.HasAudio() {
		t.Error("HasAudio() = true, want false")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "dst.mp4")

	if err := os.WriteFile(src, []byte("silent video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "silent video" {
		t.Errorf("destination = %q, want %q", data, "silent video")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	if err := CopyFile("does/not/exist", filepath.Join(t.TempDir(), "dst")); err == nil {
		t.Fatal("CopyFile() with missing source should fail")
	}
}

func TestCheckRequirements(t *testing.T) {
	ffmpeg := writeScript(t, "ffmpeg", "exit 0")
	model := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	statuses := CheckRequirements([]Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "audio remux"},
		{Name: "Missing", Command: "definitely-not-a-binary-zzz", Optional: true},
		{Name: "Model", Command: model, File: true},
		{Name: "Unconfigured", Command: ""},
	})

	if len(statuses) != 4 {
		t.Fatalf("got %d statuses, want 4", len(statuses))
	}
	if !statuses[0].Available {
		t.Errorf("ffmpeg stub should be available: %s", statuses[0].Detail)
	}
	if statuses[1].Available {
		t.Error("missing binary reported available")
	}
	if !statuses[2].Available {
		t.Errorf("model file should be available: %s", statuses[2].Detail)
	}
	if statuses[3].Available || statuses[3].Detail == "" {
		t.Error("unconfigured requirement should be unavailable with detail")
	}
}
