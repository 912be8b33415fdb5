// Package mux merges a processed silent video stream with the original
// audio track by invoking ffmpeg as a subprocess, with a file-copy
// fallback when ffmpeg is unavailable or fails.
package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single ffmpeg invocation.
const DefaultTimeout = 10 * time.Minute

// ErrEncoderNotFound is returned when the ffmpeg binary cannot be resolved.
var ErrEncoderNotFound = errors.New("ffmpeg not found")

// Muxer invokes ffmpeg to remux video and audio streams.
type Muxer struct {
	// Binary is the ffmpeg command name or path. Defaults to "ffmpeg".
	Binary string

	// ProbeBinary is the ffprobe command name or path. Defaults to "ffprobe".
	ProbeBinary string

	// Timeout bounds a single invocation. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// New creates a Muxer with the given ffmpeg and ffprobe binaries.
// Empty values fall back to resolving the plain names from PATH.
func New(ffmpeg, ffprobe string) *Muxer {
	return &Muxer{Binary: ffmpeg, ProbeBinary: ffprobe}
}

func (m *Muxer) binary() string {
	if b := strings.TrimSpace(m.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (m *Muxer) probeBinary() string {
	if b := strings.TrimSpace(m.ProbeBinary); b != "" {
		return b
	}
	return "ffprobe"
}

// Available reports whether the ffmpeg binary can be resolved.
func (m *Muxer) Available() bool {
	_, err := exec.LookPath(m.binary())
	return err == nil
}

// Remux merges the video stream of silentPath with the audio stream of
// originalPath into outputPath. The video stream is copied without
// re-encoding; audio is encoded to AAC. The output is truncated to the
// shorter of the two inputs.
func (m *Muxer) Remux(ctx context.Context, silentPath, originalPath, outputPath string) error {
	if _, err := exec.LookPath(m.binary()); err != nil {
		return fmt.Errorf("%w: %q", ErrEncoderNotFound, m.binary())
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-i", silentPath,
		"-i", originalPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outputPath,
		"-y",
	}

	cmd := exec.CommandContext(ctx, m.binary(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ffmpeg timed out after %s", timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(msg, 512))
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// tail returns at most n trailing bytes of s. ffmpeg prints the useful
// error last, after a long banner.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
