package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yoriiioff/espvision/internal/detect"
	"github.com/yoriiioff/espvision/internal/mux"
	"github.com/yoriiioff/espvision/internal/pipeline"
	"github.com/yoriiioff/espvision/internal/video"
)

// newTestRunner wires a Runner over mock video I/O.
func newTestRunner(t *testing.T, frames int) *Runner {
	t.Helper()

	info := video.Info{Width: 32, Height: 24, FPS: 30, FrameCount: frames}
	return NewRunner(pipeline.Config{
		Detector: detect.NewMockDetector(),
		Muxer:    mux.New(filepath.Join(t.TempDir(), "no-such-ffmpeg"), ""),
		OpenSource: func(path string) video.Source {
			return video.NewMockSource(info, frames)
		},
		OpenSink: func(path, codec string, i video.Info) (video.Sink, error) {
			return video.NewMockSink(path), nil
		},
	})
}

// touch creates an empty input file.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

// waitForEvent reads events until one of the wanted type arrives.
func waitForEvent(t *testing.T, ch <-chan Event, eventType string) Event {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case event := <-ch:
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestRunner_StartAndComplete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	runner := newTestRunner(t, 35)
	input := touch(t, t.TempDir(), "input.mp4")

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	jobID, err := runner.Start(input)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if jobID == "" {
		t.Fatal("Start() returned empty job ID")
	}

	done := waitForEvent(t, events, EventDone)
	if done.JobID != jobID {
		t.Errorf("done event job = %q, want %q", done.JobID, jobID)
	}
	if done.Output == "" {
		t.Error("done event should carry the output path")
	}

	if _, running := runner.Running(); running {
		t.Error("runner should be idle after completion")
	}
}

func TestRunner_MissingInput(t *testing.T) {
	runner := newTestRunner(t, 1)

	if _, err := runner.Start(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("Start() with missing input should fail")
	}
}

func TestRunner_RejectsConcurrentJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	// Enough frames that the first job is still running when the second starts.
	runner := newTestRunner(t, 5000)
	dir := t.TempDir()
	first := touch(t, dir, "first.mp4")
	second := touch(t, dir, "second.mp4")

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	if _, err := runner.Start(first); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := runner.Start(second); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start() error = %v, want ErrBusy", err)
	}

	waitForEvent(t, events, EventDone)
}

func TestRunner_ProgressEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	runner := newTestRunner(t, 65)
	input := touch(t, t.TempDir(), "input.mp4")

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	if _, err := runner.Start(input); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	progress := waitForEvent(t, events, EventProgress)
	if progress.Progress == nil {
		t.Fatal("progress event has no payload")
	}
	if progress.Progress.Total != 65 {
		t.Errorf("progress total = %d, want 65", progress.Progress.Total)
	}

	waitForEvent(t, events, EventDone)
}

func TestRunner_PreviewInactiveByDefault(t *testing.T) {
	runner := newTestRunner(t, 1)

	if frame := runner.LastFrame(); frame != nil {
		t.Errorf("LastFrame() = %d bytes, want nil", len(frame))
	}

	release := runner.AcquirePreview()
	release()
	release() // double release is safe
}
