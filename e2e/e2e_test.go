package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/yoriiioff/espvision/internal/detect"
	"github.com/yoriiioff/espvision/internal/jobs"
	"github.com/yoriiioff/espvision/internal/mux"
	"github.com/yoriiioff/espvision/internal/pipeline"
	"github.com/yoriiioff/espvision/internal/server"
	"github.com/yoriiioff/espvision/internal/store"
	"github.com/yoriiioff/espvision/internal/video"
)

// writeScript writes an executable shell script used to stand in for an
// external binary.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stubs are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "data.db")

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// Stub ffmpeg writes a marker to the output path, the argument just
	// before the trailing -y. Stub ffprobe reports one audio stream.
	ffmpeg := writeScript(t, "ffmpeg", `
out=""
prev=""
for arg in "$@"; do
  if [ "$arg" = "-y" ]; then out="$prev"; fi
  prev="$arg"
done
printf muxed > "$out"
`)
	ffprobe := writeScript(t, "ffprobe",
		`printf '{"streams":[{"codec_type":"video"},{"codec_type":"audio"}]}'`)

	info := video.Info{Width: 64, Height: 48, FPS: 30, FrameCount: 40}
	runner := jobs.NewRunner(pipeline.Config{
		Detector: detect.NewMockDetector(),
		Muxer:    mux.New(ffmpeg, ffprobe),
		Store:    s,
		OpenSource: func(path string) video.Source {
			return video.NewMockSource(info, info.FrameCount)
		},
		OpenSink: func(path, codec string, i video.Info) (video.Sink, error) {
			return video.NewMockSink(path), nil
		},
	})

	srv := server.New(server.Config{Store: s, Runner: runner})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	inputDir := t.TempDir()
	input := filepath.Join(inputDir, "clip.mp4")
	if err := os.WriteFile(input, []byte("original"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	var jobID string
	t.Run("CreateJob", func(t *testing.T) {
		body := `{"input_path": "` + input + `"}`
		resp, err := client.Post(ts.URL+"/api/jobs", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("create job error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		var created struct {
			JobID string `json:"job_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		jobID = created.JobID
	})

	t.Run("JobCompletes", func(t *testing.T) {
		deadline := time.After(30 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.Type == jobs.EventFailed {
					t.Fatalf("job failed: %s", ev.Error)
				}
				if ev.Type == jobs.EventDone {
					if ev.JobID != jobID {
						t.Errorf("done event for job %q, want %q", ev.JobID, jobID)
					}
					return
				}
			case <-deadline:
				t.Fatal("timed out waiting for job completion")
			}
		}
	})

	t.Run("OutputWritten", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(inputDir, "out.mp4"))
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if string(data) != "muxed" {
			t.Errorf("output = %q, want mux marker", data)
		}
	})

	t.Run("JobRecorded", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/jobs/" + jobID)
		if err != nil {
			t.Fatalf("get job error = %v", err)
		}
		defer resp.Body.Close()

		var job struct {
			Status          string `json:"status"`
			ProcessedFrames int    `json:"processed_frames"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status != "done" {
			t.Errorf("status = %q, want done", job.Status)
		}
		if job.ProcessedFrames != info.FrameCount {
			t.Errorf("processed_frames = %d, want %d", job.ProcessedFrames, info.FrameCount)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health check error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after job run")
		}
	})
}

func TestE2E_FallbackWithoutEncoder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	info := video.Info{Width: 64, Height: 48, FPS: 30, FrameCount: 10}
	var sink *video.MockSink
	runner := jobs.NewRunner(pipeline.Config{
		Detector: detect.NewMockDetector(),
		Muxer:    mux.New(filepath.Join(tmpDir, "no-such-ffmpeg"), ""),
		Store:    s,
		OpenSource: func(path string) video.Source {
			return video.NewMockSource(info, info.FrameCount)
		},
		OpenSink: func(path, codec string, i video.Info) (video.Sink, error) {
			sink = video.NewMockSink(path)
			return sink, nil
		},
	})

	inputDir := t.TempDir()
	input := filepath.Join(inputDir, "clip.mp4")
	if err := os.WriteFile(input, []byte("original"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	jobID, err := runner.Start(input)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(30 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type == jobs.EventFailed {
				t.Fatalf("job failed: %s", ev.Error)
			}
			if ev.Type == jobs.EventDone {
				done = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for job completion")
		}
	}

	// Without ffmpeg the silent intermediate is copied into place.
	if _, err := os.Stat(filepath.Join(inputDir, "out.mp4")); err != nil {
		t.Fatalf("output not written: %v", err)
	}

	job, err := s.Jobs().GetByID(jobID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if job.Status != store.JobStatusNoAudio {
		t.Errorf("status = %q, want %q", job.Status, store.JobStatusNoAudio)
	}
}
