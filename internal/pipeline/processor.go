// Package pipeline orchestrates the full processing workflow: read frames
// from a video file, run object detection, draw overlays, write a silent
// intermediate file, and remux the original audio with ffmpeg.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/8ff/prettyTimer"
	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/yoriiioff/espvision/internal/detect"
	"github.com/yoriiioff/espvision/internal/mux"
	"github.com/yoriiioff/espvision/internal/overlay"
	"github.com/yoriiioff/espvision/internal/store"
	"github.com/yoriiioff/espvision/internal/video"
)

// ProgressInterval is how many frames pass between progress reports.
const ProgressInterval = 30

// DefaultOutputName is the output file written next to the input video.
const DefaultOutputName = "out.mp4"

// Progress is a snapshot of a running job reported via the OnProgress
// callback.
type Progress struct {
	JobID      string   `json:"job_id"`
	Frame      int      `json:"frame"`
	Total      int      `json:"total"`
	Detections int      `json:"detections"`
	// Seen holds up to five class/confidence summaries from the most
	// recent frame with detections.
	Seen []string `json:"seen,omitempty"`
}

// Percent returns the completion percentage, or 0 when the total frame
// count is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Frame) / float64(p.Total) * 100
}

// Result describes a completed processing run.
type Result struct {
	JobID      string
	OutputPath string
	Frames     int
	Detections int
	// Audio reports whether the output carries the original audio track.
	Audio   bool
	Elapsed time.Duration
}

// Config holds configuration options for the Processor.
type Config struct {
	Detector detect.Detector
	// Targets maps model classes to overlay labels and thresholds.
	// Defaults to detect.DefaultTargets.
	Targets map[string]detect.Target
	Muxer   *mux.Muxer
	// Store is optional; when set every run is recorded as a job.
	Store *store.Store
	// OutputName is the file name written next to the input video.
	OutputName string
	// Codec is the fourcc for the intermediate file. Defaults to mp4v.
	Codec string
	// PrintTimings enables per-frame inference timing stats on stdout
	// after the run completes.
	PrintTimings bool

	OnProgress func(Progress)
	OnLog      func(string)
	// OnFrame is called with each frame after overlays are drawn and
	// before it is written. The Mat is only valid for the duration of
	// the call.
	OnFrame func(frame *gocv.Mat)

	// OpenSource and OpenSink allow tests to substitute video I/O.
	OpenSource func(path string) video.Source
	OpenSink   func(path, codec string, info video.Info) (video.Sink, error)
}

// Processor runs the detection pipeline over video files.
type Processor struct {
	config Config
}

// New creates a Processor with the given configuration.
func New(config Config) *Processor {
	if config.Targets == nil {
		config.Targets = detect.DefaultTargets
	}
	if config.OutputName == "" {
		config.OutputName = DefaultOutputName
	}
	if config.Codec == "" {
		config.Codec = video.DefaultCodec
	}
	if config.OpenSource == nil {
		config.OpenSource = video.NewFileSource
	}
	if config.OpenSink == nil {
		config.OpenSink = video.NewFileSink
	}
	if config.Muxer == nil {
		config.Muxer = mux.New("", "")
	}
	return &Processor{config: config}
}

// OutputPath returns where the processed video for inputPath will be
// written: the configured output name in the input's directory.
func (p *Processor) OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	return filepath.Join(dir, p.config.OutputName)
}

// Process runs the full pipeline over the input video with a fresh job ID.
func (p *Processor) Process(ctx context.Context, inputPath string) (*Result, error) {
	return p.ProcessJob(ctx, uuid.NewString(), inputPath)
}

// ProcessJob runs the full pipeline over the input video under the given
// job ID. The returned Result is non-nil on success; on error the job
// record (when a store is configured) is marked failed.
func (p *Processor) ProcessJob(ctx context.Context, jobID, inputPath string) (*Result, error) {
	start := time.Now()
	outputPath := p.OutputPath(inputPath)

	p.logf("job %s: processing %s", jobID, inputPath)

	if p.config.Store != nil {
		err := p.config.Store.Jobs().Create(&store.Job{
			ID:         jobID,
			InputPath:  inputPath,
			OutputPath: outputPath,
		})
		if err != nil {
			return nil, fmt.Errorf("record job: %w", err)
		}
	}

	result, err := p.run(ctx, jobID, inputPath, outputPath)
	if err != nil {
		p.finishJob(jobID, store.JobStatusFailed, outputPath, err.Error())
		return nil, err
	}

	status := store.JobStatusDone
	if !result.Audio {
		status = store.JobStatusNoAudio
	}
	p.finishJob(jobID, status, outputPath, "")

	result.Elapsed = time.Since(start)
	p.logf("job %s: finished in %s, %d frames, %d detections",
		jobID, result.Elapsed.Round(time.Millisecond), result.Frames, result.Detections)
	return result, nil
}

// run executes the frame loop and the mux stage for a single job.
func (p *Processor) run(ctx context.Context, jobID, inputPath, outputPath string) (*Result, error) {
	source := p.config.OpenSource(inputPath)
	if err := source.Open(); err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer source.Close()

	info := source.Info()
	p.logf("job %s: %dx%d @ %.1f fps, %d frames",
		jobID, info.Width, info.Height, info.FPS, info.FrameCount)

	tempPath, err := tempVideoPath()
	if err != nil {
		return nil, err
	}
	// Temporary silent file is removed best-effort once the run ends.
	defer func() {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("remove temp file %s: %v", tempPath, err)
		}
	}()

	sink, err := p.config.OpenSink(tempPath, p.config.Codec, info)
	if err != nil {
		return nil, fmt.Errorf("open temp output: %w", err)
	}

	frames, detections, err := p.frameLoop(ctx, jobID, source, sink, info)
	sink.Close()
	source.Close()
	if err != nil {
		return nil, err
	}

	audio, err := p.muxStage(ctx, jobID, tempPath, inputPath, outputPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		JobID:      jobID,
		OutputPath: outputPath,
		Frames:     frames,
		Detections: detections,
		Audio:      audio,
	}, nil
}

// frameLoop reads, detects, draws, and writes until the source is
// exhausted or the context is cancelled.
func (p *Processor) frameLoop(ctx context.Context, jobID string, source video.Source, sink video.Sink, info video.Info) (int, int, error) {
	timings := prettyTimer.NewTimingStats()

	frames := 0
	totalDrawn := 0
	var lastSeen []string

	for {
		if err := ctx.Err(); err != nil {
			return frames, totalDrawn, fmt.Errorf("processing cancelled: %w", err)
		}

		frame, err := source.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, totalDrawn, fmt.Errorf("read frame %d: %w", frames, err)
		}

		timings.Start()
		detections, err := p.config.Detector.Detect(frame)
		timings.Finish()
		if err != nil {
			// A failed detection on one frame is not fatal; the frame
			// passes through unmodified.
			p.logf("job %s: detection failed on frame %d: %v", jobID, frames, err)
			detections = nil
		}

		if len(detections) > 0 {
			lastSeen = summarize(detections)
		}
		totalDrawn += overlay.Detections(frame, detections, p.config.Targets)

		if p.config.OnFrame != nil {
			p.config.OnFrame(frame)
		}

		werr := sink.WriteFrame(frame)
		frame.Close()
		if werr != nil {
			return frames, totalDrawn, fmt.Errorf("write frame %d: %w", frames, werr)
		}

		frames++
		if frames%ProgressInterval == 0 {
			p.reportProgress(Progress{
				JobID:      jobID,
				Frame:      frames,
				Total:      info.FrameCount,
				Detections: totalDrawn,
				Seen:       lastSeen,
			})
		}
	}

	// Final report so consumers see 100%.
	p.reportProgress(Progress{
		JobID:      jobID,
		Frame:      frames,
		Total:      info.FrameCount,
		Detections: totalDrawn,
		Seen:       lastSeen,
	})

	if p.config.PrintTimings && frames > 0 {
		timings.PrintStats()
	}
	return frames, totalDrawn, nil
}

// muxStage produces the final output from the silent intermediate file.
// It returns true when the output carries the original audio.
func (p *Processor) muxStage(ctx context.Context, jobID, tempPath, inputPath, outputPath string) (bool, error) {
	m := p.config.Muxer

	if !m.Available() {
		p.logf("job %s: ffmpeg not found, saving video without audio", jobID)
		return false, copyFallback(tempPath, outputPath)
	}

	if probe, err := m.Probe(ctx, inputPath); err != nil {
		// Probe failure is not fatal; attempt the remux regardless.
		p.logf("job %s: probe failed (%v), attempting remux anyway", jobID, err)
	} else if !probe.HasAudio() {
		p.logf("job %s: input has no audio track", jobID)
		return false, copyFallback(tempPath, outputPath)
	}

	p.logf("job %s: merging audio with ffmpeg", jobID)
	if err := m.Remux(ctx, tempPath, inputPath, outputPath); err != nil {
		p.logf("job %s: remux failed (%v), saving video without audio", jobID, err)
		return false, copyFallback(tempPath, outputPath)
	}

	p.logf("job %s: audio merged into %s", jobID, outputPath)
	return true, nil
}

func copyFallback(tempPath, outputPath string) error {
	if err := mux.CopyFile(tempPath, outputPath); err != nil {
		return fmt.Errorf("copy silent video: %w", err)
	}
	return nil
}

func (p *Processor) reportProgress(progress Progress) {
	if p.config.OnProgress != nil {
		p.config.OnProgress(progress)
	}
	if p.config.Store != nil {
		if err := p.config.Store.Jobs().UpdateProgress(progress.JobID,
			progress.Total, progress.Frame, progress.Detections); err != nil {
			log.Printf("update job progress: %v", err)
		}
	}
}

func (p *Processor) finishJob(jobID string, status store.JobStatus, outputPath, errText string) {
	if p.config.Store == nil {
		return
	}
	if err := p.config.Store.Jobs().Finish(jobID, status, outputPath, errText); err != nil {
		log.Printf("finish job %s: %v", jobID, err)
	}
}

func (p *Processor) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	log.Print(line)
	if p.config.OnLog != nil {
		p.config.OnLog(line)
	}
}

// summarize returns up to five short class summaries for progress output.
func summarize(detections []detect.Detection) []string {
	n := len(detections)
	if n > 5 {
		n = 5
	}
	seen := make([]string, 0, n)
	for i := 0; i < n; i++ {
		seen = append(seen, detections[i].String())
	}
	return seen
}

// tempVideoPath creates an empty temp file for the silent intermediate
// video and returns its path.
func tempVideoPath() (string, error) {
	f, err := os.CreateTemp("", "espvision-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// Describe returns a one-line human summary of a result for log panes.
func (r *Result) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "wrote %s (%d frames, %d detections", r.OutputPath, r.Frames, r.Detections)
	if r.Audio {
		b.WriteString(", with audio)")
	} else {
		b.WriteString(", no audio)")
	}
	return b.String()
}
