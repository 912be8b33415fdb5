// Package jobs runs processing pipelines on a single background worker
// and fans progress and log events out to subscribers.
package jobs

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/yoriiioff/espvision/internal/pipeline"
)

// ErrBusy is returned when a job is started while another is running.
var ErrBusy = errors.New("a job is already running")

// Event types delivered to subscribers.
const (
	EventLog      = "log"
	EventProgress = "progress"
	EventDone     = "done"
	EventFailed   = "failed"
)

// Event is a single update from a running job.
type Event struct {
	Type string `json:"type"`
	// JobID identifies the job the event belongs to.
	JobID string `json:"job_id"`
	// Line is set for log events.
	Line string `json:"line,omitempty"`
	// Progress is set for progress events.
	Progress *pipeline.Progress `json:"progress,omitempty"`
	// Output is set for done events.
	Output string `json:"output,omitempty"`
	// Error is set for failed events.
	Error string `json:"error,omitempty"`
}

// Runner executes at most one processing job at a time on a background
// goroutine.
type Runner struct {
	template pipeline.Config

	mu      sync.Mutex
	current string // running job ID, empty when idle

	subMu sync.RWMutex
	subs  map[chan Event]struct{}

	frameMu     sync.RWMutex
	lastFrame   []byte
	previewRefs int
}

// NewRunner creates a Runner. The template's callbacks are replaced with
// the runner's own fan-out.
func NewRunner(template pipeline.Config) *Runner {
	return &Runner{
		template: template,
		subs:     make(map[chan Event]struct{}),
	}
}

// Running returns the ID of the currently running job, if any.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != ""
}

// Start launches processing of inputPath on a background goroutine and
// returns the new job ID. It fails with ErrBusy while another job is
// running and validates that the input file exists up front.
func (r *Runner) Start(inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.current != "" {
		r.mu.Unlock()
		return "", ErrBusy
	}
	jobID := uuid.NewString()
	r.current = jobID
	r.mu.Unlock()

	cfg := r.template
	cfg.OnLog = func(line string) {
		r.publish(Event{Type: EventLog, JobID: jobID, Line: line})
	}
	cfg.OnProgress = func(p pipeline.Progress) {
		progress := p
		r.publish(Event{Type: EventProgress, JobID: jobID, Progress: &progress})
	}
	cfg.OnFrame = r.captureFrame

	processor := pipeline.New(cfg)

	go func() {
		result, err := processor.ProcessJob(context.Background(), jobID, inputPath)

		r.mu.Lock()
		r.current = ""
		r.mu.Unlock()

		if err != nil {
			r.publish(Event{Type: EventFailed, JobID: jobID, Error: err.Error()})
			return
		}
		r.publish(Event{Type: EventDone, JobID: jobID, Output: result.OutputPath, Line: result.Describe()})
	}()

	return jobID, nil
}

// Subscribe registers an event channel. The returned function removes the
// subscription. Slow subscribers lose events rather than blocking the
// pipeline.
func (r *Runner) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	unsubscribe := func() {
		r.subMu.Lock()
		delete(r.subs, ch)
		r.subMu.Unlock()
	}
	return ch, unsubscribe
}

func (r *Runner) publish(event Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for ch := range r.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// AcquirePreview marks a preview consumer as active so frames get
// JPEG-encoded. The returned function releases the consumer.
func (r *Runner) AcquirePreview() func() {
	r.frameMu.Lock()
	r.previewRefs++
	r.frameMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.frameMu.Lock()
			r.previewRefs--
			r.frameMu.Unlock()
		})
	}
}

// LastFrame returns the most recent JPEG-encoded processed frame, or nil
// when no preview consumer is active or nothing has been processed yet.
func (r *Runner) LastFrame() []byte {
	r.frameMu.RLock()
	defer r.frameMu.RUnlock()
	return r.lastFrame
}

// captureFrame encodes the frame as JPEG for preview streaming. Encoding
// is skipped entirely while nobody is watching.
func (r *Runner) captureFrame(frame *gocv.Mat) {
	r.frameMu.RLock()
	active := r.previewRefs > 0
	r.frameMu.RUnlock()
	if !active {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	buf.Close()

	r.frameMu.Lock()
	r.lastFrame = data
	r.frameMu.Unlock()
}
