package video

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back a fixed number of synthetic frames for testing.
type MockSource struct {
	info    Info
	total   int
	index   int
	openErr error
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a MockSource that yields total blank frames with
// the given geometry.
func NewMockSource(info Info, total int) *MockSource {
	return &MockSource{info: info, total: total}
}

// SetOpenError makes Open fail with the given error.
func (s *MockSource) SetOpenError(err error) {
	s.openErr = err
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// ReadFrame returns a fresh blank frame until the configured total is
// reached, then io.EOF.
func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}
	if s.index >= s.total {
		return nil, io.EOF
	}
	s.index++

	mat := gocv.NewMatWithSize(s.info.Height, s.info.Width, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (s *MockSource) Info() Info {
	return s.info
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MockSink records written frame count without touching the filesystem.
type MockSink struct {
	path   string
	mu     sync.Mutex
	frames int
	closed bool
	err    error
}

// NewMockSink creates a MockSink reporting the given path.
func NewMockSink(path string) *MockSink {
	return &MockSink{path: path}
}

// SetWriteError makes WriteFrame fail with the given error.
func (s *MockSink) SetWriteError(err error) {
	s.err = err
}

func (s *MockSink) WriteFrame(frame *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.err != nil {
		return s.err
	}
	s.frames++
	return nil
}

func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MockSink) Path() string {
	return s.path
}

// Frames returns the number of frames written so far.
func (s *MockSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
