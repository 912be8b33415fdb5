// Package video provides file-based video reading and writing using GoCV (OpenCV).
package video

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSourceNotOpen is returned when trying to read from a source that is not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// Info describes the geometry and timing of a video stream.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Source defines the interface for frame sources.
type Source interface {
	Open() error
	Close() error
	// ReadFrame reads the next frame. It returns io.EOF when the stream
	// is exhausted. The caller is responsible for closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	Info() Info
	IsOpen() bool
}

// fileSource reads frames sequentially from a video file using GoCV.
type fileSource struct {
	path    string
	capture *gocv.VideoCapture
	info    Info
	mu      sync.Mutex
	running bool
}

// NewFileSource creates a Source for the given video file path.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

// Open opens the video file and probes its geometry.
func (s *fileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("stat video file: %w", err)
	}

	capture, err := gocv.VideoCaptureFile(s.path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("cannot open video capture for %s", s.path)
	}

	s.info = Info{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}

	s.capture = capture
	s.running = true
	return nil
}

// Close closes the video file and releases resources.
func (s *fileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false
	return err
}

// ReadFrame reads a single frame from the file.
// The caller is responsible for closing the returned Mat.
func (s *fileSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, io.EOF
	}

	if mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}

	return &mat, nil
}

// Info returns the probed stream information.
// Only valid after Open has succeeded.
func (s *fileSource) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// IsOpen returns true if the source is currently open.
func (s *fileSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
