package video

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used for intermediate silent video files.
const DefaultCodec = "mp4v"

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("video sink is closed")

// Sink writes frames to a video file.
type Sink interface {
	WriteFrame(frame *gocv.Mat) error
	Close() error
	Path() string
}

// fileSink writes frames to a video file using gocv.VideoWriter.
type fileSink struct {
	path   string
	writer *gocv.VideoWriter
	mu     sync.Mutex
	closed bool
}

// NewFileSink creates a Sink writing to the given path with the stream
// geometry from info. A zero or negative FPS falls back to 30.
func NewFileSink(path, codec string, info Info) (Sink, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	fps := info.FPS
	if fps <= 0 {
		fps = 30
	}

	writer, err := gocv.VideoWriterFile(path, codec, fps, info.Width, info.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("cannot open video writer for %s", path)
	}

	return &fileSink{path: path, writer: writer}, nil
}

// WriteFrame appends a frame to the output file.
func (s *fileSink) WriteFrame(frame *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if err := s.writer.Write(*frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close finalizes the output file.
func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Path returns the output file path.
func (s *fileSink) Path() string {
	return s.path
}
