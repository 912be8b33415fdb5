package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/yoriiioff/espvision/internal/jobs"
)

// PreviewHandler serves MJPEG frames of the job currently being processed.
type PreviewHandler struct {
	runner *jobs.Runner
}

// NewPreviewHandler creates a new PreviewHandler for the given runner.
func NewPreviewHandler(runner *jobs.Runner) *PreviewHandler {
	return &PreviewHandler{runner: runner}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	release := h.runner.AcquirePreview()
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame := h.runner.LastFrame()
		if frame == nil || sameFrame(frame, last) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		last = frame

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
		w.Write(frame)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}

// sameFrame reports whether two frame buffers are the same snapshot.
// LastFrame returns the stored slice unchanged, so pointer identity is
// enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
