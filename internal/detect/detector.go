// Package detect provides object detection over video frames using a
// pretrained YOLOv8 model served by ONNX Runtime.
package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Detection represents a single detected object in a frame.
type Detection struct {
	// Class is the raw model class name, e.g. "traffic light".
	Class string
	// ClassID is the index of the class in the model's class list.
	ClassID int
	// Confidence is the model's confidence score in [0, 1].
	Confidence float32
	// X1, Y1, X2, Y2 are the box corners in original frame coordinates.
	X1, Y1, X2, Y2 float32
}

// Rect returns the detection box as an image.Rectangle.
func (d *Detection) Rect() image.Rectangle {
	return image.Rect(int(d.X1), int(d.Y1), int(d.X2), int(d.Y2)).Canon()
}

// String returns a human-readable summary of the detection.
func (d *Detection) String() string {
	return fmt.Sprintf("%s (%.2f)", d.Class, d.Confidence)
}

func (d *Detection) area() int {
	size := d.Rect().Size()
	return size.X * size.Y
}

func (d *Detection) intersection(other *Detection) float32 {
	r := d.Rect().Intersect(other.Rect()).Canon().Size()
	return float32(r.X * r.Y)
}

// IoU returns the intersection-over-union ratio between two boxes.
func (d *Detection) IoU(other *Detection) float32 {
	inter := d.intersection(other)
	union := float32(d.area()+other.area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected objects.
	// Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the YOLO detector.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// LibraryPath is the path to the ONNX Runtime shared library.
	LibraryPath string

	// ConfidenceThreshold is the minimum confidence for a raw detection (0.0-1.0).
	ConfidenceThreshold float32

	// IoUThreshold is the overlap ratio above which boxes are merged (0.0-1.0).
	IoUThreshold float32

	// Classes is the ordered class name list the model was trained on.
	// Defaults to the COCO 80-class list.
	Classes []string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:           "yolov8n.onnx",
		LibraryPath:         defaultLibraryPath(),
		ConfidenceThreshold: 0.2,
		IoUThreshold:        0.7,
		Classes:             COCOClasses,
	}
}
