package detect

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.detections = detections
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns the number of times Detect has been invoked.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PersonDetection returns a preset detection representing a person in the
// center of a 640x480 frame.
func PersonDetection() Detection {
	return Detection{
		Class:      "person",
		ClassID:    0,
		Confidence: 0.92,
		X1:         200, Y1: 80, X2: 440, Y2: 460,
	}
}

// TrafficLightDetection returns a preset low-confidence traffic light
// detection, just above its lowered draw threshold.
func TrafficLightDetection() Detection {
	return Detection{
		Class:      "traffic light",
		ClassID:    9,
		Confidence: 0.25,
		X1:         20, Y1: 10, X2: 60, Y2: 90,
	}
}
