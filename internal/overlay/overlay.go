// Package overlay draws detection boxes and labels onto video frames.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/yoriiioff/espvision/internal/detect"
)

// Drawing style constants.
const (
	// Thickness is the box and text stroke width in pixels.
	Thickness = 2
	// FontScale is the label text scale.
	FontScale = 0.9
	// LabelOffset is how far above the box top edge the label is drawn.
	LabelOffset = 10
)

// BoxColor is the overlay color. gocv converts color.RGBA to the BGR
// scalar itself, so red goes in the R field.
var BoxColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// Box draws a single labeled rectangle onto the frame in place.
func Box(frame *gocv.Mat, rect image.Rectangle, label string) {
	gocv.Rectangle(frame, rect, BoxColor, Thickness)
	if label != "" {
		origin := image.Pt(rect.Min.X, rect.Min.Y-LabelOffset)
		gocv.PutText(frame, label, origin, gocv.FontHersheySimplex, FontScale, BoxColor, Thickness)
	}
}

// Detections draws every detection that passes its target threshold and
// returns the number of boxes drawn.
func Detections(frame *gocv.Mat, detections []detect.Detection, targets map[string]detect.Target) int {
	drawn := 0
	for i := range detections {
		d := &detections[i]
		target, ok := detect.TargetFor(targets, d)
		if !ok {
			continue
		}
		Box(frame, d.Rect(), target.Label)
		drawn++
	}
	return drawn
}
