package detect

import (
	"errors"
	"fmt"
	"image"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Model input/output geometry for YOLOv8 exported to ONNX.
const (
	inputSize   = 640
	numAnchors  = 8400
	boxElements = 4
)

// ErrModelNotFound is returned when the configured ONNX model file does not exist.
var ErrModelNotFound = errors.New("model file not found")

// ortInitOnce guards ONNX Runtime environment initialization, which may
// only happen once per process.
var (
	ortInitMu   sync.Mutex
	ortInitDone bool
)

// YOLO is a Detector backed by a YOLOv8 ONNX model.
type YOLO struct {
	config  Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
	closed  bool
}

// NewYOLO creates a YOLO detector from the given configuration and loads
// the model into an ONNX Runtime session.
func NewYOLO(config Config) (*YOLO, error) {
	if len(config.Classes) == 0 {
		config.Classes = COCOClasses
	}
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = 0.2
	}
	if config.IoUThreshold <= 0 {
		config.IoUThreshold = 0.7
	}

	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, config.ModelPath)
	}

	y := &YOLO{config: config}
	if err := y.initSession(); err != nil {
		return nil, err
	}
	return y, nil
}

// initSession initializes the ONNX Runtime environment and creates the
// inference session with fixed input/output tensors.
func (y *YOLO) initSession() error {
	ortInitMu.Lock()
	if !ortInitDone {
		if y.config.LibraryPath != "" {
			ort.SetSharedLibraryPath(y.config.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitMu.Unlock()
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
		ortInitDone = true
	}
	ortInitMu.Unlock()

	inputShape := ort.NewShape(1, 3, inputSize, inputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(boxElements+len(y.config.Classes)), numAnchors)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(y.config.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("create session: %w", err)
	}

	y.session = session
	y.input = inputTensor
	y.output = outputTensor
	return nil
}

// Detect runs inference on a frame and returns thresholded, NMS-merged
// detections in original frame coordinates.
func (y *YOLO) Detect(frame *gocv.Mat) ([]Detection, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil, errors.New("detector is closed")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	if err := y.prepareInput(img); err != nil {
		return nil, err
	}

	if err := y.session.Run(); err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}

	detections := decodeOutput(y.output.GetData(), y.config.Classes,
		y.config.ConfidenceThreshold, width, height)
	return mergeOverlapping(detections, y.config.IoUThreshold), nil
}

// Close releases the ONNX Runtime session and tensors.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}
	y.closed = true

	y.session.Destroy()
	y.input.Destroy()
	y.output.Destroy()
	return nil
}

// prepareInput resizes the frame to the model input size and fills the
// input tensor in CHW order with normalized RGB values.
func (y *YOLO) prepareInput(img image.Image) error {
	data := y.input.GetData()
	channelSize := inputSize * inputSize
	if len(data) < channelSize*3 {
		return fmt.Errorf("input tensor holds %d floats, need %d", len(data), channelSize*3)
	}

	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	img = resize.Resize(inputSize, inputSize, img, resize.Lanczos3)
	i := 0
	for row := 0; row < inputSize; row++ {
		for col := 0; col < inputSize; col++ {
			r, g, b, _ := img.At(col, row).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// decodeOutput converts the raw model output tensor into detections scaled
// to the original frame size. The output layout is (4+C) rows of numAnchors
// columns: cx, cy, w, h followed by one probability row per class.
func decodeOutput(output []float32, classes []string, confidence float32, width, height int) []Detection {
	detections := make([]Detection, 0, 64)

	for idx := 0; idx < numAnchors; idx++ {
		classID := 0
		best := float32(-1)
		for col := 0; col < len(classes); col++ {
			prob := output[numAnchors*(col+boxElements)+idx]
			if prob > best {
				best = prob
				classID = col
			}
		}

		if best < confidence {
			continue
		}

		xc, yc := output[idx], output[numAnchors+idx]
		w, h := output[2*numAnchors+idx], output[3*numAnchors+idx]

		detections = append(detections, Detection{
			Class:      classes[classID],
			ClassID:    classID,
			Confidence: best,
			X1:         (xc - w/2) / inputSize * float32(width),
			Y1:         (yc - h/2) / inputSize * float32(height),
			X2:         (xc + w/2) / inputSize * float32(width),
			Y2:         (yc + h/2) / inputSize * float32(height),
		})
	}
	return detections
}

// mergeOverlapping performs non-maximum suppression: detections are taken
// in descending confidence order and any box overlapping an already kept
// box beyond the IoU threshold is dropped.
func mergeOverlapping(detections []Detection, iou float32) []Detection {
	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	merged := make([]Detection, 0, len(detections))
	for i := range detections {
		candidate := &detections[i]
		overlaps := false
		for j := range merged {
			if candidate.IoU(&merged[j]) > iou {
				overlaps = true
				break
			}
		}
		if !overlaps {
			merged = append(merged, *candidate)
		}
	}
	return merged
}

// defaultLibraryPath returns the platform library name for ONNX Runtime,
// resolved from the loader's default search path unless overridden.
func defaultLibraryPath() string {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
