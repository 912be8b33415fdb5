package detect

// COCOClasses is the 80-class list YOLOv8 models are pretrained on, in
// model output order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// Target describes an overlay target class: the display label drawn on the
// frame and the confidence required before the box is drawn.
type Target struct {
	Label      string
	Confidence float32
}

// DefaultTargets maps model class names to overlay targets. Only classes
// present here are drawn; everything else is reported but not overlaid.
// Traffic lights get a lower threshold because they are small and the
// model is less certain about them.
var DefaultTargets = map[string]Target{
	"person":        {Label: "Person", Confidence: 0.4},
	"traffic light": {Label: "Traffic Light", Confidence: 0.2},
	"tv":            {Label: "Monitor", Confidence: 0.4},
	"laptop":        {Label: "Monitor", Confidence: 0.4},
	"car":           {Label: "Car", Confidence: 0.4},
	"truck":         {Label: "Car", Confidence: 0.4},
	"bus":           {Label: "Car", Confidence: 0.4},
	"motorcycle":    {Label: "Car", Confidence: 0.4},
	"bicycle":       {Label: "Car", Confidence: 0.4},
	"potted plant":  {Label: "Tree", Confidence: 0.4},
	"chair":         {Label: "Chair", Confidence: 0.4},
	"couch":         {Label: "Couch", Confidence: 0.4},
	"dining table":  {Label: "Table", Confidence: 0.4},
	"bed":           {Label: "Bed", Confidence: 0.4},
	"toilet":        {Label: "Toilet", Confidence: 0.4},
}

// TargetFor returns the overlay target for a detection, or false when the
// detection is not a target class or falls below its threshold.
func TargetFor(targets map[string]Target, d *Detection) (Target, bool) {
	t, ok := targets[d.Class]
	if !ok {
		return Target{}, false
	}
	if d.Confidence <= t.Confidence {
		return Target{}, false
	}
	return t, true
}
