package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one object found in a frame.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 (pixel coordinates)
	Confidence float32
	ClassID    int
	Label      string
}

// ObjectDetector runs YOLOv8 object detection using ONNX Runtime.
type ObjectDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
	nmsThreshold float32
	labels       []string
	inputW       int
	inputH       int
}

const (
	yoloInputSize = 640
	yoloAnchors   = 8400 // 80*80 + 40*40 + 20*20
)

// NewObjectDetector loads a YOLOv8 ONNX export with the COCO head.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewObjectDetector(modelPath string, threshold, nmsThreshold float32, opts *ort.SessionOptions) (*ObjectDetector, error) {
	inputW, inputH := yoloInputSize, yoloInputSize
	labels := COCOLabels

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// output0: [1, 4+classes, anchors], rows are cx, cy, w, h, then one score per class
	outputShape := ort.NewShape(1, int64(4+len(labels)), yoloAnchors)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &ObjectDetector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
		nmsThreshold: nmsThreshold,
		labels:       labels,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Detect runs detection on a preprocessed image.
// imgData should be CHW format [3, inputH, inputW] scaled to [0, 1].
// origW/origH are the original image dimensions for coordinate scaling.
func (d *ObjectDetector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	scaleX := float32(origW) / float32(d.inputW)
	scaleY := float32(origH) / float32(d.inputH)
	detections := decodeYOLO(d.outputTensor.GetData(), d.labels, yoloAnchors, d.threshold, scaleX, scaleY, origW, origH)
	return nms(detections, d.nmsThreshold, true), nil
}

// InputSize returns the model's expected input dimensions.
func (d *ObjectDetector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *ObjectDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// decodeYOLO turns the attribute-major YOLOv8 head into detections: for each
// anchor the best class score is compared to the threshold and the center
// box is converted to corners in original image pixels.
func decodeYOLO(out []float32, labels []string, anchors int, threshold, scaleX, scaleY float32, origW, origH int) []Detection {
	numClasses := len(labels)
	if len(out) < (4+numClasses)*anchors {
		return nil
	}

	var detections []Detection
	for i := 0; i < anchors; i++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			if s := out[(4+c)*anchors+i]; s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx := out[0*anchors+i]
		cy := out[1*anchors+i]
		w := out[2*anchors+i]
		h := out[3*anchors+i]

		detections = append(detections, Detection{
			BBox: [4]float32{
				clampF((cx-w/2)*scaleX, 0, float32(origW)),
				clampF((cy-h/2)*scaleY, 0, float32(origH)),
				clampF((cx+w/2)*scaleX, 0, float32(origW)),
				clampF((cy+h/2)*scaleY, 0, float32(origH)),
			},
			Confidence: bestScore,
			ClassID:    bestClass,
			Label:      labels[bestClass],
		})
	}
	return detections
}

// nms performs Non-Maximum Suppression on detections. With perClass set, boxes
// of different classes never suppress each other.
func nms(detections []Detection, iouThreshold float32, perClass bool) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if perClass && detections[i].ClassID != detections[j].ClassID {
				continue
			}
			if iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
