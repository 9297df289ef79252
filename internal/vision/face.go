package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// FaceDetector runs the Ultra-Light-Fast RFB-320 face detector using ONNX Runtime.
type FaceDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	scoresTensor *ort.Tensor[float32]
	boxesTensor  *ort.Tensor[float32]
	threshold    float32
	nmsThreshold float32
	inputW       int
	inputH       int
}

// rfbPriors is the number of prior boxes of the 320x240 model.
const rfbPriors = 4420

// NewFaceDetector loads the RFB-320 ONNX model.
func NewFaceDetector(modelPath string, threshold, nmsThreshold float32, opts *ort.SessionOptions) (*FaceDetector, error) {
	inputW, inputH := 320, 240

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// scores: [1, 4420, 2] background/face; boxes: [1, 4420, 4] normalized corners
	scoresTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, rfbPriors, 2))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create scores tensor: %w", err)
	}
	boxesTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, rfbPriors, 4))
	if err != nil {
		inputTensor.Destroy()
		scoresTensor.Destroy()
		return nil, fmt.Errorf("create boxes tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"scores", "boxes"},
		[]ort.Value{inputTensor},
		[]ort.Value{scoresTensor, boxesTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		scoresTensor.Destroy()
		boxesTensor.Destroy()
		return nil, fmt.Errorf("create face detector session: %w", err)
	}

	return &FaceDetector{
		session:      session,
		inputTensor:  inputTensor,
		scoresTensor: scoresTensor,
		boxesTensor:  boxesTensor,
		threshold:    threshold,
		nmsThreshold: nmsThreshold,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Detect runs face detection on a preprocessed image.
// imgData should be CHW format [3, 240, 320], normalized with mean 127 and std 128.
func (d *FaceDetector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run face detection: %w", err)
	}

	faces := decodeFaces(d.scoresTensor.GetData(), d.boxesTensor.GetData(), d.threshold, origW, origH)
	return nms(faces, d.nmsThreshold, false), nil
}

// InputSize returns the model's expected input dimensions.
func (d *FaceDetector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	for _, t := range []*ort.Tensor[float32]{d.inputTensor, d.scoresTensor, d.boxesTensor} {
		if t != nil {
			t.Destroy()
		}
	}
}

// decodeFaces keeps priors whose face score passes the threshold and scales
// their normalized corners to image pixels.
func decodeFaces(scores, boxes []float32, threshold float32, origW, origH int) []Detection {
	n := len(scores) / 2
	if len(boxes)/4 < n {
		n = len(boxes) / 4
	}

	var faces []Detection
	for i := 0; i < n; i++ {
		score := scores[i*2+1]
		if score < threshold {
			continue
		}
		faces = append(faces, Detection{
			BBox: [4]float32{
				clampF(boxes[i*4+0]*float32(origW), 0, float32(origW)),
				clampF(boxes[i*4+1]*float32(origH), 0, float32(origH)),
				clampF(boxes[i*4+2]*float32(origW), 0, float32(origW)),
				clampF(boxes[i*4+3]*float32(origH), 0, float32(origH)),
			},
			Confidence: score,
			Label:      "face",
		})
	}
	return faces
}
