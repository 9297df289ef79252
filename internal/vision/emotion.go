package vision

import (
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// EmotionClassifier predicts facial emotion using the FER+ ONNX model.
type EmotionClassifier struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// emotionClasses is the FER+ head size.
const emotionClasses = 8

// NewEmotionClassifier loads the FER+ emotion model.
func NewEmotionClassifier(modelPath string, opts *ort.SessionOptions) (*EmotionClassifier, error) {
	// FER+ expects a single 64x64 grayscale channel with raw 0-255 values
	inputW, inputH := 64, 64

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, emotionClasses))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"Input3"},
		[]string{"Plus692_Output_0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create emotion session: %w", err)
	}

	return &EmotionClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Classify returns one percentage per emotion class for a preprocessed face.
// faceData should be [1, 64, 64] grayscale.
func (c *EmotionClassifier) Classify(faceData []float32) ([emotionClasses]float64, error) {
	copy(c.inputTensor.GetData(), faceData)

	if err := c.session.Run(); err != nil {
		return [emotionClasses]float64{}, fmt.Errorf("run emotion: %w", err)
	}

	data := c.outputTensor.GetData()
	if len(data) < emotionClasses {
		return [emotionClasses]float64{}, fmt.Errorf("unexpected output size: %d", len(data))
	}
	return softmaxPercent(data[:emotionClasses]), nil
}

// InputSize returns the expected face crop dimensions.
func (c *EmotionClassifier) InputSize() (int, int) {
	return c.inputW, c.inputH
}

func (c *EmotionClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
}

// softmaxPercent converts logits to percentages summing to 100.
func softmaxPercent(logits []float32) [emotionClasses]float64 {
	var out [emotionClasses]float64
	if len(logits) == 0 {
		return out
	}

	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	var sum float64
	for i := 0; i < len(logits) && i < emotionClasses; i++ {
		out[i] = math.Exp(float64(logits[i]) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] = out[i] / sum * 100
	}
	return out
}
