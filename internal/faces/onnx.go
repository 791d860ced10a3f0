package faces

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// InitRuntime loads the onnxruntime shared library and initializes the
// environment. Call once before creating detectors or embedders; pair
// with ShutdownRuntime.
func InitRuntime(libraryPath string) error {
	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the onnxruntime environment.
func ShutdownRuntime() {
	ort.DestroyEnvironment()
}

// retinaDetector runs the RetinaFace det_10g model. The model takes a
// 640x640 input and emits anchor-relative scores, boxes and landmarks at
// three strides.
type retinaDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	inputW        int
	inputH        int
}

var retinaStrides = []int{8, 16, 32}

const (
	retinaAnchors = 2
	nmsIOU        = 0.4
	rawScoreFloor = 0.5
)

// NewRetinaDetector loads the det_10g ONNX model from modelPath.
func NewRetinaDetector(modelPath string) (Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	// Output rows per stride: (640/s)^2 * anchors. Names are the model's
	// internal node ids.
	specs := []struct {
		name string
		rows int64
		cols int64
	}{
		{"448", 12800, 1}, {"471", 3200, 1}, {"494", 800, 1},
		{"451", 12800, 4}, {"474", 3200, 4}, {"497", 800, 4},
		{"454", 12800, 10}, {"477", 3200, 10}, {"500", 800, 10},
	}

	outputNames := make([]string, len(specs))
	outputTensors := make([]*ort.Tensor[float32], len(specs))
	outputValues := make([]ort.Value, len(specs))
	for i, spec := range specs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.rows, spec.cols))
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("failed to create output tensor %s: %w", spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"}, outputNames,
		[]ort.Value{inputTensor}, outputValues, nil)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("failed to create detector session: %w", err)
	}

	return &retinaDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

func (d *retinaDetector) Detect(img image.Image) ([]Detection, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	copy(d.inputTensor.GetData(), toCHW(img, d.inputW, d.inputH, 127.5, 128.0))

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	detections := d.decode(origW, origH)
	return suppress(detections, nmsIOU), nil
}

// decode converts the anchor-relative stride outputs to pixel
// coordinates in the original image.
func (d *retinaDetector) decode(origW, origH int) []Detection {
	var out []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range retinaStrides {
		scores := d.outputTensors[si].GetData()
		boxes := d.outputTensors[si+3].GetData()
		landmarks := d.outputTensors[si+6].GetData()

		fmW := d.inputW / stride
		fmH := d.inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < retinaAnchors; a++ {
					score := scores[idx]
					if score >= rawScoreFloor {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st

						box := [4]float32{
							clamp((anchorX-boxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
							clamp((anchorY-boxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
							clamp((anchorX+boxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
							clamp((anchorY+boxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
						}

						var lm [5][2]float32
						for li := 0; li < 5; li++ {
							lm[li][0] = (anchorX + landmarks[idx*10+li*2]*st) * scaleW
							lm[li][1] = (anchorY + landmarks[idx*10+li*2+1]*st) * scaleH
						}

						out = append(out, Detection{Score: score, Box: box, Landmarks: &lm})
					}
					idx++
				}
			}
		}
	}
	return out
}

func (d *retinaDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// arcfaceEmbedder runs the ArcFace w600k_r50 model: 112x112 input,
// 512-dim output, L2-normalized here.
type arcfaceEmbedder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewArcFaceEmbedder loads the w600k_r50 ONNX model from modelPath.
func NewArcFaceEmbedder(modelPath string) (Embedder, error) {
	inputW, inputH := 112, 112

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, EmbeddingDim))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"}, []string{"683"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create embedder session: %w", err)
	}

	return &arcfaceEmbedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

func (e *arcfaceEmbedder) Embed(face image.Image) ([]float32, error) {
	copy(e.inputTensor.GetData(), toCHW(face, e.inputW, e.inputH, 127.5, 127.5))

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	embedding := make([]float32, EmbeddingDim)
	copy(embedding, e.outputTensor.GetData())

	var sum float64
	for _, v := range embedding {
		sum += float64(v) * float64(v)
	}
	if norm := float32(math.Sqrt(sum)); norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding, nil
}

func (e *arcfaceEmbedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}

// toCHW resizes an image and converts it to the planar RGB float layout
// the models expect, normalized as (pixel - mean) / std.
func toCHW(img image.Image, w, h int, mean, std float32) []float32 {
	resized := imaging.Resize(img, w, h, imaging.Linear)
	data := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			idx := y*w + x
			data[0*h*w+idx] = (float32(r>>8) - mean) / std
			data[1*h*w+idx] = (float32(g>>8) - mean) / std
			data[2*h*w+idx] = (float32(b>>8) - mean) / std
		}
	}
	return data
}

// suppress drops overlapping detections, keeping the highest scored.
func suppress(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}
	for i := range detections {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].Box, detections[j].Box) > iouThreshold {
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
	x1 := max32(a[0], b[0])
	y1 := max32(a[1], b[1])
	x2 := min32(a[2], b[2])
	y2 := min32(a[3], b[3])

	intersection := max32(0, x2-x1) * max32(0, y2-y1)
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
