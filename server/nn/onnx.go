package nn

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	ort "github.com/yalue/onnxruntime_go"
)

// gray used for letterbox padding, from the ultralytics convention
const letterboxFill = 114

// InitializeOnnxRuntime must be called once per process, before creating any
// OnnxDetector. libraryPath may be empty if onnxruntime is on the default
// search path.
func InitializeOnnxRuntime(libraryPath string) error {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

func DestroyOnnxRuntime() {
	ort.DestroyEnvironment()
}

// A single onnxruntime session, with its pre-allocated input/output tensors.
// Sessions are not safe for concurrent use, which is why OnnxDetector keeps
// a pool of them.
type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// OnnxDetector runs a YOLOv8-style object detection model via onnxruntime.
// It implements ObjectDetector. DetectObjects may be called concurrently;
// each call borrows a session from the pool for its duration.
type OnnxDetector struct {
	log      logs.Log
	cfg      *ModelConfig
	sessions chan *onnxSession
	all      []*onnxSession
}

// NewOnnxDetector loads the model weights from modelFile (.onnx), and the
// model config from the .json file next to it.
func NewOnnxDetector(log logs.Log, modelFile string, poolSize int) (*OnnxDetector, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	cfgFile := strings.TrimSuffix(modelFile, filepath.Ext(modelFile)) + ".json"
	cfg, err := LoadModelConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to load model config %v: %w", cfgFile, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("Model config %v is incomplete", cfgFile)
	}
	d := &OnnxDetector{
		log:      log,
		cfg:      cfg,
		sessions: make(chan *onnxSession, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		s, err := newOnnxSession(modelFile, cfg)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("Failed to create onnx session %v: %w", i, err)
		}
		d.all = append(d.all, s)
		d.sessions <- s
	}
	log.Infof("Loaded %v model %v (%vx%v, %v classes, %v sessions)", cfg.Architecture, modelFile, cfg.Width, cfg.Height, len(cfg.Classes), poolSize)
	return d, nil
}

func newOnnxSession(modelFile string, cfg *ModelConfig) (*onnxSession, error) {
	inputShape := ort.NewShape(1, 3, int64(cfg.Height), int64(cfg.Width))
	outputShape := ort.NewShape(1, int64(4+len(cfg.Classes)), int64(numCandidates(cfg.Width, cfg.Height)))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, err
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()
	// One thread per session. Parallelism comes from the session pool.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)
	session, err := ort.NewAdvancedSession(
		modelFile,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	return &onnxSession{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Number of candidate boxes emitted by a YOLOv8 head: one per cell of the
// stride 8, 16 and 32 feature maps (8400 for 640x640).
func numCandidates(width, height int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (width / stride) * (height / stride)
	}
	return n
}

func (d *OnnxDetector) Config() *ModelConfig {
	return d.cfg
}

func (d *OnnxDetector) Close() {
	for _, s := range d.all {
		s.destroy()
	}
	d.all = nil
}

func (d *OnnxDetector) DetectObjects(img *cimg.Image, params *DetectionParams) ([]ObjectDetection, error) {
	if params == nil {
		params = NewDetectionParams()
	}
	s := <-d.sessions
	defer func() { d.sessions <- s }()

	scale, padX, padY := letterbox(img, d.cfg, s.input.GetData())
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("Model inference failed: %w", err)
	}
	return decodeYolo(s.output.GetData(), d.cfg, params, img.Width, img.Height, scale, padX, padY), nil
}

// letterbox scales img to fit the model input while preserving aspect ratio,
// pads the remainder with gray, and writes the result into dst in planar
// NCHW float32 form, normalized to [0,1].
// Returns the scale factor and the padding offsets, needed to map boxes back
// into the source image.
func letterbox(img *cimg.Image, cfg *ModelConfig, dst []float32) (scale float64, padX, padY int) {
	scale = min(float64(cfg.Width)/float64(img.Width), float64(cfg.Height)/float64(img.Height))
	scaledW := int(float64(img.Width)*scale + 0.5)
	scaledH := int(float64(img.Height)*scale + 0.5)
	padX = (cfg.Width - scaledW) / 2
	padY = (cfg.Height - scaledH) / 2

	resized := cimg.ResizeNew(img, scaledW, scaledH, nil)

	planeSize := cfg.Width * cfg.Height
	fill := float32(letterboxFill) / 255.0
	for i := 0; i < 3*planeSize; i++ {
		dst[i] = fill
	}
	nchan := resized.NChan()
	stride := resized.Width * nchan
	for y := 0; y < scaledH; y++ {
		row := resized.Pixels[y*stride:]
		dstRow := (y+padY)*cfg.Width + padX
		for x := 0; x < scaledW; x++ {
			r := row[x*nchan]
			g := r
			b := r
			if nchan >= 3 {
				g = row[x*nchan+1]
				b = row[x*nchan+2]
			}
			dst[dstRow+x] = float32(r) / 255.0
			dst[planeSize+dstRow+x] = float32(g) / 255.0
			dst[2*planeSize+dstRow+x] = float32(b) / 255.0
		}
	}
	return
}

// decodeYolo turns the raw [1, 4+nclasses, ncandidates] output tensor into
// detections in source-image coordinates. The confidence threshold is
// applied here, inside the capability, and NMS suppresses overlapping boxes
// of the same class. The surviving detections are returned in the model's
// candidate enumeration order.
func decodeYolo(data []float32, cfg *ModelConfig, params *DetectionParams, srcWidth, srcHeight int, scale float64, padX, padY int) []ObjectDetection {
	threshold := params.ProbabilityThreshold
	if threshold == 0 {
		threshold = DefaultProbabilityThreshold
	}
	iouThreshold := params.NmsIouThreshold
	if iouThreshold == 0 {
		iouThreshold = DefaultNmsIouThreshold
	}
	nCandidates := numCandidates(cfg.Width, cfg.Height)
	nClasses := len(cfg.Classes)

	candidates := []ObjectDetection{}
	for i := 0; i < nCandidates; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < nClasses; c++ {
			score := data[(4+c)*nCandidates+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}
		cx := float64(data[0*nCandidates+i])
		cy := float64(data[1*nCandidates+i])
		w := float64(data[2*nCandidates+i])
		h := float64(data[3*nCandidates+i])
		box := Rect{
			X:      int((cx-w/2-float64(padX))/scale + 0.5),
			Y:      int((cy-h/2-float64(padY))/scale + 0.5),
			Width:  int(w/scale + 0.5),
			Height: int(h/scale + 0.5),
		}.Clip(srcWidth, srcHeight)
		if box.Area() == 0 {
			continue
		}
		candidates = append(candidates, ObjectDetection{
			Class:      bestClass,
			Confidence: bestScore,
			Box:        box,
		})
	}

	// NMS. Suppression considers boxes in confidence order, but the output
	// retains the candidates' enumeration order.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Confidence > candidates[order[b]].Confidence
	})
	suppressed := make([]bool, len(candidates))
	for ai, a := range order {
		if suppressed[a] {
			continue
		}
		for _, b := range order[ai+1:] {
			if suppressed[b] || candidates[a].Class != candidates[b].Class {
				continue
			}
			if candidates[a].Box.IOU(candidates[b].Box) >= iouThreshold {
				suppressed[b] = true
			}
		}
	}
	result := []ObjectDetection{}
	for i, det := range candidates {
		if !suppressed[i] {
			result = append(result, det)
		}
	}
	return result
}
