package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/menta2k/smoke-annotator/pkg/client"
	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks a vision model to locate smoke plumes
const DefaultPrompt = `You are a wildfire smoke spotter looking at a frame from a fixed outdoor camera.

Return JSON only:
{
  "findings": [
    {"label": "smoke", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- One finding per distinct smoke plume; tightly box the visible plume.
- Do not report clouds, fog, haze, dust, lens flare or steam as smoke.
- If there is no smoke, return {"findings": [], "description": "no smoke"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// DefaultClassName is the class recorded on predictions from a vision model
const DefaultClassName = "smoke"

// Config tunes a Detector
type Config struct {
	Model          string
	Prompt         string
	MinConfidence  float64
	MergeThreshold float64
}

// Detector turns vision model answers into detections
type Detector struct {
	client client.VisionClient
	config Config
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, config Config) *Detector {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return &Detector{client: client, config: config}
}

// Detect analyses one frame and returns it as a Detection. Findings below
// the confidence floor, non-smoke labels and empty boxes are dropped;
// heavily overlapping findings are merged.
func (d *Detector) Detect(ctx context.Context, id int64, recordedAt time.Time, imageB64 string) (types.Detection, error) {
	result, err := d.client.LocateSmoke(ctx, d.config.Model, d.config.Prompt, imageB64)
	if err != nil {
		return types.Detection{}, fmt.Errorf("failed to locate smoke in detection %d: %w", id, err)
	}

	return types.Detection{
		ID:          id,
		RecordedAt:  recordedAt,
		Predictions: d.predictions(result),
	}, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.config.Model, SimpleTestPrompt, imageB64)
}

func (d *Detector) predictions(result *types.ModelResult) []types.Prediction {
	if result == nil {
		return []types.Prediction{}
	}

	var boxes []types.NormalizedBbox
	var conf []float64
	for _, f := range result.Findings {
		if !isSmokeLabel(f.Label) {
			continue
		}
		c := types.Clamp01(f.Confidence)
		if c < d.config.MinConfidence {
			continue
		}
		b := f.Box.Bbox()
		if b.Area() <= 0 {
			continue
		}
		boxes = append(boxes, b)
		conf = append(conf, c)
	}

	out := make([]types.Prediction, 0, len(boxes))
	for _, cluster := range geometry.ClusterByOverlap(boxes, d.config.MergeThreshold) {
		merged := geometry.MergeCluster(boxes, cluster)
		best := 0.0
		for _, i := range cluster {
			if conf[i] > best {
				best = conf[i]
			}
		}
		out = append(out, types.Prediction{
			XYXYN:      [4]float32{float32(merged.X1), float32(merged.Y1), float32(merged.X2), float32(merged.Y2)},
			Confidence: float32(best),
			ClassName:  DefaultClassName,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func isSmokeLabel(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	return label == "" || strings.Contains(label, "smoke") || strings.Contains(label, "plume")
}
