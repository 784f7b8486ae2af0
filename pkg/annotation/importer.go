package annotation

import (
	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// BuildSequenceBboxes groups the predictions of a sequence's detections into
// box tracks. Predictions whose IoU exceeds threshold end up in the same
// SequenceBbox, in detection order. The returned boxes are unclassified.
func BuildSequenceBboxes(detections []types.Detection, threshold float64) []SequenceBbox {
	var refs []BboxRef
	var boxes []types.NormalizedBbox
	for _, d := range detections {
		for _, p := range d.Predictions {
			b := p.Bbox()
			if b.Area() <= 0 {
				continue
			}
			refs = append(refs, BboxRef{DetectionID: d.ID, Box: b})
			boxes = append(boxes, b)
		}
	}

	clusters := geometry.ClusterByOverlap(boxes, threshold)
	out := make([]SequenceBbox, 0, len(clusters))
	for _, cluster := range clusters {
		sb := SequenceBbox{Bboxes: make([]BboxRef, 0, len(cluster))}
		for _, i := range cluster {
			sb.Bboxes = append(sb.Bboxes, refs[i])
		}
		out = append(out, sb)
	}
	return out
}

// Hull returns the union of every frame box of a sequence box
func (b SequenceBbox) Hull() types.NormalizedBbox {
	boxes := make([]types.NormalizedBbox, len(b.Bboxes))
	idx := make([]int, len(b.Bboxes))
	for i, r := range b.Bboxes {
		boxes[i] = r.Box
		idx[i] = i
	}
	return geometry.MergeCluster(boxes, idx)
}
