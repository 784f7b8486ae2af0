package drawing

import (
	"math"

	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Overlay is a rectangle ready to be rendered over the image
type Overlay struct {
	ID             string          `json:"id"`
	Bounds         types.PixelBbox `json:"bounds"`
	Classification types.SmokeType `json:"classification"`
	Selected       bool            `json:"selected"`
}

// ImportResult reports the outcome of a prediction import
type ImportResult struct {
	Imported []DrawnRectangle
	Skipped  int
}

// OverlayRectangles projects the committed rectangles onto the rendered image
func (s *Session) OverlayRectangles(info types.ImageDisplayInfo) []Overlay {
	out := make([]Overlay, 0, len(s.rectangles))
	for _, r := range s.rectangles {
		out = append(out, Overlay{
			ID:             r.ID,
			Bounds:         geometry.CalculatePixelBounds(r.XYXYN, info),
			Classification: r.Classification,
			Selected:       r.ID == s.selectedID,
		})
	}
	return out
}

// PreviewRectangle returns the rectangle being dragged, in the same space as
// OverlayRectangles
func (s *Session) PreviewRectangle(info types.ImageDisplayInfo) (types.PixelBbox, bool) {
	if !s.drawing {
		return types.PixelBbox{}, false
	}
	return types.PixelBbox{
		Left:   info.OffsetX + math.Min(s.start.X, s.current.X),
		Top:    info.OffsetY + math.Min(s.start.Y, s.current.Y),
		Width:  math.Abs(s.current.X - s.start.X),
		Height: math.Abs(s.current.Y - s.start.Y),
	}, true
}

// ImportPredictions turns detector predictions into rectangles. A prediction
// whose IoU with an existing rectangle, or with one imported earlier in the
// same call, exceeds dedupThreshold is skipped.
func (s *Session) ImportPredictions(preds []types.Prediction, dedupThreshold float64, classification types.SmokeType) ImportResult {
	existing := make([]types.NormalizedBbox, 0, len(s.rectangles)+len(preds))
	for _, r := range s.rectangles {
		existing = append(existing, r.XYXYN)
	}

	var res ImportResult
	for _, p := range preds {
		b := p.Bbox()
		if b.Area() <= 0 || geometry.IsDuplicate(b, existing, dedupThreshold) {
			res.Skipped++
			continue
		}

		rect := DrawnRectangle{ID: s.newID(), XYXYN: b, Classification: classification}
		s.rectangles = append(s.rectangles, rect)
		existing = append(existing, b)
		res.Imported = append(res.Imported, rect)
	}
	return res
}
