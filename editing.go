package annotator

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/smoke-annotator/pkg/annotation"
	"github.com/menta2k/smoke-annotator/pkg/drawing"
	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// ErrDetectionNotFound is returned for a detection id outside the loaded sequence
var ErrDetectionNotFound = errors.New("detection not found in sequence")

// SetDrawMode arms or disarms drawing
func (w *Workspace) SetDrawMode(on bool) {
	w.session.SetDrawMode(on)
}

// PointerDown starts a drag when drawing is armed and otherwise selects the
// most recent rectangle under the pointer. A click outside the rendered
// image clears the selection.
func (w *Workspace) PointerDown(screen types.Point) error {
	if w.session.State() == drawing.DrawModeArmed {
		return w.session.StartDrawing(w.ScreenToImage(screen))
	}
	p, inside := w.ScreenToUnit(screen)
	if !inside {
		w.session.ClearSelection()
		return nil
	}
	w.session.SelectRectangleAtPoint(p)
	return nil
}

// PointerMove extends the drag in progress; it is a no-op otherwise
func (w *Workspace) PointerMove(screen types.Point) {
	if w.session.State() == drawing.ActivelyDrawing {
		_ = w.session.UpdateDrawing(w.ScreenToImage(screen))
	}
}

// PointerUp commits the drag in progress with the default smoke type. An
// undo snapshot is recorded only when a rectangle is actually created.
func (w *Workspace) PointerUp(screen types.Point) (drawing.DrawnRectangle, bool, error) {
	if w.session.State() != drawing.ActivelyDrawing {
		return drawing.DrawnRectangle{}, false, nil
	}
	_ = w.session.UpdateDrawing(w.ScreenToImage(screen))

	before := w.session.Rectangles()
	rect, ok, err := w.session.FinishDrawing(w.DisplayInfo(), w.opts.DefaultSmokeType)
	if err != nil || !ok {
		return rect, ok, err
	}
	w.session.PushSnapshot(before)

	w.log.WithFields(logrus.Fields{"id": rect.ID, "xyxyn": rect.XYXYN.XYXYN()}).Debug("rectangle drawn")
	return rect, true, nil
}

// DeleteSelected removes the selected rectangle, recording an undo snapshot
func (w *Workspace) DeleteSelected() error {
	if _, ok := w.session.Selected(); !ok {
		return drawing.ErrRectangleNotFound
	}
	w.session.PushUndo()
	return w.session.DeleteSelected()
}

// Classify changes a rectangle's smoke type, recording an undo snapshot
func (w *Workspace) Classify(id string, smokeType types.SmokeType) error {
	if !smokeType.Valid() {
		return fmt.Errorf("%w: smoke type %q", annotation.ErrInvalidValue, smokeType)
	}
	if _, ok := w.session.Rectangle(id); !ok {
		return drawing.ErrRectangleNotFound
	}
	w.session.PushUndo()
	return w.session.UpdateClassification(id, smokeType)
}

// Move replaces a rectangle's box, recording an undo snapshot
func (w *Workspace) Move(id string, bbox types.NormalizedBbox) error {
	if _, ok := w.session.Rectangle(id); !ok {
		return drawing.ErrRectangleNotFound
	}
	w.session.PushUndo()
	return w.session.MoveRectangle(id, bbox)
}

// ClearRectangles removes every rectangle, recording an undo snapshot
func (w *Workspace) ClearRectangles() {
	w.session.PushUndo()
	w.session.ClearRectangles()
}

// Undo restores the previous rectangle set
func (w *Workspace) Undo() bool {
	return w.session.Undo()
}

// ImportPredictions copies the predictions of one frame into the drawing
// session, skipping near-duplicates of existing rectangles
func (w *Workspace) ImportPredictions(detectionID int64) (drawing.ImportResult, error) {
	var det *types.Detection
	for i := range w.detections {
		if w.detections[i].ID == detectionID {
			det = &w.detections[i]
			break
		}
	}
	if det == nil {
		return drawing.ImportResult{}, fmt.Errorf("%w: %d", ErrDetectionNotFound, detectionID)
	}

	before := w.session.Rectangles()
	res := w.session.ImportPredictions(det.Predictions, w.opts.DedupThreshold, w.opts.DefaultSmokeType)
	if len(res.Imported) > 0 {
		w.session.PushSnapshot(before)
	}

	w.log.WithFields(logrus.Fields{
		"detection_id": detectionID,
		"imported":     len(res.Imported),
		"skipped":      res.Skipped,
	}).Info("predictions imported")
	return res, nil
}

// Overlays returns the rectangles projected onto the rendered image
func (w *Workspace) Overlays() []drawing.Overlay {
	return w.session.OverlayRectangles(w.DisplayInfo())
}

// Preview returns the rectangle being dragged, if any
func (w *Workspace) Preview() (types.PixelBbox, bool) {
	return w.session.PreviewRectangle(w.DisplayInfo())
}

// RectangleWarnings reports heavily overlapping and very small rectangles
func (w *Workspace) RectangleWarnings() geometry.ValidationResult {
	rects := w.session.Rectangles()
	boxes := make([]types.NormalizedBbox, len(rects))
	res := geometry.NewValidationResult()
	for i, r := range rects {
		boxes[i] = r.XYXYN
		res.Merge(geometry.ValidateBbox(r.XYXYN))
	}
	res.Merge(geometry.ValidateRectangleOverlaps(boxes, w.opts.DedupThreshold))
	return res
}

// DetectionAnnotation turns the drawn rectangles into a per-frame record.
// No rectangles means an explicit "no smoke" answer.
func (w *Workspace) DetectionAnnotation(detectionID int64, stage annotation.DetectionStage) annotation.DetectionAnnotation {
	rects := w.session.Rectangles()
	entries := annotation.NoSmoke()
	for _, r := range rects {
		entries = append(entries, annotation.DetectionEntry{Box: r.XYXYN, SmokeType: r.Classification})
	}
	return annotation.DetectionAnnotation{DetectionID: detectionID, Entries: entries, Stage: stage}
}
