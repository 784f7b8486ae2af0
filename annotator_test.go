package annotator

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smoke-annotator/internal/config"
	"github.com/menta2k/smoke-annotator/pkg/annotation"
	"github.com/menta2k/smoke-annotator/pkg/canvas"
	"github.com/menta2k/smoke-annotator/pkg/drawing"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

const eps = 1e-6

// 1920x1080 fitted into 800x600 renders at 800x450 with a 75px letterbox
func newTestWorkspace(t *testing.T) (*Workspace, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	opts := DefaultOptions()
	opts.Logger = log
	ws := NewWithOptions(opts)
	ws.SetViewport(types.ContainerInfo{Width: 800, Height: 600}, types.Size{Width: 1920, Height: 1080})
	return ws, hook
}

func drag(t *testing.T, ws *Workspace, from, to types.Point) (drawing.DrawnRectangle, bool) {
	t.Helper()
	ws.SetDrawMode(true)
	require.NoError(t, ws.PointerDown(from))
	ws.PointerMove(to)
	rect, ok, err := ws.PointerUp(to)
	require.NoError(t, err)
	return rect, ok
}

func testDetections() []types.Detection {
	at := time.Date(2024, 8, 2, 12, 0, 0, 0, time.UTC)
	return []types.Detection{
		{ID: 7, RecordedAt: at, Predictions: []types.Prediction{
			{XYXYN: [4]float32{0.1, 0.1, 0.3, 0.3}, Confidence: 0.9, ClassName: "smoke"},
		}},
		{ID: 8, RecordedAt: at.Add(30 * time.Second), Predictions: []types.Prediction{
			{XYXYN: [4]float32{0.11, 0.1, 0.31, 0.3}, Confidence: 0.8, ClassName: "smoke"},
			{XYXYN: [4]float32{0.11, 0.1, 0.31, 0.31}, Confidence: 0.7, ClassName: "smoke"},
			{XYXYN: [4]float32{0.6, 0.6, 0.8, 0.8}, Confidence: 0.5, ClassName: "smoke"},
		}},
	}
}

func TestDisplayInfo(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	info := ws.DisplayInfo()
	assert.InDelta(t, 800, info.Width, eps)
	assert.InDelta(t, 450, info.Height, eps)
	assert.InDelta(t, 0, info.OffsetX, eps)
	assert.InDelta(t, 75, info.OffsetY, eps)

	p := ws.ScreenToImage(types.Point{X: 100, Y: 175})
	assert.InDelta(t, 100, p.X, eps)
	assert.InDelta(t, 100, p.Y, eps)
}

func TestPointerDrawingCommitsNormalizedRectangle(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	rect, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	require.True(t, ok)
	assert.InDelta(t, 0.125, rect.XYXYN.X1, eps)
	assert.InDelta(t, 100.0/450, rect.XYXYN.Y1, eps)
	assert.InDelta(t, 0.375, rect.XYXYN.X2, eps)
	assert.InDelta(t, 0.5, rect.XYXYN.Y2, eps)
	assert.Equal(t, types.SmokeWildfire, rect.Classification)
	assert.NotEmpty(t, rect.ID)

	overlays := ws.Overlays()
	require.Len(t, overlays, 1)
	assert.InDelta(t, 100, overlays[0].Bounds.Left, 1e-6)
	assert.InDelta(t, 175, overlays[0].Bounds.Top, 1e-6)
	assert.InDelta(t, 200, overlays[0].Bounds.Width, 1e-6)
	assert.InDelta(t, 125, overlays[0].Bounds.Height, 1e-6)
}

func TestPreviewFollowsDrag(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	_, ok := ws.Preview()
	assert.False(t, ok)

	ws.SetDrawMode(true)
	require.NoError(t, ws.PointerDown(types.Point{X: 300, Y: 300}))
	ws.PointerMove(types.Point{X: 100, Y: 175})

	preview, ok := ws.Preview()
	require.True(t, ok)
	assert.InDelta(t, 100, preview.Left, eps)
	assert.InDelta(t, 175, preview.Top, eps)
	assert.InDelta(t, 200, preview.Width, eps)
	assert.InDelta(t, 125, preview.Height, eps)
}

func TestTinyDragIsDiscardedWithoutUndoEntry(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	_, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 105, Y: 180})
	assert.False(t, ok)
	assert.Empty(t, ws.Session().Rectangles())
	assert.False(t, ws.Session().CanUndo())
	assert.Equal(t, drawing.DrawModeArmed, ws.Session().State())
}

func TestPointerUpWithoutDragIsNoop(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	_, ok, err := ws.PointerUp(types.Point{X: 10, Y: 10})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectDeleteAndUndo(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	rect, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	require.True(t, ok)

	ws.SetDrawMode(false)
	require.NoError(t, ws.PointerDown(types.Point{X: 200, Y: 250}))
	selected, ok := ws.Session().Selected()
	require.True(t, ok)
	assert.Equal(t, rect.ID, selected.ID)

	require.NoError(t, ws.DeleteSelected())
	assert.Empty(t, ws.Session().Rectangles())
	assert.ErrorIs(t, ws.DeleteSelected(), drawing.ErrRectangleNotFound)

	assert.True(t, ws.Undo())
	require.Len(t, ws.Session().Rectangles(), 1)
	assert.True(t, ws.Undo())
	assert.Empty(t, ws.Session().Rectangles())
	assert.False(t, ws.Undo())
}

func TestClickOutsideClearsSelection(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	_, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	require.True(t, ok)

	ws.SetDrawMode(false)
	require.NoError(t, ws.PointerDown(types.Point{X: 200, Y: 250}))
	_, ok = ws.Session().Selected()
	require.True(t, ok)

	require.NoError(t, ws.PointerDown(types.Point{X: 700, Y: 500}))
	_, ok = ws.Session().Selected()
	assert.False(t, ok)
}

func TestLetterboxClickDoesNotSelectEdgeRectangle(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	// touches the top image edge: xyxyn {0.125, 0, 0.375, 0.278}
	rect, ok := drag(t, ws, types.Point{X: 100, Y: 75}, types.Point{X: 300, Y: 200})
	require.True(t, ok)
	assert.InDelta(t, 0, rect.XYXYN.Y1, eps)

	ws.SetDrawMode(false)
	require.NoError(t, ws.PointerDown(types.Point{X: 200, Y: 100}))
	_, ok = ws.Session().Selected()
	require.True(t, ok)

	require.NoError(t, ws.PointerDown(types.Point{X: 200, Y: 20}))
	_, ok = ws.Session().Selected()
	assert.False(t, ok, "click in the top letterbox must not select")

	require.NoError(t, ws.PointerDown(types.Point{X: 200, Y: 590}))
	_, ok = ws.Session().Selected()
	assert.False(t, ok)
}

func TestClassifyAndMove(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	rect, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	require.True(t, ok)

	assert.ErrorIs(t, ws.Classify(rect.ID, "steam"), annotation.ErrInvalidValue)
	assert.ErrorIs(t, ws.Classify("missing", types.SmokeIndustrial), drawing.ErrRectangleNotFound)

	require.NoError(t, ws.Classify(rect.ID, types.SmokeIndustrial))
	got, _ := ws.Session().Rectangle(rect.ID)
	assert.Equal(t, types.SmokeIndustrial, got.Classification)

	moved := types.NewNormalizedBbox(0.5, 0.5, 0.7, 0.7)
	require.NoError(t, ws.Move(rect.ID, moved))
	got, _ = ws.Session().Rectangle(rect.ID)
	assert.Equal(t, moved, got.XYXYN)

	require.True(t, ws.Undo())
	got, _ = ws.Session().Rectangle(rect.ID)
	assert.Equal(t, rect.XYXYN, got.XYXYN)
	assert.Equal(t, types.SmokeIndustrial, got.Classification)

	require.True(t, ws.Undo())
	got, _ = ws.Session().Rectangle(rect.ID)
	assert.Equal(t, types.SmokeWildfire, got.Classification)
}

func TestClearRectanglesIsUndoable(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	drag(t, ws, types.Point{X: 400, Y: 200}, types.Point{X: 600, Y: 400})
	require.Len(t, ws.Session().Rectangles(), 2)

	ws.ClearRectangles()
	assert.Empty(t, ws.Session().Rectangles())
	require.True(t, ws.Undo())
	assert.Len(t, ws.Session().Rectangles(), 2)
}

func TestWheelZoomAndPanConstraints(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	tr := ws.Wheel(types.Point{X: 400, Y: 300}, -100)
	assert.InDelta(t, 1.2, tr.ZoomLevel, eps)
	assert.InDelta(t, 50, tr.TransformOrigin.X, eps)
	assert.InDelta(t, 50, tr.TransformOrigin.Y, eps)

	// (800*1.2-800)/2 = 80 horizontally, 450*1.2 < 600 vertically
	tr = ws.View(canvas.PanBy{DX: 500, DY: 50})
	assert.InDelta(t, 80, tr.PanOffset.X, eps)
	assert.InDelta(t, 0, tr.PanOffset.Y, eps)

	for i := 0; i < 50; i++ {
		tr = ws.Wheel(types.Point{X: 400, Y: 300}, -1)
	}
	assert.InDelta(t, 4, tr.ZoomLevel, eps)

	tr = ws.View(canvas.SetZoom{Level: 1})
	assert.InDelta(t, 1, tr.ZoomLevel, eps)
	assert.Equal(t, types.Point{}, tr.PanOffset)

	tr = ws.Wheel(types.Point{X: 400, Y: 300}, 1)
	assert.InDelta(t, 1, tr.ZoomLevel, eps)

	ws.Wheel(types.Point{X: 0, Y: 75}, -1)
	tr = ws.View(canvas.ResetView{})
	assert.Equal(t, types.IdentityTransform(), tr)
}

func TestViewportResizeRenormalizesPan(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ws.View(canvas.SetZoom{Level: 2})
	ws.View(canvas.PanBy{DX: 400})
	assert.InDelta(t, 400, ws.Transform().PanOffset.X, eps)

	// at zoom 2 an 800x450 image may move 400px, a 400x225 one only 200px
	ws.SetViewport(types.ContainerInfo{Width: 400, Height: 300}, types.Size{Width: 1920, Height: 1080})
	assert.InDelta(t, 200, ws.Transform().PanOffset.X, eps)
}

func TestDrawingUnderZoomMapsThroughTransform(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ws.View(canvas.SetZoom{Level: 2})

	// origin at the center: screen x = 400 + 2*(x-400), y = 75 + 225 + 2*(y-225)
	rect, ok := drag(t, ws, types.Point{X: 200, Y: 200}, types.Point{X: 600, Y: 400})
	require.True(t, ok)
	assert.InDelta(t, 0.375, rect.XYXYN.X1, eps)
	assert.InDelta(t, 0.625, rect.XYXYN.X2, eps)
	assert.InDelta(t, 175.0/450, rect.XYXYN.Y1, eps)
	assert.InDelta(t, 275.0/450, rect.XYXYN.Y2, eps)
}

func TestImportPredictions(t *testing.T) {
	ws, hook := newTestWorkspace(t)
	ws.LoadSequence(annotation.SequenceAnnotation{}, testDetections())

	_, err := ws.ImportPredictions(99)
	assert.ErrorIs(t, err, ErrDetectionNotFound)

	res, err := ws.ImportPredictions(8)
	require.NoError(t, err)
	assert.Len(t, res.Imported, 2)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "predictions imported", hook.LastEntry().Message)
	assert.Equal(t, int64(8), hook.LastEntry().Data["detection_id"])

	res, err = ws.ImportPredictions(8)
	require.NoError(t, err)
	assert.Empty(t, res.Imported)
	assert.Equal(t, 3, res.Skipped)

	require.True(t, ws.Undo())
	assert.Empty(t, ws.Session().Rectangles())
	assert.False(t, ws.Undo())
}

func TestRectangleWarnings(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	assert.Empty(t, ws.RectangleWarnings().Warnings)

	drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	res := ws.RectangleWarnings()
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestDedupThresholdGovernsImportAndWarnings(t *testing.T) {
	// IoU of the two boxes is 0.6: same rows, x ranges [0.125,0.375] and [0.1875,0.4375]
	pred := types.Prediction{XYXYN: [4]float32{0.1875, 100.0 / 450, 0.4375, 0.5}, Confidence: 0.9, ClassName: "smoke"}
	dets := []types.Detection{{ID: 1, Predictions: []types.Prediction{pred}}}

	tests := []struct {
		threshold float64
		overlaps  bool
	}{
		{0.8, false},
		{0.5, true},
	}

	for _, tt := range tests {
		opts := DefaultOptions()
		opts.DedupThreshold = tt.threshold
		ws := NewWithOptions(opts)
		ws.SetViewport(types.ContainerInfo{Width: 800, Height: 600}, types.Size{Width: 1920, Height: 1080})
		ws.LoadSequence(annotation.SequenceAnnotation{}, dets)

		drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
		drag(t, ws, types.Point{X: 150, Y: 175}, types.Point{X: 350, Y: 300})
		warnings := ws.RectangleWarnings().Warnings
		assert.Equal(t, tt.overlaps, len(warnings) > 0, "threshold %v: %v", tt.threshold, warnings)

		ws.ClearRectangles()
		drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
		res, err := ws.ImportPredictions(1)
		require.NoError(t, err)
		assert.Equal(t, tt.overlaps, res.Skipped == 1, "threshold %v", tt.threshold)
	}
}

func TestDetectionAnnotationExport(t *testing.T) {
	ws, _ := newTestWorkspace(t)

	none := ws.DetectionAnnotation(7, annotation.DetectionVisualCheck)
	assert.True(t, none.IsFalsePositive())
	assert.True(t, none.IsComplete())

	drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	d := ws.DetectionAnnotation(7, annotation.DetectionVisualCheck)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, types.SmokeWildfire, d.Entries[0].SmokeType)
	assert.False(t, d.IsFalsePositive())

	d, err := annotation.TransitionDetection(d, annotation.DetectionAnnotated)
	require.NoError(t, err)
	assert.Equal(t, annotation.DetectionAnnotated, d.Stage)
}

func TestImportSequenceClustersPredictions(t *testing.T) {
	ws, hook := newTestWorkspace(t)

	seq := ws.ImportSequence(3, testDetections())
	assert.Equal(t, int64(3), seq.SequenceID())
	assert.Equal(t, annotation.StageReadyToAnnotate, seq.Stage())
	require.Equal(t, 2, seq.Len())

	first, _ := seq.Box(0)
	assert.Len(t, first.Bboxes, 3)
	assert.Equal(t, int64(7), first.Bboxes[0].DetectionID)
	second, _ := seq.Box(1)
	assert.Len(t, second.Bboxes, 1)

	assert.Len(t, ws.Detections(), 2)
	assert.Equal(t, "sequence loaded", hook.LastEntry().Message)
}

func TestReviewFinalizeIsGated(t *testing.T) {
	ws, hook := newTestWorkspace(t)
	ws.ImportSequence(3, testDetections())

	err := ws.Review(annotation.Finalize{})
	require.ErrorIs(t, err, annotation.ErrIncomplete)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, annotation.StageReadyToAnnotate, ws.Sequence().Stage())
	assert.Len(t, ws.ValidationErrors(), 2)

	require.NoError(t, ws.Review(annotation.ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire}))
	require.NoError(t, ws.Review(annotation.ToggleFalsePositive{Box: 1, Type: types.FPBuilding}))
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	c := ws.Completion()
	assert.Equal(t, 2, c.Completed)
	assert.Equal(t, 100, c.Percentage)
	assert.False(t, c.IsComplete)

	require.NoError(t, ws.Review(annotation.SetMissedSmoke{Review: annotation.MissedSmokeNo}))
	assert.True(t, ws.Completion().IsComplete)
	assert.Empty(t, ws.ValidationErrors())

	require.NoError(t, ws.Review(annotation.Finalize{}))
	assert.Equal(t, annotation.StageAnnotated, ws.Sequence().Stage())
	entry := hook.LastEntry()
	assert.Equal(t, "stage changed", entry.Message)
	assert.Equal(t, annotation.StageAnnotated, entry.Data["to"])

	assert.ErrorIs(t, ws.Review(annotation.ClearClassification{Box: 0}), annotation.ErrStageLocked)

	require.NoError(t, ws.Review(annotation.Reset{}))
	assert.Equal(t, annotation.StageReadyToAnnotate, ws.Sequence().Stage())
	assert.Equal(t, 0, ws.Completion().Completed)
}

func TestLoadSequenceDiscardsSession(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 300, Y: 300})
	ws.View(canvas.SetZoom{Level: 2})

	ws.ImportSequence(4, testDetections())
	assert.Empty(t, ws.Session().Rectangles())
	assert.False(t, ws.Session().CanUndo())
	assert.Equal(t, drawing.Idle, ws.Session().State())
	assert.Equal(t, types.IdentityTransform(), ws.Transform())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.MaxZoom = 6
	cfg.Drawing.MinDrawSize = 4
	cfg.Annotation.DefaultSmokeType = string(types.SmokeIndustrial)

	opts := OptionsFromConfig(cfg, nil)
	assert.InDelta(t, 6, opts.Zoom.MaxZoom, eps)
	assert.InDelta(t, 4, opts.Drawing.MinDrawSize, eps)
	assert.Equal(t, types.SmokeIndustrial, opts.DefaultSmokeType)
	assert.InDelta(t, cfg.Annotation.SequenceMergeThreshold, opts.MergeThreshold, eps)
	assert.NotNil(t, opts.Logger)

	ws := NewWithOptions(opts)
	ws.SetViewport(types.ContainerInfo{Width: 800, Height: 600}, types.Size{Width: 1920, Height: 1080})
	rect, ok := drag(t, ws, types.Point{X: 100, Y: 175}, types.Point{X: 106, Y: 181})
	require.True(t, ok)
	assert.Equal(t, types.SmokeIndustrial, rect.Classification)
}
