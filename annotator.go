// Package annotator is the editing workspace of the wildfire smoke review
// tool. A Workspace owns everything one reviewer manipulates while looking
// at a sequence: the zoom/pan transform of the frame viewport, the drawing
// session for hand-drawn boxes and the sequence review record.
//
// Basic usage:
//
//	ws := annotator.New()
//	ws.SetViewport(types.ContainerInfo{Width: 800, Height: 600}, types.Size{Width: 1920, Height: 1080})
//	ws.LoadSequence(seq, detections)
//
//	// classify the first sequence box and answer the missed smoke question
//	_ = ws.Review(annotation.ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire})
//	_ = ws.Review(annotation.SetMissedSmoke{Review: annotation.MissedSmokeNo})
//
//	if err := ws.Review(annotation.Finalize{}); errors.Is(err, annotation.ErrIncomplete) {
//		fmt.Println(ws.ValidationErrors())
//	}
//
// The packages under pkg/ hold the pure pieces: coords (screen and image
// coordinate spaces), canvas (zoom/pan), geometry (box math), drawing
// (draw/select/undo state machine) and annotation (review records and
// completeness rules). A Workspace is single-owner and not safe for
// concurrent use.
package annotator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/smoke-annotator/internal/config"
	"github.com/menta2k/smoke-annotator/internal/logger"
	"github.com/menta2k/smoke-annotator/pkg/annotation"
	"github.com/menta2k/smoke-annotator/pkg/canvas"
	"github.com/menta2k/smoke-annotator/pkg/drawing"
	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Version of the annotator library
const Version = "1.0.0"

// Options configures a Workspace
type Options struct {
	Zoom             canvas.ZoomConfig
	Drawing          drawing.Config
	DedupThreshold   float64
	MergeThreshold   float64
	DefaultSmokeType types.SmokeType
	Logger           logrus.FieldLogger
}

// DefaultOptions returns the settings used by the review UI
func DefaultOptions() Options {
	return Options{
		Zoom:             canvas.DefaultZoomConfig(),
		Drawing:          drawing.DefaultConfig(),
		DedupThreshold:   geometry.DefaultOverlapThreshold,
		MergeThreshold:   0.3,
		DefaultSmokeType: types.SmokeWildfire,
		Logger:           logger.Discard(),
	}
}

// OptionsFromConfig maps the application configuration onto workspace options
func OptionsFromConfig(cfg *config.Config, log logrus.FieldLogger) Options {
	opts := DefaultOptions()
	opts.Zoom = canvas.ZoomConfig{
		MinZoom:  cfg.Canvas.MinZoom,
		MaxZoom:  cfg.Canvas.MaxZoom,
		ZoomStep: cfg.Canvas.ZoomStep,
	}
	opts.Drawing = drawing.Config{
		MinDrawSize: cfg.Drawing.MinDrawSize,
		UndoDepth:   cfg.Drawing.UndoDepth,
	}
	opts.DedupThreshold = cfg.Annotation.DedupThreshold
	opts.MergeThreshold = cfg.Annotation.SequenceMergeThreshold
	opts.DefaultSmokeType = types.SmokeType(cfg.Annotation.DefaultSmokeType)
	if log != nil {
		opts.Logger = log
	}
	return opts
}

// Workspace is the single-owner editing state for one sequence
type Workspace struct {
	opts Options
	log  logrus.FieldLogger

	container types.ContainerInfo
	natural   types.Size
	transform types.Transform

	session    *drawing.Session
	sequence   annotation.SequenceAnnotation
	detections []types.Detection
}

// New creates a workspace with default options
func New() *Workspace {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a workspace with custom options
func NewWithOptions(opts Options) *Workspace {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Workspace{
		opts:      opts,
		log:       opts.Logger,
		transform: types.IdentityTransform(),
		session:   drawing.NewWithConfig(opts.Drawing),
	}
}

// LoadSequence replaces the record under review. The drawing session is
// discarded wholesale and the view reset.
func (w *Workspace) LoadSequence(seq annotation.SequenceAnnotation, detections []types.Detection) {
	w.sequence = seq
	w.detections = append([]types.Detection(nil), detections...)
	w.session.Reset()
	w.transform = types.IdentityTransform()

	w.log.WithFields(logrus.Fields{
		"sequence_id": seq.SequenceID(),
		"stage":       seq.Stage(),
		"boxes":       seq.Len(),
		"detections":  len(detections),
	}).Info("sequence loaded")
}

// ImportSequence builds a fresh record from raw detections, clustering their
// predictions into sequence boxes, and loads it
func (w *Workspace) ImportSequence(sequenceID int64, detections []types.Detection) annotation.SequenceAnnotation {
	boxes := annotation.BuildSequenceBboxes(detections, w.opts.MergeThreshold)
	seq := annotation.NewSequenceAnnotation(sequenceID, boxes, annotation.MissedSmokeUnreviewed, annotation.StageReadyToAnnotate)
	w.LoadSequence(seq, detections)
	return seq
}

// Sequence returns the record under review
func (w *Workspace) Sequence() annotation.SequenceAnnotation {
	return w.sequence
}

// Detections returns the frames of the loaded sequence
func (w *Workspace) Detections() []types.Detection {
	return append([]types.Detection(nil), w.detections...)
}

// Session exposes the drawing session for read access and direct edits
func (w *Workspace) Session() *drawing.Session {
	return w.session
}

// Review applies a review action to the sequence record
func (w *Workspace) Review(action annotation.Action) error {
	next, err := annotation.Apply(w.sequence, action)
	entry := w.log.WithFields(logrus.Fields{
		"sequence_id": w.sequence.SequenceID(),
		"action":      fmt.Sprintf("%T", action),
	})
	if err != nil {
		entry.WithError(err).Warn("review action rejected")
		return err
	}

	if next.Stage() != w.sequence.Stage() {
		entry.WithFields(logrus.Fields{"from": w.sequence.Stage(), "to": next.Stage()}).Info("stage changed")
	} else {
		entry.Debug("review action applied")
	}
	w.sequence = next
	return nil
}

// Completion reports review progress of the loaded sequence
func (w *Workspace) Completion() annotation.Completion {
	return annotation.GetCompletion(w.sequence)
}

// ValidationErrors lists every reason the sequence cannot be finalized
func (w *Workspace) ValidationErrors() []string {
	return annotation.GetValidationErrors(w.sequence)
}
