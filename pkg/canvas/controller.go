package canvas

import (
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Viewport describes the geometry the transform is applied to: the
// container and the fitted image inside it.
type Viewport struct {
	Container types.Size
	Image     types.ImageDisplayInfo
}

// Action is a viewport interaction dispatched by the UI
type Action interface {
	isAction()
}

// Wheel zooms by one step around the pointer. Pointer is in fitted-image pixels.
type Wheel struct {
	Delta   float64
	Pointer types.Point
}

// PanBy moves the view by a drag delta in container pixels
type PanBy struct {
	DX float64
	DY float64
}

// SetZoom jumps to an explicit zoom level, keeping the current origin
type SetZoom struct {
	Level float64
}

// ResetView returns to the identity transform
type ResetView struct{}

func (Wheel) isAction()     {}
func (PanBy) isAction()     {}
func (SetZoom) isAction()   {}
func (ResetView) isAction() {}

// Reduce applies an action and returns the next transform. The result always
// satisfies zoom in [MinZoom,MaxZoom] and a zero pan offset at zoom <= 1.
func Reduce(state types.Transform, action Action, vp Viewport, cfg ZoomConfig) types.Transform {
	next := state

	switch a := action.(type) {
	case Wheel:
		next.ZoomLevel = CalculateZoomLevel(state.ZoomLevel, a.Delta, cfg)
		next.TransformOrigin = CalculateTransformOrigin(a.Pointer.X, a.Pointer.Y, vp.Image.Width, vp.Image.Height)
	case PanBy:
		next.PanOffset = types.Point{X: state.PanOffset.X + a.DX, Y: state.PanOffset.Y + a.DY}
	case SetZoom:
		next.ZoomLevel = clampZoom(a.Level, cfg)
	case ResetView:
		next = types.IdentityTransform()
	}

	return Normalize(next, vp, cfg)
}

// Normalize re-establishes the transform invariants for the viewport
func Normalize(t types.Transform, vp Viewport, cfg ZoomConfig) types.Transform {
	t.ZoomLevel = clampZoom(t.ZoomLevel, cfg)
	t.TransformOrigin = types.Point{
		X: types.Clamp(t.TransformOrigin.X, 0, 100),
		Y: types.Clamp(t.TransformOrigin.Y, 0, 100),
	}

	constraints := CalculatePanConstraints(t.ZoomLevel, vp.Image.Width, vp.Image.Height, vp.Container.Width, vp.Container.Height)
	t.PanOffset = ConstrainPan(t.PanOffset, constraints)
	return t
}
