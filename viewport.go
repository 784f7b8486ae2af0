package annotator

import (
	"github.com/sirupsen/logrus"

	"github.com/menta2k/smoke-annotator/pkg/canvas"
	"github.com/menta2k/smoke-annotator/pkg/coords"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// SetViewport records the container rectangle and the natural image size,
// re-normalizing the transform for the new geometry
func (w *Workspace) SetViewport(container types.ContainerInfo, natural types.Size) {
	w.container = container
	w.natural = natural
	w.transform = canvas.Normalize(w.transform, w.Viewport(), w.opts.Zoom)
}

// Viewport returns the container and fitted image geometry
func (w *Workspace) Viewport() canvas.Viewport {
	return canvas.Viewport{
		Container: types.Size{Width: w.container.Width, Height: w.container.Height},
		Image:     w.DisplayInfo(),
	}
}

// DisplayInfo returns the fitted image rectangle inside the container
func (w *Workspace) DisplayInfo() types.ImageDisplayInfo {
	return coords.FitFor(w.container, w.natural).DisplayInfo()
}

// Transform returns the current zoom/pan state
func (w *Workspace) Transform() types.Transform {
	return w.transform
}

// View applies a zoom/pan action
func (w *Workspace) View(action canvas.Action) types.Transform {
	w.transform = canvas.Reduce(w.transform, action, w.Viewport(), w.opts.Zoom)
	w.log.WithFields(logrus.Fields{
		"zoom": w.transform.ZoomLevel,
		"pan":  w.transform.PanOffset,
	}).Trace("view updated")
	return w.transform
}

// Wheel zooms one step around a screen point
func (w *Workspace) Wheel(screen types.Point, delta float64) types.Transform {
	return w.View(canvas.Wheel{Delta: delta, Pointer: w.ScreenToImage(screen)})
}

// ScreenToImage maps a screen point to fitted-image pixels under the current transform
func (w *Workspace) ScreenToImage(screen types.Point) types.Point {
	return coords.ScreenToImage(screen, w.container, w.natural, w.transform)
}

// ScreenToNormalized maps a screen point to normalized image coordinates
func (w *Workspace) ScreenToNormalized(screen types.Point) types.Point {
	return coords.ScreenToNormalized(screen, w.container, w.natural, w.transform)
}

// ScreenToUnit maps a screen point to unclamped normalized coordinates and
// reports whether it lies on the rendered image
func (w *Workspace) ScreenToUnit(screen types.Point) (types.Point, bool) {
	return coords.ScreenToUnit(screen, w.container, w.natural, w.transform)
}
