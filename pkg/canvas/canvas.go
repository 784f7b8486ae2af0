package canvas

import (
	"math"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

// ZoomConfig bounds and steps the zoom level
type ZoomConfig struct {
	MinZoom  float64
	MaxZoom  float64
	ZoomStep float64
}

// DefaultZoomConfig returns the zoom limits used by the review UI
func DefaultZoomConfig() ZoomConfig {
	return ZoomConfig{
		MinZoom:  1,
		MaxZoom:  4,
		ZoomStep: 0.2,
	}
}

// PanConstraints are the symmetric pan limits in container pixels
type PanConstraints struct {
	MinX float64
	MaxX float64
	MinY float64
	MaxY float64
}

// CalculateZoomLevel applies one wheel step. A negative delta zooms in, a
// positive delta zooms out, zero keeps the current level.
func CalculateZoomLevel(current, wheelDelta float64, cfg ZoomConfig) float64 {
	if math.IsNaN(current) || math.IsInf(current, 0) {
		current = 1
	}

	next := current
	switch {
	case wheelDelta < 0:
		next = current + cfg.ZoomStep
	case wheelDelta > 0:
		next = current - cfg.ZoomStep
	}

	return clampZoom(next, cfg)
}

// CalculatePanConstraints returns how far the scaled image may move before
// its edge enters the container. At zoom <= 1 panning is disabled.
func CalculatePanConstraints(zoom, imageWidth, imageHeight, containerWidth, containerHeight float64) PanConstraints {
	if !(zoom > 1) {
		return PanConstraints{}
	}

	maxX := math.Max(0, (imageWidth*zoom-containerWidth)/2)
	maxY := math.Max(0, (imageHeight*zoom-containerHeight)/2)
	if math.IsNaN(maxX) || math.IsInf(maxX, 0) {
		maxX = 0
	}
	if math.IsNaN(maxY) || math.IsInf(maxY, 0) {
		maxY = 0
	}

	return PanConstraints{MinX: -maxX, MaxX: maxX, MinY: -maxY, MaxY: maxY}
}

// ConstrainPan clamps an offset into the constraints
func ConstrainPan(offset types.Point, c PanConstraints) types.Point {
	return types.Point{
		X: types.Clamp(offset.X, c.MinX, c.MaxX),
		Y: types.Clamp(offset.Y, c.MinY, c.MaxY),
	}
}

// CalculateTransformOrigin converts a pointer position within an element of
// the given size to a percent origin in [0,100]. A zero-size element yields
// the center.
func CalculateTransformOrigin(pointerX, pointerY, width, height float64) types.Point {
	if !(width > 0) || !(height > 0) {
		return types.Point{X: 50, Y: 50}
	}
	return types.Point{
		X: types.Clamp(pointerX/width*100, 0, 100),
		Y: types.Clamp(pointerY/height*100, 0, 100),
	}
}

func clampZoom(z float64, cfg ZoomConfig) float64 {
	lo, hi := cfg.MinZoom, cfg.MaxZoom
	if hi < lo {
		lo, hi = hi, lo
	}
	return types.Clamp(z, lo, hi)
}
