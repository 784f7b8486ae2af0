// Package coords converts points between screen, fitted-image pixel and
// normalized image coordinate spaces.
//
// The image is rendered object-contain inside its container and the
// container content is transformed CSS-style around a transform origin
// expressed in percent of the fitted image rectangle:
//
//	screen = container + fit.offset + origin + zoom*(p - origin) + pan
//
// where p is a point in fitted-image pixels. All functions are pure and
// return neutral values instead of failing on degenerate input.
package coords

import (
	"math"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Fit is the object-contain placement of an image inside a container
type Fit struct {
	DisplayWidth  float64
	DisplayHeight float64
	OffsetX       float64
	OffsetY       float64
	Scale         float64
}

// IsEmpty reports whether the fitted rectangle has no area
func (f Fit) IsEmpty() bool {
	return !(f.DisplayWidth > 0) || !(f.DisplayHeight > 0)
}

// DisplayInfo returns the fitted rectangle as ImageDisplayInfo
func (f Fit) DisplayInfo() types.ImageDisplayInfo {
	return types.ImageDisplayInfo{
		Width:   f.DisplayWidth,
		Height:  f.DisplayHeight,
		OffsetX: f.OffsetX,
		OffsetY: f.OffsetY,
	}
}

// FitImageToContainer scales the natural image to fit entirely within the
// container preserving aspect ratio, centered on the shorter axis.
func FitImageToContainer(naturalWidth, naturalHeight, containerWidth, containerHeight float64) Fit {
	if !(naturalWidth > 0) || !(naturalHeight > 0) || !(containerWidth > 0) || !(containerHeight > 0) {
		return Fit{}
	}

	scale := math.Min(containerWidth/naturalWidth, containerHeight/naturalHeight)
	w := naturalWidth * scale
	h := naturalHeight * scale

	return Fit{
		DisplayWidth:  w,
		DisplayHeight: h,
		OffsetX:       (containerWidth - w) / 2,
		OffsetY:       (containerHeight - h) / 2,
		Scale:         scale,
	}
}

// FitFor fits the natural image into the given container rectangle
func FitFor(container types.ContainerInfo, natural types.Size) Fit {
	return FitImageToContainer(natural.Width, natural.Height, container.Width, container.Height)
}

// ScreenToImage maps a screen point to fitted-image pixel coordinates,
// undoing the zoom/pan transform. The result may lie outside the image.
func ScreenToImage(screen types.Point, container types.ContainerInfo, natural types.Size, t types.Transform) types.Point {
	local := types.Point{X: screen.X - container.Left, Y: screen.Y - container.Top}

	fit := FitFor(container, natural)
	if fit.IsEmpty() {
		return local
	}

	zoom := effectiveZoom(t.ZoomLevel)
	origin := originPixels(t.TransformOrigin, fit)

	pan := finitePan(t.PanOffset)

	return types.Point{
		X: (local.X-fit.OffsetX-origin.X-pan.X)/zoom + origin.X,
		Y: (local.Y-fit.OffsetY-origin.Y-pan.Y)/zoom + origin.Y,
	}
}

// ImageToScreen is the forward transform of ScreenToImage
func ImageToScreen(p types.Point, container types.ContainerInfo, natural types.Size, t types.Transform) types.Point {
	fit := FitFor(container, natural)
	if fit.IsEmpty() {
		return types.Point{X: p.X + container.Left, Y: p.Y + container.Top}
	}

	zoom := effectiveZoom(t.ZoomLevel)
	origin := originPixels(t.TransformOrigin, fit)
	pan := finitePan(t.PanOffset)

	return types.Point{
		X: container.Left + fit.OffsetX + origin.X + zoom*(p.X-origin.X) + pan.X,
		Y: container.Top + fit.OffsetY + origin.Y + zoom*(p.Y-origin.Y) + pan.Y,
	}
}

// ImageToNormalized divides fitted-image pixels by the fitted size, clamped to [0,1]
func ImageToNormalized(p types.Point, container types.ContainerInfo, natural types.Size) types.Point {
	fit := FitFor(container, natural)
	if fit.IsEmpty() {
		return types.Point{}
	}
	return types.Point{
		X: types.Clamp01(p.X / fit.DisplayWidth),
		Y: types.Clamp01(p.Y / fit.DisplayHeight),
	}
}

// NormalizedToImage scales normalized coordinates back to fitted-image pixels
func NormalizedToImage(n types.Point, container types.ContainerInfo, natural types.Size) types.Point {
	fit := FitFor(container, natural)
	if fit.IsEmpty() {
		return types.Point{}
	}
	return types.Point{
		X: n.X * fit.DisplayWidth,
		Y: n.Y * fit.DisplayHeight,
	}
}

// ScreenToNormalized composes ScreenToImage and ImageToNormalized
func ScreenToNormalized(screen types.Point, container types.ContainerInfo, natural types.Size, t types.Transform) types.Point {
	return ImageToNormalized(ScreenToImage(screen, container, natural, t), container, natural)
}

// ScreenToUnit maps a screen point to unclamped normalized image
// coordinates. inside is false when the point falls outside the rendered
// image, e.g. in the letterbox band, or when there is no image.
func ScreenToUnit(screen types.Point, container types.ContainerInfo, natural types.Size, t types.Transform) (p types.Point, inside bool) {
	fit := FitFor(container, natural)
	if fit.IsEmpty() {
		return types.Point{}, false
	}
	img := ScreenToImage(screen, container, natural, t)
	p = types.Point{X: img.X / fit.DisplayWidth, Y: img.Y / fit.DisplayHeight}
	inside = p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
	return p, inside
}

func effectiveZoom(z float64) float64 {
	if !(z > 0) || math.IsInf(z, 0) {
		return 1
	}
	return z
}

func originPixels(origin types.Point, fit Fit) types.Point {
	ox := types.Clamp(origin.X, 0, 100)
	oy := types.Clamp(origin.Y, 0, 100)
	return types.Point{
		X: ox / 100 * fit.DisplayWidth,
		Y: oy / 100 * fit.DisplayHeight,
	}
}

func finitePan(pan types.Point) types.Point {
	if math.IsNaN(pan.X) || math.IsInf(pan.X, 0) {
		pan.X = 0
	}
	if math.IsNaN(pan.Y) || math.IsInf(pan.Y, 0) {
		pan.Y = 0
	}
	return pan
}
