// Package geometry implements bounding-box math on normalized coordinates:
// pixel conversion, intersection, union, IoU, containment and scaling.
//
// A box is handled as the product of two closed intervals, one per axis.
// Every function returns a box that satisfies x1<=x2 and y1<=y2 inside the
// unit square, and none of them panic on degenerate input.
package geometry

import (
	"math"

	"github.com/golang/geo/r1"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

var unit = r1.Interval{Lo: 0, Hi: 1}

func xInterval(b types.NormalizedBbox) r1.Interval {
	return r1.Interval{Lo: b.X1, Hi: b.X2}
}

func yInterval(b types.NormalizedBbox) r1.Interval {
	return r1.Interval{Lo: b.Y1, Hi: b.Y2}
}

func fromIntervals(x, y r1.Interval) types.NormalizedBbox {
	return types.NewNormalizedBbox(x.Lo, y.Lo, x.Hi, y.Hi)
}

// CalculatePixelBounds maps a normalized box onto the rendered image rectangle
func CalculatePixelBounds(b types.NormalizedBbox, info types.ImageDisplayInfo) types.PixelBbox {
	return types.PixelBbox{
		Left:   info.OffsetX + b.X1*info.Width,
		Top:    info.OffsetY + b.Y1*info.Height,
		Width:  b.Width() * info.Width,
		Height: b.Height() * info.Height,
	}
}

// PixelBoundsToNormalized is the inverse of CalculatePixelBounds. Negative
// widths or heights are normalized away; an empty image yields the zero box.
func PixelBoundsToNormalized(p types.PixelBbox, info types.ImageDisplayInfo) types.NormalizedBbox {
	if !(info.Width > 0) || !(info.Height > 0) {
		return types.NormalizedBbox{}
	}

	x1 := (p.Left - info.OffsetX) / info.Width
	y1 := (p.Top - info.OffsetY) / info.Height
	x2 := x1 + p.Width/info.Width
	y2 := y1 + p.Height/info.Height

	return types.NewNormalizedBbox(x1, y1, x2, y2)
}

// CalculateIntersection returns the overlap of a and b. The second result is
// false when the boxes share no positive-area region.
func CalculateIntersection(a, b types.NormalizedBbox) (types.NormalizedBbox, bool) {
	x := xInterval(a).Intersection(xInterval(b))
	y := yInterval(a).Intersection(yInterval(b))

	if x.Lo >= x.Hi || y.Lo >= y.Hi {
		return types.NormalizedBbox{}, false
	}
	return fromIntervals(x, y), true
}

// CalculateUnion returns the smallest box enclosing both a and b
func CalculateUnion(a, b types.NormalizedBbox) types.NormalizedBbox {
	return fromIntervals(xInterval(a).Union(xInterval(b)), yInterval(a).Union(yInterval(b)))
}

// Area returns the area of b
func Area(b types.NormalizedBbox) float64 {
	return xInterval(b).Length() * yInterval(b).Length()
}

// CalculateIoU returns intersection-over-union in [0,1]
func CalculateIoU(a, b types.NormalizedBbox) float64 {
	inter, ok := CalculateIntersection(a, b)
	if !ok {
		return 0
	}

	interArea := Area(inter)
	union := Area(a) + Area(b) - interArea
	if !(union > 0) {
		return 0
	}

	iou := interArea / union
	if math.IsNaN(iou) {
		return 0
	}
	return types.Clamp01(iou)
}

// IsPointInBbox reports whether p lies in b, edges included
func IsPointInBbox(p types.Point, b types.NormalizedBbox) bool {
	return xInterval(b).Contains(p.X) && yInterval(b).Contains(p.Y)
}

// ContainsBbox reports whether inner lies entirely within outer
func ContainsBbox(outer, inner types.NormalizedBbox) bool {
	return xInterval(outer).ContainsInterval(xInterval(inner)) &&
		yInterval(outer).ContainsInterval(yInterval(inner))
}

// CalculateBboxCenter returns the center of b
func CalculateBboxCenter(b types.NormalizedBbox) types.Point {
	return types.Point{X: xInterval(b).Center(), Y: yInterval(b).Center()}
}

// ScaleBboxFromCenter grows or shrinks b around its center by factor,
// clamped to the unit square. A non-positive factor collapses b to its center.
func ScaleBboxFromCenter(b types.NormalizedBbox, factor float64) types.NormalizedBbox {
	if math.IsNaN(factor) || factor < 0 {
		factor = 0
	}

	c := CalculateBboxCenter(b)
	halfW := b.Width() * factor / 2
	halfH := b.Height() * factor / 2

	x := r1.Interval{Lo: unit.ClampPoint(c.X - halfW), Hi: unit.ClampPoint(c.X + halfW)}
	y := r1.Interval{Lo: unit.ClampPoint(c.Y - halfH), Hi: unit.ClampPoint(c.Y + halfH)}
	return fromIntervals(x, y)
}

// CreateNormalizedBboxFromPoints builds a box from two drag corners given in
// any order
func CreateNormalizedBboxFromPoints(p1, p2 types.Point) types.NormalizedBbox {
	x := r1.Interval{Lo: p1.X, Hi: p1.X}.AddPoint(p2.X)
	y := r1.Interval{Lo: p1.Y, Hi: p1.Y}.AddPoint(p2.Y)
	return fromIntervals(x, y)
}

// TranslateBbox moves b by (dx,dy), keeping its size and staying inside the unit square
func TranslateBbox(b types.NormalizedBbox, dx, dy float64) types.NormalizedBbox {
	w, h := b.Width(), b.Height()
	x1 := types.Clamp(b.X1+dx, 0, 1-w)
	y1 := types.Clamp(b.Y1+dy, 0, 1-h)
	return types.NewNormalizedBbox(x1, y1, x1+w, y1+h)
}
