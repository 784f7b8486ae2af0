package geometry

import (
	"math"
	"testing"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

func box(x1, y1, x2, y2 float64) types.NormalizedBbox {
	return types.NewNormalizedBbox(x1, y1, x2, y2)
}

func approxBox(a, b types.NormalizedBbox) bool {
	const tol = 1e-9
	return math.Abs(a.X1-b.X1) < tol && math.Abs(a.Y1-b.Y1) < tol &&
		math.Abs(a.X2-b.X2) < tol && math.Abs(a.Y2-b.Y2) < tol
}

func TestCalculateIntersection(t *testing.T) {
	got, ok := CalculateIntersection(box(0.1, 0.2, 0.8, 0.7), box(0.5, 0.1, 0.9, 0.6))
	if !ok {
		t.Fatal("Expected an intersection")
	}

	expected := box(0.5, 0.2, 0.8, 0.6)
	if !approxBox(got, expected) {
		t.Errorf("Expected %+v, got %+v", expected, got)
	}
}

func TestCalculateIntersectionNone(t *testing.T) {
	cases := []struct {
		name string
		a, b types.NormalizedBbox
	}{
		{"disjoint", box(0, 0, 0.2, 0.2), box(0.5, 0.5, 0.9, 0.9)},
		{"touching edge", box(0, 0, 0.5, 0.5), box(0.5, 0, 1, 0.5)},
		{"touching corner", box(0, 0, 0.5, 0.5), box(0.5, 0.5, 1, 1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := CalculateIntersection(tc.a, tc.b); ok {
				t.Error("Expected no intersection")
			}
			if iou := CalculateIoU(tc.a, tc.b); iou != 0 {
				t.Errorf("Expected IoU 0, got %f", iou)
			}
		})
	}
}

func TestCalculateUnion(t *testing.T) {
	got := CalculateUnion(box(0.1, 0.2, 0.8, 0.7), box(0.5, 0.1, 0.9, 0.6))
	if !approxBox(got, box(0.1, 0.1, 0.9, 0.7)) {
		t.Errorf("Unexpected union %+v", got)
	}
}

func TestCalculateIoU(t *testing.T) {
	a := box(0, 0, 0.5, 0.5)
	b := box(0.25, 0, 0.75, 0.5)

	iou := CalculateIoU(a, b)
	expected := 0.125 / (0.25 + 0.25 - 0.125)
	if math.Abs(iou-expected) > 1e-9 {
		t.Errorf("Expected IoU %f, got %f", expected, iou)
	}

	if CalculateIoU(a, a) != 1 {
		t.Errorf("Expected IoU(a,a)=1, got %f", CalculateIoU(a, a))
	}
}

func TestCalculateIoUProperties(t *testing.T) {
	boxes := []types.NormalizedBbox{
		box(0, 0, 1, 1),
		box(0.1, 0.1, 0.2, 0.2),
		box(0.15, 0.05, 0.6, 0.3),
		box(0.5, 0.5, 0.5, 0.9),
		box(0.3, 0.3, 0.31, 0.31),
		{},
	}

	for i, a := range boxes {
		for j, b := range boxes {
			ab, ba := CalculateIoU(a, b), CalculateIoU(b, a)
			if ab < 0 || ab > 1 {
				t.Errorf("IoU(%d,%d)=%f out of range", i, j, ab)
			}
			if ab != ba {
				t.Errorf("IoU not symmetric for %d,%d: %f vs %f", i, j, ab, ba)
			}
			if _, ok := CalculateIntersection(a, b); !ok && ab != 0 {
				t.Errorf("IoU(%d,%d) should be 0 without intersection, got %f", i, j, ab)
			}
		}
	}
}

func TestCreateNormalizedBboxFromPoints(t *testing.T) {
	pairs := [][2]types.Point{
		{{X: 0.1, Y: 0.1}, {X: 0.4, Y: 0.6}},
		{{X: 0.4, Y: 0.6}, {X: 0.1, Y: 0.1}},
		{{X: 0.4, Y: 0.1}, {X: 0.1, Y: 0.6}},
		{{X: 0.1, Y: 0.6}, {X: 0.4, Y: 0.1}},
		{{X: -0.2, Y: 1.4}, {X: 0.3, Y: 0.2}},
		{{X: math.NaN(), Y: 0.2}, {X: 0.3, Y: 0.2}},
	}

	for _, p := range pairs {
		b := CreateNormalizedBboxFromPoints(p[0], p[1])
		if b.X1 > b.X2 || b.Y1 > b.Y2 {
			t.Errorf("Unordered box %+v from %+v", b, p)
		}
		if b.X1 < 0 || b.Y1 < 0 || b.X2 > 1 || b.Y2 > 1 {
			t.Errorf("Box %+v escapes the unit square", b)
		}
	}

	b := CreateNormalizedBboxFromPoints(types.Point{X: 0.4, Y: 0.6}, types.Point{X: 0.1, Y: 0.1})
	if !approxBox(b, box(0.1, 0.1, 0.4, 0.6)) {
		t.Errorf("Unexpected box %+v", b)
	}
}

func TestPixelBoundsRoundTrip(t *testing.T) {
	info := types.ImageDisplayInfo{Width: 800, Height: 450, OffsetX: 0, OffsetY: 75}
	b := box(0.25, 0.1, 0.5, 0.9)

	px := CalculatePixelBounds(b, info)
	if px.Left != 200 || math.Abs(px.Top-120) > 1e-9 || px.Width != 200 || math.Abs(px.Height-360) > 1e-9 {
		t.Errorf("Unexpected pixel bounds %+v", px)
	}

	back := PixelBoundsToNormalized(px, info)
	if !approxBox(back, b) {
		t.Errorf("Expected %+v, got %+v", b, back)
	}

	if got := PixelBoundsToNormalized(px, types.ImageDisplayInfo{}); got != (types.NormalizedBbox{}) {
		t.Errorf("Expected zero box for empty image, got %+v", got)
	}
}

func TestPointAndContainment(t *testing.T) {
	outer := box(0.1, 0.1, 0.9, 0.9)

	if !IsPointInBbox(types.Point{X: 0.1, Y: 0.5}, outer) {
		t.Error("Edge point should be inside")
	}
	if IsPointInBbox(types.Point{X: 0.95, Y: 0.5}, outer) {
		t.Error("Outside point reported inside")
	}
	if !ContainsBbox(outer, box(0.2, 0.2, 0.9, 0.5)) {
		t.Error("Expected containment")
	}
	if ContainsBbox(outer, box(0.05, 0.2, 0.5, 0.5)) {
		t.Error("Unexpected containment")
	}
}

func TestCalculateBboxCenter(t *testing.T) {
	c := CalculateBboxCenter(box(0.2, 0.4, 0.6, 0.8))
	if math.Abs(c.X-0.4) > 1e-9 || math.Abs(c.Y-0.6) > 1e-9 {
		t.Errorf("Expected center (0.4,0.6), got (%f,%f)", c.X, c.Y)
	}
}

func TestScaleBboxFromCenter(t *testing.T) {
	b := ScaleBboxFromCenter(box(0.4, 0.4, 0.6, 0.6), 2)
	if !approxBox(b, box(0.3, 0.3, 0.7, 0.7)) {
		t.Errorf("Unexpected scaled box %+v", b)
	}

	b = ScaleBboxFromCenter(box(0, 0, 0.5, 0.5), 3)
	if !approxBox(b, box(0, 0, 1, 1)) {
		t.Errorf("Expected clamp to unit square, got %+v", b)
	}

	b = ScaleBboxFromCenter(box(0.2, 0.2, 0.4, 0.4), -1)
	if b.Width() != 0 || b.Height() != 0 {
		t.Errorf("Expected collapsed box, got %+v", b)
	}
}

func TestTranslateBbox(t *testing.T) {
	b := TranslateBbox(box(0.7, 0.1, 0.9, 0.3), 0.5, -0.5)
	if !approxBox(b, box(0.8, 0, 1, 0.2)) {
		t.Errorf("Unexpected translated box %+v", b)
	}
}
