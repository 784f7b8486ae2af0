package types

import (
	"math"
	"time"
)

// Point is a 2D coordinate. Depending on context it is expressed in screen
// pixels, fitted-image pixels, normalized units or percent.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsEmpty reports whether the size has no positive area
func (s Size) IsEmpty() bool {
	return !(s.Width > 0) || !(s.Height > 0)
}

// NormalizedBbox is a box in [0,1] image-relative coordinates with x1<=x2 and y1<=y2.
// Construct it with NewNormalizedBbox or one of the geometry helpers; the
// ordering invariant is never left to callers.
type NormalizedBbox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewNormalizedBbox orders and clamps the given corners into a valid box
func NewNormalizedBbox(x1, y1, x2, y2 float64) NormalizedBbox {
	x1, x2 = Clamp01(x1), Clamp01(x2)
	y1, y2 = Clamp01(y1), Clamp01(y2)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return NormalizedBbox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// FromXYXYN builds a box from the persisted [x1,y1,x2,y2] form
func FromXYXYN(v [4]float64) NormalizedBbox {
	return NewNormalizedBbox(v[0], v[1], v[2], v[3])
}

// XYXYN returns the persisted [x1,y1,x2,y2] form
func (b NormalizedBbox) XYXYN() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Width returns the normalized width
func (b NormalizedBbox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the normalized height
func (b NormalizedBbox) Height() float64 {
	return b.Y2 - b.Y1
}

// Area returns the normalized area
func (b NormalizedBbox) Area() float64 {
	return b.Width() * b.Height()
}

// PixelBbox is a viewport-space rectangle derived from a NormalizedBbox
type PixelBbox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageDisplayInfo is the rendered (object-contain fitted) image rectangle inside its container
type ImageDisplayInfo struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// ContainerInfo is the container element's bounding rectangle in screen space
type ContainerInfo struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Transform is the viewport zoom/pan state. PanOffset is in container pixels,
// TransformOrigin in percent of the fitted image rectangle.
type Transform struct {
	ZoomLevel       float64 `json:"zoomLevel"`
	PanOffset       Point   `json:"panOffset"`
	TransformOrigin Point   `json:"transformOrigin"`
}

// IdentityTransform returns the unzoomed, centered transform
func IdentityTransform() Transform {
	return Transform{
		ZoomLevel:       1,
		TransformOrigin: Point{X: 50, Y: 50},
	}
}

// SmokeType is the sub-type of a confirmed smoke box
type SmokeType string

const (
	SmokeWildfire   SmokeType = "wildfire"
	SmokeIndustrial SmokeType = "industrial"
	SmokeOther      SmokeType = "other"
)

// SmokeTypes returns every known smoke type
func SmokeTypes() []SmokeType {
	return []SmokeType{SmokeWildfire, SmokeIndustrial, SmokeOther}
}

// Valid reports whether s is a known smoke type
func (s SmokeType) Valid() bool {
	for _, t := range SmokeTypes() {
		if s == t {
			return true
		}
	}
	return false
}

// FalsePositiveType names what a non-smoke box actually shows
type FalsePositiveType string

const (
	FPAntenna     FalsePositiveType = "antenna"
	FPBuilding    FalsePositiveType = "building"
	FPCliff       FalsePositiveType = "cliff"
	FPDark        FalsePositiveType = "dark"
	FPDust        FalsePositiveType = "dust"
	FPHighCloud   FalsePositiveType = "high_cloud"
	FPLowCloud    FalsePositiveType = "low_cloud"
	FPLensFlare   FalsePositiveType = "lens_flare"
	FPLensDroplet FalsePositiveType = "lens_droplet"
	FPLight       FalsePositiveType = "light"
	FPRain        FalsePositiveType = "rain"
	FPTrail       FalsePositiveType = "trail"
	FPRoad        FalsePositiveType = "road"
	FPSky         FalsePositiveType = "sky"
	FPTree        FalsePositiveType = "tree"
	FPWaterBody   FalsePositiveType = "water_body"
	FPOther       FalsePositiveType = "other"
)

// FalsePositiveTypes returns every known false positive type
func FalsePositiveTypes() []FalsePositiveType {
	return []FalsePositiveType{
		FPAntenna, FPBuilding, FPCliff, FPDark, FPDust, FPHighCloud, FPLowCloud,
		FPLensFlare, FPLensDroplet, FPLight, FPRain, FPTrail, FPRoad, FPSky,
		FPTree, FPWaterBody, FPOther,
	}
}

// Valid reports whether f is a known false positive type
func (f FalsePositiveType) Valid() bool {
	for _, t := range FalsePositiveTypes() {
		if f == t {
			return true
		}
	}
	return false
}

// Prediction is a single detector output box
type Prediction struct {
	XYXYN      [4]float32 `json:"xyxyn"`
	Confidence float32    `json:"confidence"`
	ClassName  string     `json:"class_name"`
}

// Bbox returns the prediction box as a validated NormalizedBbox
func (p Prediction) Bbox() NormalizedBbox {
	return NewNormalizedBbox(float64(p.XYXYN[0]), float64(p.XYXYN[1]), float64(p.XYXYN[2]), float64(p.XYXYN[3]))
}

// Detection is one frame analysed by the external detector
type Detection struct {
	ID          int64        `json:"id"`
	RecordedAt  time.Time    `json:"recorded_at"`
	Predictions []Prediction `json:"predictions"`
}

// Box is a normalized x/y/w/h box as returned by vision models
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Bbox converts the x/y/w/h form to corner form
func (b Box) Bbox() NormalizedBbox {
	return NewNormalizedBbox(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Finding is one smoke plume located by a vision model
type Finding struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// ModelResult is the parsed answer of a vision model asked to locate smoke
type ModelResult struct {
	Findings    []Finding `json:"findings"`
	Description string    `json:"description"`
}

// Clamp01 clamps v to [0,1]; NaN maps to 0
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp clamps v to [lo,hi]; NaN maps to lo
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
