package geometry

import (
	"fmt"
	"math"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

const (
	// DefaultOverlapThreshold is the IoU above which two boxes are reported as near-duplicates
	DefaultOverlapThreshold = 0.8
	// MinBboxArea is the normalized area under which a box draws a warning
	MinBboxArea = 0.0001
)

// ValidationResult separates hard errors from soft warnings
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// AddError records a hard error and marks the result invalid
func (r *ValidationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

// AddWarning records a soft warning
func (r *ValidationResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Merge appends other's findings to r
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.IsValid {
		r.IsValid = false
	}
}

// NewValidationResult returns an empty, valid result
func NewValidationResult() ValidationResult {
	return ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}
}

// ValidateXYXYN checks raw persisted coordinates before they become a box
func ValidateXYXYN(v [4]float64) ValidationResult {
	res := NewValidationResult()

	names := [4]string{"x1", "y1", "x2", "y2"}
	for i, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			res.AddError("%s is not a finite number", names[i])
			continue
		}
		if c < 0 || c > 1 {
			res.AddError("%s=%.4f is outside [0,1]", names[i], c)
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	if v[0] >= v[2] {
		res.AddError("x1=%.4f must be less than x2=%.4f", v[0], v[2])
	}
	if v[1] >= v[3] {
		res.AddError("y1=%.4f must be less than y2=%.4f", v[1], v[3])
	}
	if len(res.Errors) > 0 {
		return res
	}

	if area := (v[2] - v[0]) * (v[3] - v[1]); area < MinBboxArea {
		res.AddWarning("box area %.6f is very small", area)
	}
	return res
}

// ValidateBbox checks a constructed box
func ValidateBbox(b types.NormalizedBbox) ValidationResult {
	return ValidateXYXYN(b.XYXYN())
}

// ValidateRectangleOverlaps warns about every pair of boxes whose IoU
// exceeds threshold. Overlap is never an error.
func ValidateRectangleOverlaps(boxes []types.NormalizedBbox, threshold float64) ValidationResult {
	res := NewValidationResult()

	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			if iou := CalculateIoU(boxes[i], boxes[j]); iou > threshold {
				res.AddWarning("boxes %d and %d overlap heavily (IoU %.2f)", i, j, iou)
			}
		}
	}
	return res
}
