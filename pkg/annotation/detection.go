package annotation

import (
	"fmt"
	"slices"

	"github.com/menta2k/smoke-annotator/pkg/geometry"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// DetectionStage is the processing stage of a per-frame detection annotation
type DetectionStage string

const (
	DetectionImported         DetectionStage = "imported"
	DetectionVisualCheck      DetectionStage = "visual_check"
	DetectionLabelStudioCheck DetectionStage = "label_studio_check"
	DetectionAnnotated        DetectionStage = "annotated"
)

// Valid reports whether s is a known detection stage
func (s DetectionStage) Valid() bool {
	switch s {
	case DetectionImported, DetectionVisualCheck, DetectionLabelStudioCheck, DetectionAnnotated:
		return true
	}
	return false
}

var detectionTransitions = map[DetectionStage][]DetectionStage{
	DetectionImported:         {DetectionVisualCheck},
	DetectionVisualCheck:      {DetectionLabelStudioCheck, DetectionAnnotated},
	DetectionLabelStudioCheck: {DetectionVisualCheck, DetectionAnnotated},
	DetectionAnnotated:        {DetectionVisualCheck},
}

// DetectionEntry is one refined smoke box of a frame
type DetectionEntry struct {
	Box       types.NormalizedBbox
	SmokeType types.SmokeType
}

// DetectionAnnotation is the per-frame refinement record. A nil Entries
// slice means not yet annotated; an empty non-nil slice is an explicit "no
// smoke" (false positive) answer.
type DetectionAnnotation struct {
	DetectionID int64
	Entries     []DetectionEntry
	Stage       DetectionStage
}

// NoSmoke returns an explicit empty entry list
func NoSmoke() []DetectionEntry {
	return []DetectionEntry{}
}

// ValidateDetectionEntries checks every entry; the result lists per-entry
// issues in order
func ValidateDetectionEntries(d DetectionAnnotation) []Issue {
	if d.Entries == nil {
		return []Issue{{Kind: IssueNotAnnotated}}
	}

	var issues []Issue
	for i, e := range d.Entries {
		if !e.SmokeType.Valid() {
			issues = append(issues, Issue{Kind: IssueInvalidEntry, Index: i, Detail: fmt.Sprintf("invalid smoke type %q", e.SmokeType)})
		}
		b := e.Box
		if !(b.X1 < b.X2) || !(b.Y1 < b.Y2) || b.X1 < 0 || b.Y1 < 0 || b.X2 > 1 || b.Y2 > 1 {
			issues = append(issues, Issue{Kind: IssueInvalidEntry, Index: i, Detail: "coordinates must satisfy 0<=x1<x2<=1 and 0<=y1<y2<=1"})
		}
	}
	return issues
}

// IsComplete reports whether the detection may be marked annotated
func (d DetectionAnnotation) IsComplete() bool {
	return len(ValidateDetectionEntries(d)) == 0
}

// IsFalsePositive reports an explicit "no smoke" answer
func (d DetectionAnnotation) IsFalsePositive() bool {
	return d.Entries != nil && len(d.Entries) == 0
}

// ValidateDetectionAnnotation reports hard errors (bad smoke type, bad
// coordinates, unknown stage) and soft warnings (tiny or heavily overlapping
// boxes)
func ValidateDetectionAnnotation(d DetectionAnnotation, overlapThreshold float64) geometry.ValidationResult {
	res := geometry.NewValidationResult()

	if !d.Stage.Valid() {
		res.AddError("unknown processing stage %q", d.Stage)
	}
	for _, issue := range ValidateDetectionEntries(d) {
		if issue.Kind == IssueNotAnnotated {
			continue
		}
		res.AddError("%s", issue.Error())
	}

	boxes := make([]types.NormalizedBbox, len(d.Entries))
	for i, e := range d.Entries {
		boxes[i] = e.Box
		for _, w := range geometry.ValidateBbox(e.Box).Warnings {
			res.AddWarning("entry %d: %s", i, w)
		}
	}
	res.Warnings = append(res.Warnings, geometry.ValidateRectangleOverlaps(boxes, overlapThreshold).Warnings...)
	return res
}

// TransitionDetection moves a detection annotation to another stage.
// Entering annotated requires a complete record; leaving annotated for
// visual_check clears the entries.
func TransitionDetection(d DetectionAnnotation, to DetectionStage) (DetectionAnnotation, error) {
	if !slices.Contains(detectionTransitions[d.Stage], to) {
		return d, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Stage, to)
	}

	next := d
	next.Entries = slices.Clone(d.Entries)
	if d.Entries != nil && next.Entries == nil {
		next.Entries = NoSmoke()
	}

	switch {
	case to == DetectionAnnotated:
		if issues := ValidateDetectionEntries(d); len(issues) > 0 {
			return d, &IncompleteError{Issues: issues}
		}
	case d.Stage == DetectionAnnotated:
		next.Entries = nil
	}

	next.Stage = to
	return next, nil
}
