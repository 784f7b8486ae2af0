// Package annotation holds the review records for sequences and detections
// and the rules deciding when a record is complete and may change stage.
//
// Aggregate fields of a SequenceAnnotation (has smoke, has false positives,
// false positive types) are never stored independently: they are folded from
// the box list after every change and exposed read-only.
package annotation

import (
	"slices"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

// SequenceStage is the processing stage of a sequence annotation
type SequenceStage string

const (
	StageImported        SequenceStage = "imported"
	StageReadyToAnnotate SequenceStage = "ready_to_annotate"
	StageAnnotated       SequenceStage = "annotated"
)

// Valid reports whether s is a known sequence stage
func (s SequenceStage) Valid() bool {
	switch s {
	case StageImported, StageReadyToAnnotate, StageAnnotated:
		return true
	}
	return false
}

// MissedSmokeReview is the reviewer's answer to "did the detector miss smoke?"
type MissedSmokeReview int

const (
	MissedSmokeUnreviewed MissedSmokeReview = iota
	MissedSmokeYes
	MissedSmokeNo
)

// MissedSmokeFromBool maps the nullable persisted flag to a review state
func MissedSmokeFromBool(v *bool) MissedSmokeReview {
	switch {
	case v == nil:
		return MissedSmokeUnreviewed
	case *v:
		return MissedSmokeYes
	default:
		return MissedSmokeNo
	}
}

// Bool returns the nullable persisted flag
func (m MissedSmokeReview) Bool() *bool {
	var v bool
	switch m {
	case MissedSmokeYes:
		v = true
	case MissedSmokeNo:
		v = false
	default:
		return nil
	}
	return &v
}

// Valid reports whether m is one of the three review states
func (m MissedSmokeReview) Valid() bool {
	return m >= MissedSmokeUnreviewed && m <= MissedSmokeNo
}

// Answered reports whether the review was explicitly answered
func (m MissedSmokeReview) Answered() bool {
	return m == MissedSmokeYes || m == MissedSmokeNo
}

func (m MissedSmokeReview) String() string {
	switch m {
	case MissedSmokeYes:
		return "yes"
	case MissedSmokeNo:
		return "no"
	default:
		return "unreviewed"
	}
}

// BboxRef is one frame's box belonging to a sequence box track
type BboxRef struct {
	DetectionID int64
	Box         types.NormalizedBbox
}

// FalsePositiveSet is a sorted set of false positive types
type FalsePositiveSet []types.FalsePositiveType

// NewFalsePositiveSet builds a set, dropping duplicates
func NewFalsePositiveSet(items ...types.FalsePositiveType) FalsePositiveSet {
	var s FalsePositiveSet
	for _, t := range items {
		s = s.With(t)
	}
	return s
}

// Has reports membership
func (s FalsePositiveSet) Has(t types.FalsePositiveType) bool {
	_, found := slices.BinarySearch(s, t)
	return found
}

// With returns a copy of s including t
func (s FalsePositiveSet) With(t types.FalsePositiveType) FalsePositiveSet {
	i, found := slices.BinarySearch(s, t)
	if found {
		return slices.Clone(s)
	}
	out := slices.Clone(s)
	return slices.Insert(out, i, t)
}

// Without returns a copy of s excluding t
func (s FalsePositiveSet) Without(t types.FalsePositiveType) FalsePositiveSet {
	i, found := slices.BinarySearch(s, t)
	out := slices.Clone(s)
	if !found {
		return out
	}
	out = slices.Delete(out, i, i+1)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len returns the set size
func (s FalsePositiveSet) Len() int {
	return len(s)
}

// SequenceBbox is a box tracked across the frames of a sequence together with its classification
type SequenceBbox struct {
	Bboxes             []BboxRef
	IsSmoke            bool
	SmokeType          types.SmokeType
	FalsePositiveTypes FalsePositiveSet
}

// HasConflict reports a box marked both smoke and false positive
func (b SequenceBbox) HasConflict() bool {
	return b.IsSmoke && b.FalsePositiveTypes.Len() > 0
}

// IsAnnotated reports whether the box carries a complete classification:
// smoke with a smoke type, or at least one false positive type.
func (b SequenceBbox) IsAnnotated() bool {
	return (b.IsSmoke && b.SmokeType.Valid()) || b.FalsePositiveTypes.Len() > 0
}

func (b SequenceBbox) clone() SequenceBbox {
	b.Bboxes = slices.Clone(b.Bboxes)
	b.FalsePositiveTypes = slices.Clone(b.FalsePositiveTypes)
	return b
}

func (b SequenceBbox) cleared() SequenceBbox {
	b.IsSmoke = false
	b.SmokeType = ""
	b.FalsePositiveTypes = nil
	return b
}

// SequenceAnnotation is the review record of one sequence. It is a value
// type: every mutation goes through Apply and yields a new value.
type SequenceAnnotation struct {
	sequenceID  int64
	boxes       []SequenceBbox
	missedSmoke MissedSmokeReview
	stage       SequenceStage

	hasSmoke           bool
	hasFalsePositives  bool
	falsePositiveTypes FalsePositiveSet
}

// NewSequenceAnnotation builds a record and computes its aggregates
func NewSequenceAnnotation(sequenceID int64, boxes []SequenceBbox, missedSmoke MissedSmokeReview, stage SequenceStage) SequenceAnnotation {
	a := SequenceAnnotation{
		sequenceID:  sequenceID,
		boxes:       make([]SequenceBbox, 0, len(boxes)),
		missedSmoke: missedSmoke,
		stage:       stage,
	}
	for _, b := range boxes {
		b = b.clone()
		b.FalsePositiveTypes = NewFalsePositiveSet(b.FalsePositiveTypes...)
		a.boxes = append(a.boxes, b)
	}
	a.fold()
	return a
}

// SequenceID returns the annotated sequence id
func (a SequenceAnnotation) SequenceID() int64 { return a.sequenceID }

// Stage returns the processing stage
func (a SequenceAnnotation) Stage() SequenceStage { return a.stage }

// MissedSmoke returns the missed smoke review state
func (a SequenceAnnotation) MissedSmoke() MissedSmokeReview { return a.missedSmoke }

// HasSmoke reports whether any box is marked smoke
func (a SequenceAnnotation) HasSmoke() bool { return a.hasSmoke }

// HasFalsePositives reports whether any box carries a false positive type
func (a SequenceAnnotation) HasFalsePositives() bool { return a.hasFalsePositives }

// FalsePositiveTypes returns the union of every box's false positive types
func (a SequenceAnnotation) FalsePositiveTypes() FalsePositiveSet {
	return slices.Clone(a.falsePositiveTypes)
}

// Boxes returns a copy of the sequence boxes
func (a SequenceAnnotation) Boxes() []SequenceBbox {
	out := make([]SequenceBbox, len(a.boxes))
	for i, b := range a.boxes {
		out[i] = b.clone()
	}
	return out
}

// Box returns a copy of one sequence box
func (a SequenceAnnotation) Box(i int) (SequenceBbox, bool) {
	if i < 0 || i >= len(a.boxes) {
		return SequenceBbox{}, false
	}
	return a.boxes[i].clone(), true
}

// Len returns the number of sequence boxes
func (a SequenceAnnotation) Len() int { return len(a.boxes) }

func (a SequenceAnnotation) clone() SequenceAnnotation {
	a.boxes = a.Boxes()
	a.falsePositiveTypes = slices.Clone(a.falsePositiveTypes)
	return a
}

// fold recomputes the aggregate fields from the box list
func (a *SequenceAnnotation) fold() {
	a.hasSmoke = false
	a.hasFalsePositives = false
	var fp FalsePositiveSet
	for _, b := range a.boxes {
		if b.IsSmoke {
			a.hasSmoke = true
		}
		if b.FalsePositiveTypes.Len() > 0 {
			a.hasFalsePositives = true
		}
		for _, t := range b.FalsePositiveTypes {
			fp = fp.With(t)
		}
	}
	a.falsePositiveTypes = fp
}
