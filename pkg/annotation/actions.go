package annotation

import (
	"errors"
	"fmt"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

var (
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrStageLocked       = errors.New("annotation is locked in its current stage")
	ErrBoxIndex          = errors.New("box index out of range")
	ErrInvalidValue      = errors.New("invalid classification value")
)

// Action is a review step applied to a SequenceAnnotation
type Action interface {
	apply(a *SequenceAnnotation) error
}

// ClassifySmoke marks a box as smoke of the given type, replacing any false
// positive classification
type ClassifySmoke struct {
	Box       int
	SmokeType types.SmokeType
}

// ToggleFalsePositive adds or removes one false positive type on a box.
// Adding a type replaces a smoke classification.
type ToggleFalsePositive struct {
	Box  int
	Type types.FalsePositiveType
}

// ClearClassification removes every classification from a box
type ClearClassification struct {
	Box int
}

// SetMissedSmoke records the missed smoke review answer
type SetMissedSmoke struct {
	Review MissedSmokeReview
}

// MarkReady moves an imported sequence to ready_to_annotate
type MarkReady struct{}

// Finalize moves a complete sequence to annotated
type Finalize struct{}

// Reset reverts an annotated sequence to ready_to_annotate, clearing every
// box classification and the missed smoke answer
type Reset struct{}

// Apply runs one action and returns the resulting record. On error the
// input is returned unchanged.
func Apply(a SequenceAnnotation, action Action) (SequenceAnnotation, error) {
	next := a.clone()
	if err := action.apply(&next); err != nil {
		return a, err
	}
	next.fold()
	return next, nil
}

func (a *SequenceAnnotation) editable(box int) error {
	if a.stage == StageAnnotated {
		return ErrStageLocked
	}
	if box < 0 || box >= len(a.boxes) {
		return fmt.Errorf("%w: %d", ErrBoxIndex, box)
	}
	return nil
}

func (c ClassifySmoke) apply(a *SequenceAnnotation) error {
	if err := a.editable(c.Box); err != nil {
		return err
	}
	if !c.SmokeType.Valid() {
		return fmt.Errorf("%w: smoke type %q", ErrInvalidValue, c.SmokeType)
	}
	b := &a.boxes[c.Box]
	b.IsSmoke = true
	b.SmokeType = c.SmokeType
	b.FalsePositiveTypes = nil
	return nil
}

func (t ToggleFalsePositive) apply(a *SequenceAnnotation) error {
	if err := a.editable(t.Box); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: false positive type %q", ErrInvalidValue, t.Type)
	}
	b := &a.boxes[t.Box]
	if b.FalsePositiveTypes.Has(t.Type) {
		b.FalsePositiveTypes = b.FalsePositiveTypes.Without(t.Type)
		return nil
	}
	b.FalsePositiveTypes = b.FalsePositiveTypes.With(t.Type)
	b.IsSmoke = false
	b.SmokeType = ""
	return nil
}

func (c ClearClassification) apply(a *SequenceAnnotation) error {
	if err := a.editable(c.Box); err != nil {
		return err
	}
	a.boxes[c.Box] = a.boxes[c.Box].cleared()
	return nil
}

func (s SetMissedSmoke) apply(a *SequenceAnnotation) error {
	if a.stage == StageAnnotated {
		return ErrStageLocked
	}
	if !s.Review.Valid() {
		return fmt.Errorf("%w: missed smoke review %d", ErrInvalidValue, int(s.Review))
	}
	a.missedSmoke = s.Review
	return nil
}

func (MarkReady) apply(a *SequenceAnnotation) error {
	if a.stage != StageImported {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.stage, StageReadyToAnnotate)
	}
	a.stage = StageReadyToAnnotate
	return nil
}

func (Finalize) apply(a *SequenceAnnotation) error {
	if a.stage != StageReadyToAnnotate {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.stage, StageAnnotated)
	}
	if issues := Validate(*a); len(issues) > 0 {
		return &IncompleteError{Issues: issues}
	}
	a.stage = StageAnnotated
	return nil
}

func (Reset) apply(a *SequenceAnnotation) error {
	if a.stage != StageAnnotated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.stage, StageReadyToAnnotate)
	}
	for i := range a.boxes {
		a.boxes[i] = a.boxes[i].cleared()
	}
	a.missedSmoke = MissedSmokeUnreviewed
	a.stage = StageReadyToAnnotate
	return nil
}
