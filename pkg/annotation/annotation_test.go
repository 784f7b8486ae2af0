package annotation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

func box(x1, y1, x2, y2 float64) SequenceBbox {
	return SequenceBbox{Bboxes: []BboxRef{{DetectionID: 1, Box: types.NewNormalizedBbox(x1, y1, x2, y2)}}}
}

func readySequence(boxes ...SequenceBbox) SequenceAnnotation {
	return NewSequenceAnnotation(42, boxes, MissedSmokeUnreviewed, StageReadyToAnnotate)
}

func mustApply(t *testing.T, a SequenceAnnotation, actions ...Action) SequenceAnnotation {
	t.Helper()
	for _, act := range actions {
		var err error
		a, err = Apply(a, act)
		require.NoError(t, err)
	}
	return a
}

func TestEmptySequenceCompletion(t *testing.T) {
	a := readySequence()

	c := GetCompletion(a)
	assert.Equal(t, 0, c.Total)
	assert.Equal(t, 100, c.Percentage)
	assert.False(t, c.IsComplete, "missed smoke review still unanswered")

	a = mustApply(t, a, SetMissedSmoke{Review: MissedSmokeNo})
	assert.True(t, GetCompletion(a).IsComplete)
}

func TestCompletionCounts(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1), box(.2, .2, .3, .3), box(.5, .5, .6, .6))
	a = mustApply(t, a, ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire})

	c := GetCompletion(a)
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, 33, c.Percentage)
	assert.False(t, c.IsComplete)

	a = mustApply(t, a, ToggleFalsePositive{Box: 1, Type: types.FPLowCloud})
	assert.Equal(t, 67, GetCompletion(a).Percentage)
}

func TestValidateCollectsAllIssues(t *testing.T) {
	conflicting := box(0, 0, .1, .1)
	conflicting.IsSmoke = true
	conflicting.SmokeType = types.SmokeWildfire
	conflicting.FalsePositiveTypes = FalsePositiveSet{types.FPBuilding}

	a := readySequence(conflicting, box(.2, .2, .3, .3))
	issues := Validate(a)
	require.Len(t, issues, 3)
	assert.Equal(t, IssueConflictingBox, issues[0].Kind)
	assert.Equal(t, 0, issues[0].Index)
	assert.Equal(t, IssueIncompleteBoxes, issues[1].Kind)
	assert.Equal(t, 1, issues[1].Count)
	assert.Equal(t, IssueMissingMissedSmokeReview, issues[2].Kind)

	assert.Len(t, GetValidationErrors(a), 3)
	assert.False(t, IsComplete(a))
}

func TestSmokeWithoutTypeIsIncomplete(t *testing.T) {
	b := box(0, 0, .1, .1)
	b.IsSmoke = true
	a := NewSequenceAnnotation(1, []SequenceBbox{b}, MissedSmokeNo, StageReadyToAnnotate)

	issues := Validate(a)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueIncompleteBoxes, issues[0].Kind)

	// persisted records may carry a smoke type outside the known set
	b.SmokeType = "steam"
	a = NewSequenceAnnotation(1, []SequenceBbox{b}, MissedSmokeNo, StageReadyToAnnotate)
	assert.False(t, b.IsAnnotated())
	assert.False(t, IsComplete(a))
	assert.Equal(t, 0, GetCompletion(a).Completed)
}

func TestAggregatesFollowBoxes(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1), box(.2, .2, .3, .3))
	assert.False(t, a.HasSmoke())
	assert.False(t, a.HasFalsePositives())

	a = mustApply(t, a,
		ToggleFalsePositive{Box: 0, Type: types.FPLensFlare},
		ToggleFalsePositive{Box: 1, Type: types.FPLowCloud},
		ToggleFalsePositive{Box: 1, Type: types.FPLensFlare},
	)
	assert.True(t, a.HasFalsePositives())
	assert.Equal(t, FalsePositiveSet{types.FPLensFlare, types.FPLowCloud}, a.FalsePositiveTypes())

	a = mustApply(t, a, ClassifySmoke{Box: 1, SmokeType: types.SmokeIndustrial})
	assert.True(t, a.HasSmoke())
	assert.Equal(t, FalsePositiveSet{types.FPLensFlare}, a.FalsePositiveTypes())

	a = mustApply(t, a, ToggleFalsePositive{Box: 0, Type: types.FPLensFlare})
	assert.False(t, a.HasFalsePositives())
	assert.Empty(t, a.FalsePositiveTypes())
}

func TestClassificationsAreExclusive(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1))

	a = mustApply(t, a, ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire})
	a = mustApply(t, a, ToggleFalsePositive{Box: 0, Type: types.FPRain})
	b, _ := a.Box(0)
	assert.False(t, b.IsSmoke)
	assert.Empty(t, b.SmokeType)
	assert.False(t, b.HasConflict())

	a = mustApply(t, a, ClassifySmoke{Box: 0, SmokeType: types.SmokeOther})
	b, _ = a.Box(0)
	assert.True(t, b.IsSmoke)
	assert.Zero(t, b.FalsePositiveTypes.Len())

	a = mustApply(t, a, ClearClassification{Box: 0})
	b, _ = a.Box(0)
	assert.False(t, b.IsAnnotated())
}

func TestApplyRejectsBadInput(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1))

	_, err := Apply(a, ClassifySmoke{Box: 3, SmokeType: types.SmokeWildfire})
	assert.ErrorIs(t, err, ErrBoxIndex)

	_, err = Apply(a, ClassifySmoke{Box: 0, SmokeType: "steam"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = Apply(a, ToggleFalsePositive{Box: 0, Type: "ufo"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	next, err := Apply(a, SetMissedSmoke{Review: MissedSmokeReview(42)})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, MissedSmokeUnreviewed, next.MissedSmoke())

	_, err = Apply(a, SetMissedSmoke{Review: MissedSmokeReview(-1)})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1))
	next := mustApply(t, a, ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire})

	orig, _ := a.Box(0)
	assert.False(t, orig.IsSmoke)
	assert.False(t, a.HasSmoke())
	assert.True(t, next.HasSmoke())
}

func TestFinalizeIsGated(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1))

	_, err := Apply(a, Finalize{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncomplete)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Len(t, incomplete.Issues, 2)

	a = mustApply(t, a,
		ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire},
		SetMissedSmoke{Review: MissedSmokeYes},
		Finalize{},
	)
	assert.Equal(t, StageAnnotated, a.Stage())
}

func TestFinalizeBlockedByConflict(t *testing.T) {
	b := box(0, 0, .1, .1)
	b.IsSmoke = true
	b.SmokeType = types.SmokeWildfire
	b.FalsePositiveTypes = FalsePositiveSet{types.FPBuilding}
	a := NewSequenceAnnotation(1, []SequenceBbox{b}, MissedSmokeNo, StageReadyToAnnotate)

	_, err := Apply(a, Finalize{})
	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	require.Len(t, incomplete.Issues, 1)
	assert.Equal(t, IssueConflictingBox, incomplete.Issues[0].Kind)
}

func TestStageTransitions(t *testing.T) {
	a := NewSequenceAnnotation(7, nil, MissedSmokeUnreviewed, StageImported)

	_, err := Apply(a, Finalize{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	a = mustApply(t, a, MarkReady{}, SetMissedSmoke{Review: MissedSmokeNo}, Finalize{})
	assert.Equal(t, StageAnnotated, a.Stage())

	_, err = Apply(a, SetMissedSmoke{Review: MissedSmokeYes})
	assert.ErrorIs(t, err, ErrStageLocked)
	_, err = Apply(a, MarkReady{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetClearsReview(t *testing.T) {
	a := readySequence(box(0, 0, .1, .1))
	a = mustApply(t, a,
		ClassifySmoke{Box: 0, SmokeType: types.SmokeWildfire},
		SetMissedSmoke{Review: MissedSmokeNo},
		Finalize{},
	)
	_, err := Apply(a, ClassifySmoke{Box: 0, SmokeType: types.SmokeOther})
	assert.ErrorIs(t, err, ErrStageLocked)

	a = mustApply(t, a, Reset{})
	assert.Equal(t, StageReadyToAnnotate, a.Stage())
	assert.Equal(t, MissedSmokeUnreviewed, a.MissedSmoke())
	assert.False(t, a.HasSmoke())
	assert.Equal(t, 1, a.Len(), "boxes survive a reset")

	_, err = Apply(a, Reset{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMissedSmokeBool(t *testing.T) {
	yes, no := true, false
	assert.Equal(t, MissedSmokeUnreviewed, MissedSmokeFromBool(nil))
	assert.Equal(t, MissedSmokeYes, MissedSmokeFromBool(&yes))
	assert.Equal(t, MissedSmokeNo, MissedSmokeFromBool(&no))

	assert.Nil(t, MissedSmokeUnreviewed.Bool())
	assert.Equal(t, &yes, MissedSmokeYes.Bool())
	assert.Equal(t, &no, MissedSmokeNo.Bool())
}

func TestFalsePositiveSet(t *testing.T) {
	s := NewFalsePositiveSet(types.FPLensFlare, types.FPLowCloud, types.FPLensFlare)
	assert.Equal(t, FalsePositiveSet{types.FPLensFlare, types.FPLowCloud}, s)
	assert.True(t, s.Has(types.FPLensFlare))
	assert.False(t, s.Has(types.FPRain))

	s2 := s.Without(types.FPLowCloud)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, FalsePositiveSet{types.FPLensFlare}, s2)
	assert.Nil(t, s2.Without(types.FPLensFlare))
}

func TestBuildSequenceBboxes(t *testing.T) {
	detections := []types.Detection{
		{ID: 1, Predictions: []types.Prediction{
			{XYXYN: [4]float32{.10, .10, .30, .30}},
			{XYXYN: [4]float32{.70, .70, .90, .90}},
		}},
		{ID: 2, Predictions: []types.Prediction{
			{XYXYN: [4]float32{.11, .11, .31, .31}},
			{XYXYN: [4]float32{.50, .50, .50, .60}},
		}},
	}

	seq := BuildSequenceBboxes(detections, 0.5)
	require.Len(t, seq, 2)
	require.Len(t, seq[0].Bboxes, 2)
	assert.Equal(t, int64(1), seq[0].Bboxes[0].DetectionID)
	assert.Equal(t, int64(2), seq[0].Bboxes[1].DetectionID)
	assert.Len(t, seq[1].Bboxes, 1)
	assert.False(t, seq[0].IsAnnotated())

	hull := seq[0].Hull()
	assert.InDelta(t, 0.10, hull.X1, 1e-6)
	assert.InDelta(t, 0.31, hull.X2, 1e-6)
}

func TestDetectionTransitions(t *testing.T) {
	d := DetectionAnnotation{DetectionID: 5, Stage: DetectionImported}

	_, err := TransitionDetection(d, DetectionAnnotated)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	d, err = TransitionDetection(d, DetectionVisualCheck)
	require.NoError(t, err)

	_, err = TransitionDetection(d, DetectionAnnotated)
	assert.ErrorIs(t, err, ErrIncomplete, "nil entries is not annotated")

	d.Entries = NoSmoke()
	assert.True(t, d.IsFalsePositive())
	d, err = TransitionDetection(d, DetectionAnnotated)
	require.NoError(t, err)
	assert.True(t, d.IsFalsePositive())

	d, err = TransitionDetection(d, DetectionVisualCheck)
	require.NoError(t, err)
	assert.Nil(t, d.Entries)
}

func TestDetectionEntriesValidated(t *testing.T) {
	d := DetectionAnnotation{
		Stage: DetectionLabelStudioCheck,
		Entries: []DetectionEntry{
			{Box: types.NewNormalizedBbox(.1, .1, .2, .2), SmokeType: types.SmokeWildfire},
			{Box: types.NormalizedBbox{X1: .5, Y1: .5, X2: .5, Y2: .6}, SmokeType: "steam"},
		},
	}
	issues := ValidateDetectionEntries(d)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Index)
	assert.False(t, d.IsComplete())

	_, err := TransitionDetection(d, DetectionAnnotated)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestValidateDetectionAnnotationWarnings(t *testing.T) {
	d := DetectionAnnotation{
		Stage: DetectionVisualCheck,
		Entries: []DetectionEntry{
			{Box: types.NewNormalizedBbox(.1, .1, .3, .3), SmokeType: types.SmokeWildfire},
			{Box: types.NewNormalizedBbox(.1, .1, .3, .31), SmokeType: types.SmokeWildfire},
		},
	}
	res := ValidateDetectionAnnotation(d, 0.8)
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)

	d.Stage = "reviewed"
	res = ValidateDetectionAnnotation(d, 0.8)
	assert.False(t, res.IsValid)
}
