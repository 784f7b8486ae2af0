package annotation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// IssueKind names a rule a record violates
type IssueKind string

const (
	IssueIncompleteBoxes          IssueKind = "incomplete_boxes"
	IssueMissingMissedSmokeReview IssueKind = "missing_missed_smoke_review"
	IssueConflictingBox           IssueKind = "conflicting_box"
	IssueNotAnnotated             IssueKind = "not_annotated"
	IssueInvalidEntry             IssueKind = "invalid_entry"
)

// Issue is one violated completeness rule. Count is set for
// IssueIncompleteBoxes, Index for per-box issues.
type Issue struct {
	Kind   IssueKind
	Count  int
	Index  int
	Detail string
}

func (i Issue) Error() string {
	switch i.Kind {
	case IssueIncompleteBoxes:
		return fmt.Sprintf("%d box(es) not yet classified", i.Count)
	case IssueMissingMissedSmokeReview:
		return "missed smoke review not answered"
	case IssueConflictingBox:
		return fmt.Sprintf("box %d is marked both smoke and false positive", i.Index)
	case IssueNotAnnotated:
		return "detection has no annotation"
	case IssueInvalidEntry:
		return fmt.Sprintf("entry %d: %s", i.Index, i.Detail)
	default:
		return string(i.Kind)
	}
}

// ErrIncomplete matches every *IncompleteError
var ErrIncomplete = errors.New("annotation incomplete")

// IncompleteError blocks a stage transition and lists every reason
type IncompleteError struct {
	Issues []Issue
}

func (e *IncompleteError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Error()
	}
	return fmt.Sprintf("%s: %s", ErrIncomplete, strings.Join(msgs, "; "))
}

// Is lets errors.Is match ErrIncomplete
func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// Completion summarises review progress of a sequence
type Completion struct {
	Completed  int  `json:"completed"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	IsComplete bool `json:"isComplete"`
}

// GetCompletion counts classified boxes. An empty box list is 100% done but
// only complete once the missed smoke question is answered.
func GetCompletion(a SequenceAnnotation) Completion {
	c := Completion{Total: len(a.boxes), Percentage: 100}
	for _, b := range a.boxes {
		if b.IsAnnotated() {
			c.Completed++
		}
	}
	if c.Total > 0 {
		c.Percentage = int(math.Round(float64(c.Completed) / float64(c.Total) * 100))
	}
	c.IsComplete = len(Validate(a)) == 0
	return c
}

// Validate returns every violated completeness rule, in box order, with the
// aggregate rules last. An empty result means the sequence may be finalized.
func Validate(a SequenceAnnotation) []Issue {
	var issues []Issue
	incomplete := 0
	for i, b := range a.boxes {
		if b.HasConflict() {
			issues = append(issues, Issue{Kind: IssueConflictingBox, Index: i})
		}
		if !b.IsAnnotated() {
			incomplete++
		}
	}
	if incomplete > 0 {
		issues = append(issues, Issue{Kind: IssueIncompleteBoxes, Count: incomplete})
	}
	if !a.missedSmoke.Answered() {
		issues = append(issues, Issue{Kind: IssueMissingMissedSmokeReview})
	}
	return issues
}

// IsComplete reports whether Validate finds nothing
func IsComplete(a SequenceAnnotation) bool {
	return len(Validate(a)) == 0
}

// GetValidationErrors renders Validate as messages for display
func GetValidationErrors(a SequenceAnnotation) []string {
	issues := Validate(a)
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Error()
	}
	return out
}
