// Package contract maps the persisted JSON shapes of detections and
// annotations onto the domain types. Payloads are validated before any
// domain value is built; derived aggregates in incoming payloads are ignored
// and recomputed.
package contract

import (
	"time"
)

// PredictionPayload is one detector box as stored
type PredictionPayload struct {
	XYXYN      [4]float64 `json:"xyxyn"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
	ClassName  string     `json:"class_name"`
}

// DetectionPayload is one analysed frame as stored
type DetectionPayload struct {
	ID          int64               `json:"id" validate:"gte=0"`
	RecordedAt  time.Time           `json:"recorded_at"`
	Predictions []PredictionPayload `json:"predictions" validate:"dive"`
}

// BboxRefPayload is one frame box of a sequence box track
type BboxRefPayload struct {
	DetectionID int64      `json:"detection_id" validate:"gte=0"`
	XYXYN       [4]float64 `json:"xyxyn"`
}

// SequenceBboxPayload is a sequence box with its classification
type SequenceBboxPayload struct {
	Bboxes             []BboxRefPayload `json:"bboxes" validate:"dive"`
	IsSmoke            bool             `json:"is_smoke"`
	SmokeType          string           `json:"smoke_type,omitempty" validate:"omitempty,smoke_type"`
	FalsePositiveTypes []string         `json:"false_positive_types" validate:"dive,false_positive_type"`
}

// SequenceBody wraps the box list
type SequenceBody struct {
	SequencesBbox []SequenceBboxPayload `json:"sequences_bbox" validate:"dive"`
}

// SequenceAnnotationPayload is a sequence review record as stored. The
// has_smoke, has_false_positives and false_positive_types fields are
// written on encode and ignored on decode.
type SequenceAnnotationPayload struct {
	SequenceID         int64        `json:"sequence_id,omitempty" validate:"gte=0"`
	ProcessingStage    string       `json:"processing_stage" validate:"required,oneof=imported ready_to_annotate annotated"`
	HasMissedSmoke     *bool        `json:"has_missed_smoke"`
	HasSmoke           bool         `json:"has_smoke"`
	HasFalsePositives  bool         `json:"has_false_positives"`
	FalsePositiveTypes []string     `json:"false_positive_types"`
	Annotation         SequenceBody `json:"annotation"`
}

// DetectionEntryPayload is one refined smoke box of a frame
type DetectionEntryPayload struct {
	XYXYN     [4]float64 `json:"xyxyn"`
	SmokeType string     `json:"smoke_type" validate:"required,smoke_type"`
}

// DetectionBody wraps the entry list. A null list means not yet annotated.
type DetectionBody struct {
	Annotation []DetectionEntryPayload `json:"annotation" validate:"dive"`
}

// DetectionAnnotationPayload is a per-frame review record as stored
type DetectionAnnotationPayload struct {
	DetectionID     int64         `json:"detection_id,omitempty" validate:"gte=0"`
	ProcessingStage string        `json:"processing_stage" validate:"required,oneof=imported visual_check label_studio_check annotated"`
	Annotation      DetectionBody `json:"annotation"`
}
