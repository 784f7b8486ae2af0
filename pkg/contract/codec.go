package contract

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/menta2k/smoke-annotator/pkg/annotation"
	"github.com/menta2k/smoke-annotator/pkg/types"
)

// Codec decodes and encodes the persisted payloads
type Codec struct {
	json     jsoniter.API
	validate *validator.Validate
}

// NewCodec creates a codec with standard-library compatible JSON behaviour
func NewCodec() *Codec {
	return &Codec{
		json:     jsoniter.ConfigCompatibleWithStandardLibrary,
		validate: NewValidator(),
	}
}

// DecodeDetections parses a JSON array of detections
func (c *Codec) DecodeDetections(data []byte) ([]types.Detection, error) {
	var payloads []DetectionPayload
	if err := c.json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("failed to parse detections: %w", err)
	}

	out := make([]types.Detection, 0, len(payloads))
	for i, p := range payloads {
		if err := c.validate.Struct(p); err != nil {
			return nil, invalid(fmt.Errorf("detection %d: %w", i, err))
		}
		d := types.Detection{ID: p.ID, RecordedAt: p.RecordedAt, Predictions: make([]types.Prediction, 0, len(p.Predictions))}
		for j, pred := range p.Predictions {
			if err := checkXYXYN(pred.XYXYN); err != nil {
				return nil, invalid(fmt.Errorf("detection %d prediction %d: %w", i, j, err))
			}
			d.Predictions = append(d.Predictions, types.Prediction{
				XYXYN:      [4]float32{float32(pred.XYXYN[0]), float32(pred.XYXYN[1]), float32(pred.XYXYN[2]), float32(pred.XYXYN[3])},
				Confidence: float32(pred.Confidence),
				ClassName:  pred.ClassName,
			})
		}
		out = append(out, d)
	}
	return out, nil
}

// EncodeDetections writes detections in the persisted shape
func (c *Codec) EncodeDetections(detections []types.Detection) ([]byte, error) {
	payloads := make([]DetectionPayload, len(detections))
	for i, d := range detections {
		p := DetectionPayload{ID: d.ID, RecordedAt: d.RecordedAt, Predictions: make([]PredictionPayload, len(d.Predictions))}
		for j, pred := range d.Predictions {
			p.Predictions[j] = PredictionPayload{
				XYXYN:      [4]float64{float64(pred.XYXYN[0]), float64(pred.XYXYN[1]), float64(pred.XYXYN[2]), float64(pred.XYXYN[3])},
				Confidence: float64(pred.Confidence),
				ClassName:  pred.ClassName,
			}
		}
		payloads[i] = p
	}
	return c.json.MarshalIndent(payloads, "", "  ")
}

// DecodeSequenceAnnotation parses and validates a sequence review record.
// Aggregate fields present in the payload are recomputed from the boxes.
func (c *Codec) DecodeSequenceAnnotation(data []byte) (annotation.SequenceAnnotation, error) {
	var p SequenceAnnotationPayload
	if err := c.json.Unmarshal(data, &p); err != nil {
		return annotation.SequenceAnnotation{}, fmt.Errorf("failed to parse sequence annotation: %w", err)
	}
	return c.SequenceFromPayload(p)
}

// SequenceFromPayload validates a payload and builds the domain record
func (c *Codec) SequenceFromPayload(p SequenceAnnotationPayload) (annotation.SequenceAnnotation, error) {
	if err := c.validate.Struct(p); err != nil {
		return annotation.SequenceAnnotation{}, invalid(err)
	}

	boxes := make([]annotation.SequenceBbox, 0, len(p.Annotation.SequencesBbox))
	for i, sb := range p.Annotation.SequencesBbox {
		box := annotation.SequenceBbox{
			Bboxes:    make([]annotation.BboxRef, 0, len(sb.Bboxes)),
			IsSmoke:   sb.IsSmoke,
			SmokeType: types.SmokeType(sb.SmokeType),
		}
		for j, ref := range sb.Bboxes {
			if err := checkXYXYN(ref.XYXYN); err != nil {
				return annotation.SequenceAnnotation{}, invalid(fmt.Errorf("sequence box %d frame %d: %w", i, j, err))
			}
			box.Bboxes = append(box.Bboxes, annotation.BboxRef{DetectionID: ref.DetectionID, Box: types.FromXYXYN(ref.XYXYN)})
		}
		for _, fp := range sb.FalsePositiveTypes {
			box.FalsePositiveTypes = append(box.FalsePositiveTypes, types.FalsePositiveType(fp))
		}
		boxes = append(boxes, box)
	}

	return annotation.NewSequenceAnnotation(
		p.SequenceID,
		boxes,
		annotation.MissedSmokeFromBool(p.HasMissedSmoke),
		annotation.SequenceStage(p.ProcessingStage),
	), nil
}

// SequenceToPayload renders a record in the persisted shape, derived fields included
func SequenceToPayload(a annotation.SequenceAnnotation) SequenceAnnotationPayload {
	p := SequenceAnnotationPayload{
		SequenceID:         a.SequenceID(),
		ProcessingStage:    string(a.Stage()),
		HasMissedSmoke:     a.MissedSmoke().Bool(),
		HasSmoke:           a.HasSmoke(),
		HasFalsePositives:  a.HasFalsePositives(),
		FalsePositiveTypes: []string{},
		Annotation:         SequenceBody{SequencesBbox: []SequenceBboxPayload{}},
	}
	for _, fp := range a.FalsePositiveTypes() {
		p.FalsePositiveTypes = append(p.FalsePositiveTypes, string(fp))
	}

	for _, b := range a.Boxes() {
		sb := SequenceBboxPayload{
			Bboxes:             make([]BboxRefPayload, len(b.Bboxes)),
			IsSmoke:            b.IsSmoke,
			SmokeType:          string(b.SmokeType),
			FalsePositiveTypes: make([]string, len(b.FalsePositiveTypes)),
		}
		for i, ref := range b.Bboxes {
			sb.Bboxes[i] = BboxRefPayload{DetectionID: ref.DetectionID, XYXYN: ref.Box.XYXYN()}
		}
		for i, fp := range b.FalsePositiveTypes {
			sb.FalsePositiveTypes[i] = string(fp)
		}
		p.Annotation.SequencesBbox = append(p.Annotation.SequencesBbox, sb)
	}
	return p
}

// EncodeSequenceAnnotation writes a record in the persisted shape
func (c *Codec) EncodeSequenceAnnotation(a annotation.SequenceAnnotation) ([]byte, error) {
	return c.json.MarshalIndent(SequenceToPayload(a), "", "  ")
}

// DecodeDetectionAnnotation parses and validates a per-frame record. A null
// or missing entry list decodes to a nil slice (not annotated); an empty
// list is kept as an explicit "no smoke" answer.
func (c *Codec) DecodeDetectionAnnotation(data []byte) (annotation.DetectionAnnotation, error) {
	var p DetectionAnnotationPayload
	if err := c.json.Unmarshal(data, &p); err != nil {
		return annotation.DetectionAnnotation{}, fmt.Errorf("failed to parse detection annotation: %w", err)
	}
	if err := c.validate.Struct(p); err != nil {
		return annotation.DetectionAnnotation{}, invalid(err)
	}

	d := annotation.DetectionAnnotation{
		DetectionID: p.DetectionID,
		Stage:       annotation.DetectionStage(p.ProcessingStage),
	}
	if p.Annotation.Annotation == nil {
		return d, nil
	}
	d.Entries = annotation.NoSmoke()
	for i, e := range p.Annotation.Annotation {
		if err := checkXYXYN(e.XYXYN); err != nil {
			return annotation.DetectionAnnotation{}, invalid(fmt.Errorf("entry %d: %w", i, err))
		}
		d.Entries = append(d.Entries, annotation.DetectionEntry{Box: types.FromXYXYN(e.XYXYN), SmokeType: types.SmokeType(e.SmokeType)})
	}
	return d, nil
}

// EncodeDetectionAnnotation writes a per-frame record in the persisted shape
func (c *Codec) EncodeDetectionAnnotation(d annotation.DetectionAnnotation) ([]byte, error) {
	p := DetectionAnnotationPayload{
		DetectionID:     d.DetectionID,
		ProcessingStage: string(d.Stage),
	}
	if d.Entries != nil {
		p.Annotation.Annotation = make([]DetectionEntryPayload, len(d.Entries))
		for i, e := range d.Entries {
			p.Annotation.Annotation[i] = DetectionEntryPayload{XYXYN: e.Box.XYXYN(), SmokeType: string(e.SmokeType)}
		}
	}
	return c.json.MarshalIndent(p, "", "  ")
}

// ReadFile reads a payload file
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes a payload file
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
