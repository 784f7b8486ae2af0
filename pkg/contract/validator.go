package contract

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

// ErrInvalidPayload wraps every decode-time validation failure
var ErrInvalidPayload = errors.New("invalid payload")

// NewValidator returns a validator with the annotation vocabularies registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("smoke_type", func(fl validator.FieldLevel) bool {
		return types.SmokeType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("false_positive_type", func(fl validator.FieldLevel) bool {
		return types.FalsePositiveType(fl.Field().String()).Valid()
	})
	return v
}

// checkXYXYN enforces the persisted box shape: four finite values in [0,1]
// with x1<=x2 and y1<=y2
func checkXYXYN(v [4]float64) error {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 || c > 1 {
			return fmt.Errorf("xyxyn %v: coordinates must be in [0,1]", v)
		}
	}
	if v[0] > v[2] || v[1] > v[3] {
		return fmt.Errorf("xyxyn %v: corners are reversed", v)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
}
