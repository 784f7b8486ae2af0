package client

import (
	"context"

	"github.com/menta2k/smoke-annotator/pkg/types"
)

// VisionClient is a vision model able to answer free-form and smoke
// location prompts about a base64-encoded frame
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateSmoke(ctx context.Context, model, prompt, imgB64 string) (*types.ModelResult, error)
}
