package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Inferencer runs a single system+user exchange against a language model.
// Edit mirrors Infer with defaults tuned for text-preserving revisions.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
	Edit(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}
