package llm

import (
	"context"
	"fmt"
)

// New builds an adapter for the named provider ("openai", "bedrock", or
// "gemini") with credentials taken from the environment. An empty model
// selects the provider's default.
func New(ctx context.Context, provider, model string) (LLM, error) {
	switch provider {
	case "openai":
		return NewOpenAI("", model), nil
	case "bedrock":
		return NewBedrock(ctx, BedrockConfig{ModelID: model})
	case "gemini":
		return NewGemini(ctx, "", model)
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, bedrock, or gemini)", provider)
	}
}
