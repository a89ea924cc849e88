package proposer

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/paicy-t/stratloop/internal/fingerprint"
	"github.com/paicy-t/stratloop/internal/types"
)

// systemPrompt instructs the model to return only the strategy's Python
// source, nothing else.
const systemPrompt = "You write a single Python strategy function named strategy() that calls get(), shift(), and exactly one simulate() call. Respond with source code only, no prose, no markdown fences."

// OpenAIProposer calls a chat completion model to generate strategy source.
type OpenAIProposer struct {
	client *openai.Client
	model  string
}

// NewOpenAIProposer builds a proposer backed by the given API key and model.
func NewOpenAIProposer(apiKey, model string) *OpenAIProposer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProposer{client: openai.NewClient(apiKey), model: model}
}

// Propose sends the guidance text as a user message and wraps the
// response as a StrategyArtifact.
func (p *OpenAIProposer) Propose(ctx context.Context, guidance string) (types.StrategyArtifact, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: guidance},
		},
	})
	if err != nil {
		return types.StrategyArtifact{}, fmt.Errorf("proposer: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.StrategyArtifact{}, ErrEmptyResponse
	}

	source := resp.Choices[0].Message.Content
	return types.StrategyArtifact{
		Fingerprint: fingerprint.Of(source),
		Source:      source,
		CreatedAt:   time.Now(),
	}, nil
}
