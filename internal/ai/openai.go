// OpenAI-compatible provider: implements Client on top of the go-openai SDK
// for deployments where the completion service is OpenAI itself or anything
// speaking its API. The SDK response is folded back into the shared
// CompletionResponse shape so the rest of the pipeline is provider-blind.
package ai

import (
	"context"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIClient adapts the go-openai SDK to the Client interface.
type OpenAIClient struct {
	baseURL string
}

// NewOpenAIClient constructs an OpenAIClient. baseURL may be empty for the
// public OpenAI endpoint, or point at any OpenAI-compatible server.
func NewOpenAIClient(baseURL string) *OpenAIClient {
	return &OpenAIClient{baseURL: baseURL}
}

// Complete issues a chat completion through the SDK. The per-call token is
// the API key; SDK clients are cheap value wrappers around a shared
// http.Transport, so constructing one per call is fine.
func (c *OpenAIClient) Complete(ctx context.Context, token string, req CompletionRequest) (*CompletionResponse, error) {
	cfg := goopenai.DefaultConfig(token)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	client := goopenai.NewClientWithConfig(cfg)

	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
		User:     req.ClientMessageID,
	})
	if err != nil {
		return nil, err
	}

	out := &CompletionResponse{}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Message: Message{Role: ch.Message.Role, Content: ch.Message.Content},
		})
	}
	return out, nil
}
