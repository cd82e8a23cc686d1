package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/llm/prompts"
	"github.com/pavelanni/examportal/internal/model"
)

// MaxQuestions caps how many questions a single generation may request.
const MaxQuestions = 50

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// GenerateQuestions asks the model for count multiple-choice questions on
// topic and parses the reply. The raw reply is returned alongside any parse
// failure so callers can surface it. Failures are never retried.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int, difficulty prompts.Difficulty) ([]model.Question, string, error) {
	if count < 1 || count > MaxQuestions {
		return nil, "", apperr.Invalid("count must be between 1 and %d", MaxQuestions)
	}
	prompt, err := prompts.BuildGeneratePrompt(topic, count, difficulty)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		slog.Error("question generation call failed", "model", c.model, "error", err)
		return nil, "", apperr.Upstream(err, "generation request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, "", apperr.Upstream(nil, "model returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	questions, err := ExtractQuestions(raw)
	if err != nil {
		slog.Warn("could not parse generated questions", "model", c.model, "error", err)
		return nil, raw, apperr.Upstream(err, "malformed model response")
	}
	slog.Info("generated questions", "model", c.model, "requested", count, "received", len(questions))
	return questions, raw, nil
}
