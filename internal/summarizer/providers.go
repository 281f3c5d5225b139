package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/user/arxiv-digest/internal/config"
)

type anthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func newAnthropicCompleter(cfg *config.Config) *anthropicCompleter {
	return &anthropicCompleter{
		client:    anthropic.NewClient(cfg.AnthropicAPIKey),
		model:     cfg.Model,
		maxTokens: cfg.SummaryMaxTokens,
	}
}

func (c *anthropicCompleter) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", classifyAnthropic(err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: empty response", errAPI)
	}
	return strings.TrimSpace(resp.Content[0].GetText()), nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimitErr() || apiErr.IsOverloadedErr() {
			return fmt.Errorf("%w: %v", errRateLimited, err)
		}
		return fmt.Errorf("%w: %v", errAPI, err)
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", errRateLimited, err)
		}
		return fmt.Errorf("%w: %v", errAPI, err)
	}
	return err
}

type openaiCompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAICompleter(cfg *config.Config) *openaiCompleter {
	return &openaiCompleter{
		client:    openai.NewClient(cfg.OpenAIAPIKey),
		model:     cfg.Model,
		maxTokens: cfg.SummaryMaxTokens,
	}
}

func (c *openaiCompleter) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", errAPI)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", errRateLimited, err)
		}
		return fmt.Errorf("%w: %v", errAPI, err)
	}
	return err
}
