// Package ai adapts the OpenAI chat completion API to the forecast
// delegate contract.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/pkg/logger"
)

// Client wraps the OpenAI SDK with the model and timeout settings used for
// forecasting.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates the completion client from configuration.
func NewClient(cfg *config.ForecastConfig) *Client {
	return newClient(cfg, "")
}

func newClient(cfg *config.ForecastConfig, baseURL string) *Client {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientConfig.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAIModel,
	}
}

// Complete sends one system+user exchange and returns the first choice. The
// low temperature keeps verdicts stable across repeated calls.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	startTime := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	content := resp.Choices[0].Message.Content
	logger.Debug("OpenAI completion",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(startTime)),
		zap.Int("response_len", len(content)),
	)

	return content, nil
}
