package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/marxiv/marxiv/internal/schema"
)

// completionMaxTokens bounds single-turn answers about papers.
const completionMaxTokens = 1024

// fallbackAnthropicModels is served when the listing endpoint fails,
// so the picker stays usable with a valid key behind a flaky network.
var fallbackAnthropicModels = []Model{
	{ID: "claude-3-7-sonnet-20250219", Name: "Claude 3.7 Sonnet", Provider: schema.ProviderAnthropic},
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: schema.ProviderAnthropic},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: schema.ProviderAnthropic},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: schema.ProviderAnthropic},
}

func (c *Client) anthropicClient(key string) anthropic.Client {
	return anthropic.NewClient(
		option.WithAPIKey(key),
		option.WithHTTPClient(c.http),
	)
}

func (c *Client) listAnthropicModels(ctx context.Context, key string) ([]Model, error) {
	client := c.anthropicClient(key)

	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		// Listing failures with a plausible key degrade to the static
		// list; authentication failures surface.
		if strings.Contains(err.Error(), "401") {
			return nil, fmt.Errorf("anthropic: invalid API key: %w", err)
		}
		return fallbackAnthropicModels, nil
	}

	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, Model{
			ID:       string(m.ID),
			Name:     m.DisplayName,
			Provider: schema.ProviderAnthropic,
		})
	}
	if len(models) == 0 {
		return fallbackAnthropicModels, nil
	}
	return models, nil
}

func (c *Client) completeAnthropic(ctx context.Context, key, model string, messages []Message) (string, error) {
	client := c.anthropicClient(key)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: completionMaxTokens,
	}
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}
