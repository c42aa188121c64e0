// Package llm integrates the model providers marxiv can chat with about
// papers. Providers are opaque network collaborators: their errors are
// surfaced to the user as a generic failure and never retried
// automatically.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marxiv/marxiv/internal/schema"
)

// Model describes one selectable chat model.
type Model struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Provider      schema.Provider `json:"provider"`
	ContextWindow int             `json:"contextWindow,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of chat history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client dispatches model listing and chat completion to the provider
// named in each call.
type Client struct {
	http *http.Client
}

// NewClient creates a Client. A nil httpClient uses a 60 second timeout;
// completions can be slow.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{http: httpClient}
}

// ListModels fetches the selectable models for a provider. An empty key
// returns an empty list rather than an error: the picker simply shows
// nothing for unconfigured providers.
func (c *Client) ListModels(ctx context.Context, provider schema.Provider, key string) ([]Model, error) {
	if key == "" {
		return nil, nil
	}

	switch provider {
	case schema.ProviderAnthropic:
		return c.listAnthropicModels(ctx, key)
	case schema.ProviderOpenAI:
		return c.listOpenAIModels(ctx, key)
	case schema.ProviderOpenRouter:
		return c.listOpenRouterModels(ctx, key)
	case schema.ProviderGoogle:
		return c.listGoogleModels(ctx, key)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// Complete sends the message history to the provider and returns the
// single text completion.
func (c *Client) Complete(ctx context.Context, provider schema.Provider, key, model string, messages []Message) (string, error) {
	if key == "" {
		return "", fmt.Errorf("no API key configured for %s", provider)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("message history is empty")
	}

	switch provider {
	case schema.ProviderAnthropic:
		return c.completeAnthropic(ctx, key, model, messages)
	case schema.ProviderOpenAI:
		return c.completeOpenAI(ctx, key, model, messages)
	case schema.ProviderOpenRouter:
		return c.completeOpenRouter(ctx, key, model, messages)
	case schema.ProviderGoogle:
		return c.completeGoogle(ctx, key, model, messages)
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
}
