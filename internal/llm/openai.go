package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/marxiv/marxiv/internal/schema"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// chatRequest is the OpenAI-compatible completion payload, shared by the
// openai and openrouter providers.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) listOpenAIModels(ctx context.Context, key string) ([]Model, error) {
	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, openAIBaseURL+"/models", key, nil, &payload); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	var models []Model
	for _, m := range payload.Data {
		// The listing includes embeddings, audio and image models;
		// keep the chat families.
		if !strings.HasPrefix(m.ID, "gpt") && !strings.HasPrefix(m.ID, "o1") && !strings.HasPrefix(m.ID, "o3") {
			continue
		}
		models = append(models, Model{ID: m.ID, Name: m.ID, Provider: schema.ProviderOpenAI})
	}
	// Newest first, by the rough heuristic of reverse id order.
	sort.Slice(models, func(i, j int) bool { return models[i].ID > models[j].ID })
	return models, nil
}

func (c *Client) listOpenRouterModels(ctx context.Context, key string) ([]Model, error) {
	var payload struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int    `json:"context_length"`
			Description   string `json:"description"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, openRouterBaseURL+"/models", key, nil, &payload); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}

	models := make([]Model, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, Model{
			ID:            m.ID,
			Name:          m.Name,
			Provider:      schema.ProviderOpenRouter,
			ContextWindow: m.ContextLength,
			Description:   m.Description,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func (c *Client) completeOpenAI(ctx context.Context, key, model string, messages []Message) (string, error) {
	return c.completeChat(ctx, openAIBaseURL+"/chat/completions", key, model, messages, "openai")
}

func (c *Client) completeOpenRouter(ctx context.Context, key, model string, messages []Message) (string, error) {
	return c.completeChat(ctx, openRouterBaseURL+"/chat/completions", key, model, messages, "openrouter")
}

// completeChat posts to an OpenAI-compatible chat completion endpoint.
func (c *Client) completeChat(ctx context.Context, url, key, model string, messages []Message, provider string) (string, error) {
	reqBody := chatRequest{Model: model}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: API error: %s", provider, resp.Status)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%s: failed to parse response: %w", provider, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: response contained no choices", provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

// getJSON performs an authorized GET and decodes the JSON response.
// Extra headers (openrouter attribution) may be nil.
func (c *Client) getJSON(ctx context.Context, url, key string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
