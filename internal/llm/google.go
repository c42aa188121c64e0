package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/marxiv/marxiv/internal/schema"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func (c *Client) listGoogleModels(ctx context.Context, key string) ([]Model, error) {
	// Google authenticates with a query parameter, not a header.
	u := fmt.Sprintf("%s/models?key=%s", googleBaseURL, url.QueryEscape(key))

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			Description                string   `json:"description"`
			InputTokenLimit            int      `json:"inputTokenLimit"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, u, "", nil, &payload); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	var models []Model
	for _, m := range payload.Models {
		if !supportsGeneration(m.SupportedGenerationMethods) || strings.Contains(m.Name, "embedding") {
			continue
		}
		models = append(models, Model{
			ID:            strings.TrimPrefix(m.Name, "models/"),
			Name:          m.DisplayName,
			Provider:      schema.ProviderGoogle,
			ContextWindow: m.InputTokenLimit,
			Description:   m.Description,
		})
	}
	return models, nil
}

func (c *Client) completeGoogle(ctx context.Context, key, model string, messages []Message) (string, error) {
	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", googleBaseURL, url.PathEscape(model), url.QueryEscape(key))

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}
	reqBody := struct {
		Contents []content `json:"contents"`
	}{}
	for _, m := range messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		reqBody.Contents = append(reqBody.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("google: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("google: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google: API error: %s", resp.Status)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []part `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("google: failed to parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("google: response contained no candidates")
	}

	var out strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}

func supportsGeneration(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}
