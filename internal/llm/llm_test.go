package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/marxiv/marxiv/internal/schema"
)

func TestListModelsWithoutKey(t *testing.T) {
	c := NewClient(nil)

	// No key means no models, not an error: the UI renders an empty list.
	models, err := c.ListModels(context.Background(), schema.ProviderAnthropic, "")
	if err != nil {
		t.Fatalf("Expected nil error for empty key, got %v", err)
	}
	if models != nil {
		t.Errorf("Expected nil models for empty key, got %v", models)
	}
}

func TestListModelsUnknownProvider(t *testing.T) {
	c := NewClient(nil)
	if _, err := c.ListModels(context.Background(), "frontier-llc", "sk-test"); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestCompleteUnknownProvider(t *testing.T) {
	c := NewClient(nil)
	_, err := c.Complete(context.Background(), "frontier-llc", "sk-test", "model", []Message{
		{Role: RoleUser, Content: "hi"},
	})
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestFallbackAnthropicModels(t *testing.T) {
	if len(fallbackAnthropicModels) == 0 {
		t.Fatal("Expected a non-empty fallback list")
	}
	for _, m := range fallbackAnthropicModels {
		if m.Provider != schema.ProviderAnthropic {
			t.Errorf("Fallback model %s has provider %s", m.ID, m.Provider)
		}
		if !strings.HasPrefix(m.ID, "claude") {
			t.Errorf("Unexpected fallback model id %s", m.ID)
		}
	}
}
