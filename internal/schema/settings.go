package schema

import "fmt"

// Logical setting names. Every setting is a single JSON value stored under
// one of these keys; composite values (the credential list) are replaced
// wholesale on write, never merged.
const (
	KeyTheme          = "theme"
	KeyFont           = "font"
	KeyAPICredentials = "apiCredentials"
	KeyDefaultModel   = "defaultModel"
)

// Default appearance used before any durable state has loaded.
const (
	DefaultTheme = "research"
	DefaultFont  = "research"
)

// Provider identifies a model API vendor. The set is fixed; at most one
// credential is stored per provider.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGoogle     Provider = "google"
)

// Providers lists all known providers in display order.
func Providers() []Provider {
	return []Provider{ProviderAnthropic, ProviderOpenAI, ProviderOpenRouter, ProviderGoogle}
}

// ValidProvider reports whether p is one of the known providers.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOpenRouter, ProviderGoogle:
		return true
	}
	return false
}

// APICredential is a (provider, secret key) pair. Keys are stored in the
// clear; encrypting them is an explicit non-goal of the local store.
type APICredential struct {
	Provider Provider `json:"provider"`
	Key      string   `json:"key"`
}

// Validate checks the credential's provider against the fixed set.
func (c *APICredential) Validate() error {
	if !ValidProvider(c.Provider) {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// ReplaceCredential returns creds with the entry for cred.Provider replaced,
// or appended if the provider had no entry yet. The input slice is not
// modified.
func ReplaceCredential(creds []APICredential, cred APICredential) []APICredential {
	out := make([]APICredential, 0, len(creds)+1)
	replaced := false
	for _, c := range creds {
		if c.Provider == cred.Provider {
			out = append(out, cred)
			replaced = true
			continue
		}
		out = append(out, c)
	}
	if !replaced {
		out = append(out, cred)
	}
	return out
}
