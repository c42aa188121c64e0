package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marxiv/marxiv/internal/llm"
	"github.com/marxiv/marxiv/internal/schema"
	"github.com/marxiv/marxiv/internal/theme"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List chat models available with your stored API keys",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		state := a.facade.State()
		if len(state.Credentials) == 0 {
			fmt.Fprintln(os.Stderr, "No API keys stored. Add one with: marxiv settings set-key <provider>")
			os.Exit(1)
		}

		client := llm.NewClient(&http.Client{Timeout: a.cfg.HTTP.Timeout})
		s := theme.Active()
		for _, cred := range state.Credentials {
			models, err := client.ListModels(cmd.Context(), cred.Provider, cred.Key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", cred.Provider, err)
				continue
			}
			fmt.Println(s.Title.Render(string(cred.Provider)))
			for _, m := range models {
				marker := " "
				if m.ID == state.DefaultModel {
					marker = "*"
				}
				line := fmt.Sprintf("%s %s", marker, m.ID)
				if m.Name != "" && m.Name != m.ID {
					line += "  " + s.Muted.Render(m.Name)
				}
				fmt.Println(line)
			}
		}
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Chat with a model about a paper",
	Long: `Chat with a model. With --paper, the paper's title and abstract are
prepended as context. With no prompt arguments, reads prompts
interactively until EOF.

Example usage:
  marxiv chat --paper 2103.12345 "Summarize the main contribution"
  marxiv chat "What is a sparse autoencoder?"`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		state := a.facade.State()
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = state.DefaultModel
		}
		if model == "" {
			fmt.Fprintln(os.Stderr, "Error: no model selected; pass --model or set a default with: marxiv settings set model <id>")
			os.Exit(1)
		}

		provider, key, err := credentialForModel(state.Credentials, model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var history []llm.Message
		if paperID, _ := cmd.Flags().GetString("paper"); paperID != "" {
			paper, err := newArxivClient(a.cfg).GetByID(cmd.Context(), paperID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			intro := fmt.Sprintf("We are discussing the paper %q (arXiv:%s).\n\nAbstract:\n%s",
				paper.Title, paper.ShortID, paper.Summary)
			history = append(history,
				llm.Message{Role: llm.RoleUser, Content: intro},
				llm.Message{Role: llm.RoleAssistant, Content: "Understood. What would you like to know about this paper?"},
			)
		}

		client := llm.NewClient(&http.Client{Timeout: a.cfg.HTTP.Timeout})
		s := theme.Active()

		ask := func(prompt string) {
			history = append(history, llm.Message{Role: llm.RoleUser, Content: prompt})
			reply, err := client.Complete(cmd.Context(), provider, key, model, history)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: reply})
			fmt.Println(reply)
		}

		if len(args) > 0 {
			ask(strings.Join(args, " "))
			return
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(s.Accent.Render("> "))
			if !scanner.Scan() {
				fmt.Println()
				return
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			ask(line)
		}
	},
}

// credentialForModel picks the stored key whose provider serves the model
// id, falling back to the first stored key when the id is ambiguous.
func credentialForModel(creds []schema.APICredential, model string) (schema.Provider, string, error) {
	if len(creds) == 0 {
		return "", "", fmt.Errorf("no API keys stored; add one with: marxiv settings set-key <provider>")
	}

	var want schema.Provider
	switch {
	case strings.HasPrefix(model, "claude"):
		want = schema.ProviderAnthropic
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		want = schema.ProviderOpenAI
	case strings.HasPrefix(model, "gemini"):
		want = schema.ProviderGoogle
	case strings.Contains(model, "/"):
		want = schema.ProviderOpenRouter
	}

	if want != "" {
		for _, c := range creds {
			if c.Provider == want {
				return c.Provider, c.Key, nil
			}
		}
		return "", "", fmt.Errorf("no API key stored for %s (model %s)", want, model)
	}
	return creds[0].Provider, creds[0].Key, nil
}

func init() {
	chatCmd.Flags().String("model", "", "model id (default from settings)")
	chatCmd.Flags().String("paper", "", "arXiv id to load as conversation context")
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(chatCmd)
}
