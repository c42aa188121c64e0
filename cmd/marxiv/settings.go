package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marxiv/marxiv/internal/schema"
	"github.com/marxiv/marxiv/internal/theme"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		state := a.facade.State()
		s := theme.Active()
		fmt.Printf("%s %s\n", s.Muted.Render("theme:"), state.Theme)
		fmt.Printf("%s  %s\n", s.Muted.Render("font:"), state.Font)
		model := state.DefaultModel
		if model == "" {
			model = "(not set)"
		}
		fmt.Printf("%s %s\n", s.Muted.Render("model:"), model)
		for _, c := range state.Credentials {
			fmt.Printf("%s %s (%s)\n", s.Muted.Render("key:"), c.Provider, maskKey(c.Key))
		}
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <theme|font|model> <value>",
	Short: "Change one preference",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		name, value := args[0], args[1]
		switch name {
		case "theme":
			if !slices.Contains(theme.Names(), value) {
				fmt.Fprintf(os.Stderr, "Error: unknown theme %q (available: %s)\n", value, strings.Join(theme.Names(), ", "))
				os.Exit(1)
			}
			a.facade.SetTheme(value)
		case "font":
			if !slices.Contains(theme.FontNames(), value) {
				fmt.Fprintf(os.Stderr, "Error: unknown font %q (available: %s)\n", value, strings.Join(theme.FontNames(), ", "))
				os.Exit(1)
			}
			a.facade.SetFont(value)
		case "model":
			a.facade.SetDefaultModel(value)
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown setting %q\n", name)
			os.Exit(1)
		}
		fmt.Printf("Set %s to %s\n", name, value)
	},
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit preferences interactively",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		state := a.facade.State()
		selectedTheme := state.Theme
		selectedFont := state.Font

		themeOptions := make([]huh.Option[string], 0)
		for _, name := range theme.Names() {
			themeOptions = append(themeOptions, huh.NewOption(name, name))
		}
		fontOptions := make([]huh.Option[string], 0)
		for _, name := range theme.FontNames() {
			fontOptions = append(fontOptions, huh.NewOption(name, name))
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Theme").
					Options(themeOptions...).
					Value(&selectedTheme),
				huh.NewSelect[string]().
					Title("Font").
					Options(fontOptions...).
					Value(&selectedFont),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if selectedTheme != state.Theme {
			a.facade.SetTheme(selectedTheme)
		}
		if selectedFont != state.Font {
			a.facade.SetFont(selectedFont)
		}
		fmt.Println("Saved.")
	},
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key <provider>",
	Short: "Store an API key for a provider",
	Long: `Store an API key for an LLM provider (anthropic, openai, openrouter,
google). The key is read from stdin without echo. One key per provider:
setting a key replaces any existing key for that provider.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		provider := schema.Provider(args[0])

		fmt.Fprintf(os.Stderr, "API key for %s: ", provider)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot read key: %v\n", err)
			os.Exit(1)
		}

		if err := a.facade.SetCredential(provider, strings.TrimSpace(string(raw))); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Stored key for %s\n", provider)
	},
}

// maskKey hides all but the last four characters of a key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 4) + key[len(key)-4:]
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEditCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}
