package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marxiv/marxiv/internal/portable"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export settings and notes to a JSON file",
	Long: `Export the whole library (settings, notes, API keys) to a portable
JSON document. With no file argument a dated name is generated in the
current directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		serializer := portable.New(a.store, a.logger)
		data, err := serializer.Export(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
			os.Exit(1)
		}

		// The export carries notes and credentials, not just settings.
		path := portable.ExportFilename("data", time.Now())
		if len(args) == 1 {
			path = args[0]
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported to %s\n", path)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import settings and notes from an exported JSON file",
	Long: `Import a previously exported document. The current settings and
notes are replaced wholesale; imports are all-or-nothing, so a failed
import leaves the library untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		serializer := portable.New(a.store, a.logger)
		if err := serializer.Import(cmd.Context(), data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: import failed: %v\n", err)
			os.Exit(1)
		}

		// Re-read preferences so side effects reflect the imported values.
		a.facade.Load(cmd.Context())
		fmt.Println("Imported.")
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
