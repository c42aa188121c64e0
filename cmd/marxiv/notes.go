package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marxiv/marxiv/internal/schema"
	"github.com/marxiv/marxiv/internal/store"
	"github.com/marxiv/marxiv/internal/theme"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage per-paper notes",
}

var notesAddCmd = &cobra.Command{
	Use:   "add <paper-id> <content>",
	Short: "Attach a note to a paper",
	Long: `Attach a note to a paper. The paper's title is fetched from arXiv
unless --title is given.

Example usage:
  marxiv notes add 2103.12345 "Compare against section 4 baselines"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		paperID, content := args[0], args[1]
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			client := newArxivClient(a.cfg)
			paper, err := client.GetByID(cmd.Context(), paperID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot resolve paper title (pass --title to skip lookup): %v\n", err)
				os.Exit(1)
			}
			title = paper.Title
		}

		note, err := a.facade.AddNote(cmd.Context(), paperID, title, content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added note %s to %s\n", note.ID, paperID)
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list [paper-id]",
	Short: "List notes for one paper, or all papers with notes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		s := theme.Active()

		if len(args) == 1 {
			paper, err := a.store.GetPaperNotesContext(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println(s.Muted.Render("No notes for this paper."))
				return
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printPaperNotes(paper)
			return
		}

		offset, _ := cmd.Flags().GetInt("offset")
		limit, _ := cmd.Flags().GetInt("limit")
		papers, total, err := a.store.ListPaperNotesContext(cmd.Context(), offset, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(papers) == 0 {
			fmt.Println(s.Muted.Render("No notes yet."))
			return
		}
		for _, paper := range papers {
			printPaperNotes(paper)
			fmt.Println()
		}
		fmt.Println(s.Divider.Render(fmt.Sprintf("%d notes total", total)))
	},
}

var notesUpdateCmd = &cobra.Command{
	Use:   "update <paper-id> <note-id> <content>",
	Short: "Replace a note's content",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := a.facade.UpdateNote(cmd.Context(), args[0], args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Updated.")
	},
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete <paper-id> <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := a.facade.DeleteNote(cmd.Context(), args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Deleted.")
	},
}

var notesReorderCmd = &cobra.Command{
	Use:   "reorder <paper-id> <note-id>...",
	Short: "Reorder a paper's notes",
	Long: `Reorder a paper's notes. Every existing note id must appear exactly
once; the new order is the argument order.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		paperID := args[0]
		paper, err := a.store.GetPaperNotesContext(cmd.Context(), paperID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		byID := make(map[string]schema.Note, len(paper.Notes))
		for _, n := range paper.Notes {
			byID[n.ID] = n
		}
		ordered := make([]schema.Note, 0, len(args)-1)
		for _, id := range args[1:] {
			n, ok := byID[id]
			if !ok {
				fmt.Fprintf(os.Stderr, "Error: unknown note id %s\n", id)
				os.Exit(1)
			}
			ordered = append(ordered, n)
		}

		if err := a.store.ReorderNotesContext(cmd.Context(), paperID, ordered); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Reordered.")
	},
}

func printPaperNotes(paper *schema.PaperNote) {
	s := theme.Active()
	title := paper.PaperTitle
	if title == "" {
		title = paper.PaperID
	}
	fmt.Printf("%s %s\n", s.Title.Render(title), s.Muted.Render("("+paper.PaperID+")"))
	for i, n := range paper.Notes {
		created := time.UnixMilli(n.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("  %d. %s\n", i+1, n.Content)
		fmt.Printf("     %s\n", s.Muted.Render(fmt.Sprintf("%s  %s", n.ID, created)))
	}
}

func init() {
	notesAddCmd.Flags().String("title", "", "paper title (skips the arXiv lookup)")
	notesListCmd.Flags().Int("offset", 0, "paper offset for paging")
	notesListCmd.Flags().Int("limit", 0, "max papers to list (0 = all)")
	notesCmd.AddCommand(notesAddCmd)
	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesUpdateCmd)
	notesCmd.AddCommand(notesDeleteCmd)
	notesCmd.AddCommand(notesReorderCmd)
	rootCmd.AddCommand(notesCmd)
}
