package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marxiv/marxiv/internal/arxiv"
	"github.com/marxiv/marxiv/internal/theme"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search arXiv for papers",
	Long: `Search arXiv. Bare terms are ANDed together; quote phrases for
exact matches.

Example usage:
  marxiv search attention transformers
  marxiv search "sparse autoencoders" --since "last week"
  marxiv search --category cs.LG --start 10`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		category, _ := cmd.Flags().GetString("category")
		since, _ := cmd.Flags().GetString("since")
		start, _ := cmd.Flags().GetInt("start")
		maxResults, _ := cmd.Flags().GetInt("max-results")
		if maxResults <= 0 {
			maxResults = a.cfg.PageSize
		}

		var query string
		switch {
		case category != "":
			query = arxiv.CategoryQuery(category)
		case len(args) > 0:
			query = strings.Join(args, " ")
		default:
			fmt.Fprintln(os.Stderr, "Error: provide search terms or --category")
			os.Exit(1)
		}

		if since != "" {
			filter, err := arxiv.SinceFilter(since, time.Now())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot parse --since %q: %v\n", since, err)
				os.Exit(1)
			}
			query = arxiv.WithSince(query, filter)
		}

		client := newArxivClient(a.cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.HTTP.Timeout)
		defer cancel()

		resp, err := client.Search(ctx, query, start, maxResults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
			os.Exit(1)
		}

		printResults(resp, start)
	},
}

var paperCmd = &cobra.Command{
	Use:   "paper <arxiv-id>",
	Short: "Show one paper by arXiv id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		a.facade.Load(cmd.Context())

		client := newArxivClient(a.cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.HTTP.Timeout)
		defer cancel()

		paper, err := client.GetByID(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		s := theme.Active()
		fmt.Println(s.Title.Render(paper.Title))
		fmt.Println(s.Muted.Render(strings.Join(paper.Authors, ", ")))
		fmt.Printf("%s  %s\n", s.Accent.Render(paper.ShortID), paper.Category)
		if paper.PDFLink != "" {
			fmt.Println(s.Muted.Render(paper.PDFLink))
		}
		fmt.Println()
		fmt.Println(paper.Summary)
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List browseable arXiv categories",
	Run: func(cmd *cobra.Command, args []string) {
		sections, err := arxiv.Sections()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		s := theme.Active()
		for _, section := range sections {
			fmt.Println(s.Title.Render(section.Title))
			for _, c := range section.Categories {
				fmt.Printf("  %s  %s\n", s.Accent.Render(c.ID), c.Name)
			}
		}
	},
}

func printResults(resp *arxiv.Response, start int) {
	s := theme.Active()
	if len(resp.Papers) == 0 {
		fmt.Println(s.Muted.Render("No results."))
		return
	}
	for i, p := range resp.Papers {
		fmt.Printf("%s %s\n", s.Muted.Render(fmt.Sprintf("%3d.", start+i+1)), s.Title.Render(p.Title))
		fmt.Printf("     %s\n", s.Muted.Render(strings.Join(p.Authors, ", ")))
		fmt.Printf("     %s  %s  %s\n", s.Accent.Render(p.ShortID), p.Category, p.Published.Format("2006-01-02"))
	}
	fmt.Println()
	fmt.Println(s.Divider.Render(fmt.Sprintf("Showing %d-%d of %d", start+1, start+len(resp.Papers), resp.TotalResults)))
}

func init() {
	searchCmd.Flags().String("category", "", "browse a category instead of searching (e.g. cs.LG)")
	searchCmd.Flags().String("since", "", `only papers submitted after a natural-language time ("3 days ago")`)
	searchCmd.Flags().Int("start", 0, "result offset for paging")
	searchCmd.Flags().Int("max-results", 0, "results per page (default from config)")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(paperCmd)
	rootCmd.AddCommand(categoriesCmd)
}
