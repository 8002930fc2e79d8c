package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchK       int
	searchFilters []string
	searchScores  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the review corpus",
	Long: `Run a hybrid search over the indexed review corpus.

Examples:
  # Top 4 passages about ride comfort
  carqa search "ride comfort on long trips"

  # Restrict to one car, with fused scores
  carqa search --filter make=bmw --filter model=m5 --scores "fuel economy"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top", "k", 4, "number of results")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata filter as key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchScores, "scores", false, "print fused relevance scores")
}

// parseFilters turns repeated key=value flags into a metadata filter.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", pair)
		}
		filter[strings.ToLower(key)] = strings.ToLower(value)
	}
	return filter, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")

	if searchScores {
		results, err := a.store.SearchWithScores(cmd.Context(), query, searchK, filter)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		for i, r := range results {
			fmt.Printf("%d. [%.4f] %s %s %s\n%s\n\n", i+1, r.Score,
				r.Document.Metadata["model_year"],
				r.Document.Metadata["make"],
				r.Document.Metadata["model"],
				r.Document.Content,
			)
		}
		return nil
	}

	docs, err := a.store.Search(cmd.Context(), query, searchK, filter)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	for i, d := range docs {
		fmt.Printf("%d. %s %s %s\n%s\n\n", i+1,
			d.Metadata["model_year"],
			d.Metadata["make"],
			d.Metadata["model"],
			d.Content,
		)
	}
	return nil
}
