package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"unirag/internal/usecase"
)

var (
	searchText     string
	searchTopK     int
	searchJSON     bool
	searchStrategy string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the offline corpus",
	Long: `Rank offline chunks against a query without fetching pages or calling the LLM.

Examples:
  unirag search -q "hostel fees"
  unirag search -q "admission brochure" --top-k 10 --json
  unirag search -q "library timings" --strategy hybrid`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "", "lexical, vector or hybrid (default from config)")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := newPipeline(cfg, searchStrategy, logger)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	chunks, err := p.retrieve.Retrieve(cmd.Context(), searchText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToResults(chunks)

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s (strategy: %s, terms: %s)\n\n",
		len(results), searchText, p.retrieve.Strategy(), strings.Join(newTokenizer(cfg).Tokenize(searchText), " "))
	for i, r := range results {
		fmt.Printf("--- [%d] %s #%d (score: %.3f) ---\n", i+1, r.Source, r.Sequence, r.Score)
		fmt.Println(preview(r.Text, 500))
		fmt.Println()
	}
	return nil
}

// preview truncates text for display without splitting runes.
func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
