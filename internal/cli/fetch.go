package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"unirag/internal/adapter/fetcher"
)

var (
	fetchURLs []string
	fetchJSON bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrape the live pages under the character budget",
	Long: `Fetch the configured university pages (or --url overrides) and print how
much text each contributed to the live context.

Examples:
  unirag fetch
  unirag fetch --url https://mzu.edu.in/contact-us/ --json`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringSliceVar(&fetchURLs, "url", nil, "page to fetch (repeatable, default from config)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "output documents as JSON")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	urls := cfg.Live.URLs
	if len(fetchURLs) > 0 {
		urls = fetchURLs
	}

	f := fetcher.New(fetcher.OptionsFromConfig(cfg.Live), &http.Client{}, logger)
	docs := f.Fetch(cmd.Context(), urls)

	if fetchJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	total := 0
	for _, d := range docs {
		n := utf8.RuneCountInString(d.Text)
		total += n
		status := "ok"
		switch {
		case n == 0:
			status = "empty"
		case d.Truncated:
			status = "truncated"
		}
		fmt.Printf("%-9s %6d  %s\n", status, n, d.URL)
	}
	fmt.Printf("\n%d of %d URLs returned, %d/%d characters used\n", len(docs), len(urls), total, cfg.Live.CharBudget)
	return nil
}
