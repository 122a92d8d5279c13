package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"unirag/internal/usecase"
)

var (
	askQuery string
	askTopK  int
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one question",
	Long: `Retrieve offline context, scrape the live pages, and ask the LLM once.
LLM failures print the configured apology instead of an error.

Examples:
  unirag ask -q "What is the hostel refund policy?"
  unirag ask -q "Who is the registrar?" -k 5 --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "offline chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answer, trace and sources as JSON")
	askCmd.MarkFlagRequired("query")
}

type askOutput struct {
	Answer  string                      `json:"answer"`
	State   string                      `json:"state"`
	Trace   []string                    `json:"trace"`
	Offline []usecase.ScoredChunkResult `json:"offline"`
	Live    []string                    `json:"live_urls"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := newPipeline(cfg, "", logger)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	ans, err := p.answers.Answer(cmd.Context(), usecase.AnswerRequest{Query: askQuery, K: topK})
	if err != nil {
		return err
	}

	if !askJSON {
		fmt.Println(ans.Text)
		return nil
	}

	out := askOutput{
		Answer:  ans.Text,
		State:   ans.State.String(),
		Offline: usecase.ToResults(ans.Offline),
	}
	for _, s := range ans.Trace {
		out.Trace = append(out.Trace, s.String())
	}
	for _, d := range ans.Live {
		if d.Text != "" {
			out.Live = append(out.Live, d.URL)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
