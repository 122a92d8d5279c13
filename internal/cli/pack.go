package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"unirag/internal/usecase"
)

var (
	packQuery  string
	packBudget int
	packOutput string
	packTopK   int
	packRender bool
	packNoLive bool
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Assemble the bounded context for a question",
	Long: `Retrieve offline chunks and fetch live pages, then assemble the bounded
context exactly as it would be sent to the LLM, without calling it.

Use --render to print the final system and user prompts instead of JSON.

Examples:
  unirag pack -q "hostel refund policy"
  unirag pack -q "exam results" -b 6000 -o context.json
  unirag pack -q "library timings" --no-live --render`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packQuery, "query", "q", "", "question (required)")
	packCmd.Flags().IntVarP(&packBudget, "budget", "b", 0, "character budget (default from config)")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output file (default: stdout)")
	packCmd.Flags().IntVarP(&packTopK, "top-k", "k", 0, "offline chunks to retrieve (default from config)")
	packCmd.Flags().BoolVar(&packRender, "render", false, "print the rendered prompts")
	packCmd.Flags().BoolVar(&packNoLive, "no-live", false, "skip live page fetching")
	packCmd.MarkFlagRequired("query")
}

func runPack(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if packBudget > 0 {
		cfg.Pack.CharBudget = packBudget
	}
	if packNoLive {
		cfg.Live.URLs = nil
	}

	p, err := newPipeline(cfg, "", logger)
	if err != nil {
		return err
	}

	topK := cfg.Retrieve.TopK
	if packTopK > 0 {
		topK = packTopK
	}

	ans, err := p.answers.Prepare(cmd.Context(), usecase.AnswerRequest{Query: packQuery, K: topK})
	if err != nil {
		return err
	}

	var output []byte
	if packRender {
		for _, m := range ans.Prompt {
			output = append(output, fmt.Sprintf("=== %s ===\n%s\n\n", m.Role, m.Content)...)
		}
	} else {
		output, err = json.MarshalIndent(ans.Context, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal context: %w", err)
		}
	}

	if packOutput != "" {
		if err := os.WriteFile(packOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Context written to %s (%d offline chunks, %d live documents)\n",
			packOutput, len(ans.Offline), len(ans.Live))
		return nil
	}

	fmt.Println(string(output))
	return nil
}
