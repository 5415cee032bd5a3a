package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lifestream/lifestream/internal/memory"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <user-id> <question...>",
	Short: "Ask a natural-language question about your history",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	st, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	g := optionalGraph(ctx, cfg)
	if g != nil {
		defer g.Close(context.Background())
	}

	eng := memory.New(st, g, optionalOracle(cfg))
	answer, err := eng.Query(ctx, memory.Question{
		UserID:           args[0],
		Question:         strings.Join(args[1:], " "),
		IncludeReasoning: true,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Println(answer.Answer)
	if answer.Reasoning != "" {
		fmt.Printf("\nreasoning: %s\n", answer.Reasoning)
	}
	fmt.Printf("confidence: %.2f (%d events)\n", answer.Confidence, answer.EventsAnalyzed)
	return nil
}
