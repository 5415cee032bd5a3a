package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifestream/lifestream/internal/insight"
	"github.com/lifestream/lifestream/internal/miner"
)

var mineDaysBack int

var mineCmd = &cobra.Command{
	Use:   "mine <user-id>",
	Short: "Run pattern analysis for one user",
	Args:  cobra.ExactArgs(1),
	RunE:  runMine,
}

func init() {
	mineCmd.Flags().IntVar(&mineDaysBack, "days", 30, "days of history to analyze")
}

func runMine(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	st, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	oracle := optionalOracle(cfg)
	g := optionalGraph(ctx, cfg)
	if g != nil {
		defer g.Close(context.Background())
	}

	var synth *insight.Synthesizer
	if oracle != nil {
		synth = &insight.Synthesizer{Oracle: oracle, Graph: g, Store: st, Model: cfg.LLM.Model}
	}

	runner := miner.New(st, synth, cfg.Miner)
	result, err := runner.RunAnalysis(ctx, args[0], mineDaysBack)
	if err != nil {
		return fmt.Errorf("mine: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
