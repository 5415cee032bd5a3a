package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifestream/lifestream/internal/insight"
	"github.com/lifestream/lifestream/internal/memory"
	"github.com/lifestream/lifestream/internal/miner"
	"github.com/lifestream/lifestream/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	st, storeDesc, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	oracle := optionalOracle(cfg)
	if oracle != nil {
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	g := optionalGraph(ctx, cfg)
	if g != nil {
		defer g.Close(context.Background())
		fmt.Fprintf(os.Stderr, "  graph: %s\n", cfg.Graph.Neo4jURI)
	}

	var synth *insight.Synthesizer
	if oracle != nil {
		synth = &insight.Synthesizer{Oracle: oracle, Graph: g, Store: st, Model: cfg.LLM.Model}
	}

	runner := miner.New(st, synth, cfg.Miner)
	runner.StartTimer()
	defer runner.Stop()

	eng := memory.New(st, g, oracle)

	srv := server.New(st, eng, runner, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lifestream serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  store: %s\n", storeDesc)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
