package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/lifestream/lifestream/internal/config"
	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/llm"
	"github.com/lifestream/lifestream/internal/store"
)

// loadConfig applies environment overrides on top of the defaults.
func loadConfig() config.Config {
	cfg := config.Default()

	if v := os.Getenv("LIFESTREAM_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		cfg.Database.Driver = "clickhouse"
		cfg.Database.ClickHouseAddr = v
	}
	if v := os.Getenv("CLICKHOUSE_DATABASE"); v != "" {
		cfg.Database.ClickHouseDatabase = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		cfg.Database.ClickHouseUser = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.Database.ClickHousePassword = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.OllamaURL = v
	}

	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Graph.Neo4jURI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Graph.Neo4jUser = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Graph.Neo4jPassword = v
	}

	return cfg
}

// openStore opens the configured event store backend.
func openStore(ctx context.Context, cfg config.Config) (store.EventStore, string, error) {
	switch cfg.Database.Driver {
	case "clickhouse":
		ch, err := store.OpenClickHouse(ctx, store.ClickHouseOptions{
			Addr:     cfg.Database.ClickHouseAddr,
			Database: cfg.Database.ClickHouseDatabase,
			Username: cfg.Database.ClickHouseUser,
			Password: cfg.Database.ClickHousePassword,
		})
		if err != nil {
			return nil, "", fmt.Errorf("open clickhouse: %w", err)
		}
		return ch, "clickhouse " + cfg.Database.ClickHouseAddr, nil
	case "", "sqlite":
		path := cfg.Database.Path
		if path == "" {
			var err error
			path, err = store.DefaultDBPath()
			if err != nil {
				return nil, "", fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open database: %w", err)
		}
		return db, path, nil
	default:
		return nil, "", fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}
}

// optionalOracle creates the LLM client, or nil with a stderr warning.
func optionalOracle(cfg config.Config) llm.Client {
	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), insights and answer synthesis disabled\n", err)
		return nil
	}
	return client
}

// optionalGraph connects to Neo4j when configured, or returns nil.
func optionalGraph(ctx context.Context, cfg config.Config) graph.Graph {
	if cfg.Graph.Neo4jURI == "" {
		return nil
	}
	g, err := graph.OpenNeo4j(ctx, cfg.Graph.Neo4jURI, cfg.Graph.Neo4jUser, cfg.Graph.Neo4jPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: graph unavailable (%v), habit persistence and people enrichment disabled\n", err)
		return nil
	}
	return g
}
