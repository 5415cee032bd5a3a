package config

import "fmt"

// Config holds all lifestream configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Graph    GraphConfig    `toml:"graph"`
	Miner    MinerConfig    `toml:"miner"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	// Driver selects the event store backend: "sqlite" or "clickhouse".
	Driver string `toml:"driver"`
	Path   string `toml:"path"` // sqlite file, resolved at runtime when empty

	ClickHouseAddr     string `toml:"clickhouse_addr"` // host:9000
	ClickHouseDatabase string `toml:"clickhouse_database"`
	ClickHouseUser     string `toml:"clickhouse_user"`
	ClickHousePassword string `toml:"clickhouse_password"`
}

type LLMConfig struct {
	Provider     string `toml:"provider"` // "anthropic", "ollama"
	Model        string `toml:"model"`
	OllamaURL    string `toml:"ollama_url"`
	OllamaModel  string `toml:"ollama_model"`
	AnthropicKey string `toml:"anthropic_key"`

	// TimeoutSeconds bounds one completion round trip.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// MaxTokens caps the completion length.
	MaxTokens int `toml:"max_tokens"`
	// Temperature; mining and answering both want low-variance output.
	Temperature float64 `toml:"temperature"`
}

type GraphConfig struct {
	// Neo4jURI enables the knowledge graph writer when set, e.g.
	// "bolt://localhost:7687". Empty disables graph persistence.
	Neo4jURI      string `toml:"neo4j_uri"`
	Neo4jUser     string `toml:"neo4j_user"`
	Neo4jPassword string `toml:"neo4j_password"`
}

type MinerConfig struct {
	// IntervalHours is how often the background miner sweeps active
	// users. Zero disables the timer.
	IntervalHours int `toml:"interval_hours"`
	// DaysBack is the analysis window per run.
	DaysBack int `toml:"days_back"`
	// Eps is the DBSCAN neighborhood radius in meters.
	Eps float64 `toml:"eps_meters"`
	// MinClusterSize is the DBSCAN core-point threshold.
	MinClusterSize int `toml:"min_cluster_size"`
	// MinOccurrences gates routine patterns.
	MinOccurrences int `toml:"min_occurrences"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Database: DatabaseConfig{
			Driver:             "sqlite",
			ClickHouseDatabase: "lifestream",
			ClickHouseUser:     "default",
		},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "claude-haiku-4-5-20251001",
			TimeoutSeconds: 120,
			MaxTokens:      2048,
			Temperature:    0.3,
		},
		Miner: MinerConfig{
			IntervalHours:  24,
			DaysBack:       30,
			Eps:            100,
			MinClusterSize: 5,
			MinOccurrences: 5,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
