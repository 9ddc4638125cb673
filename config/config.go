// Package config loads and validates the application configuration from the
// environment.
package config

import (
	"os"
	"strconv"
)

// Config is the application configuration. Every field has an ASKDATA_*
// environment variable; FromEnv applies defaults for anything unset.
type Config struct {
	// DocsDir is the directory of markdown policy documents to index.
	DocsDir string

	// DBDriver selects the SQL driver: "duckdb" or "postgres".
	DBDriver string
	// DBDSN is the driver-specific connection string.
	DBDSN string

	// Provider selects the reasoning backend: openai, claude, ollama, or
	// rules (the deterministic responder, also the fallback for the rest).
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// TopK is how many fragments retrieval returns per question.
	TopK int
	// Concurrency bounds parallel question evaluation in batch mode.
	Concurrency int

	// RunLog selects where run records go: memory, redis, or mongo.
	RunLog    string
	RedisAddr string
	MongoURI  string

	// DisableTelemetry turns off trace export.
	DisableTelemetry bool
}

// FromEnv builds a Config from ASKDATA_* environment variables with defaults.
func FromEnv() Config {
	return Config{
		DocsDir:          envOr("ASKDATA_DOCS_DIR", "docs"),
		DBDriver:         envOr("ASKDATA_DB_DRIVER", "duckdb"),
		DBDSN:            envOr("ASKDATA_DB_DSN", "northwind.duckdb"),
		Provider:         envOr("ASKDATA_PROVIDER", "rules"),
		Model:            os.Getenv("ASKDATA_MODEL"),
		BaseURL:          os.Getenv("ASKDATA_BASE_URL"),
		APIKey:           os.Getenv("ASKDATA_API_KEY"),
		TopK:             envIntOr("ASKDATA_TOP_K", 3),
		Concurrency:      envIntOr("ASKDATA_CONCURRENCY", 4),
		RunLog:           envOr("ASKDATA_RUNLOG", "memory"),
		RedisAddr:        envOr("ASKDATA_REDIS_ADDR", "localhost:6379"),
		MongoURI:         envOr("ASKDATA_MONGO_URI", "mongodb://localhost:27017"),
		DisableTelemetry: os.Getenv("ASKDATA_DISABLE_TELEMETRY") == "true",
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("docsDir", c.DocsDir)
	v.ValidateOneOf("dbDriver", c.DBDriver, "duckdb", "postgres")
	v.RequireNonEmpty("dbDSN", c.DBDSN)
	v.ValidateOneOf("provider", c.Provider, "openai", "claude", "ollama", "rules")
	v.RequirePositive("topK", c.TopK)
	v.ValidateRange("concurrency", c.Concurrency, 1, 64)
	v.ValidateOneOf("runLog", c.RunLog, "memory", "redis", "mongo")
	if c.RunLog == "redis" {
		v.RequireNonEmpty("redisAddr", c.RedisAddr)
	}
	if c.RunLog == "mongo" {
		v.RequireNonEmpty("mongoURI", c.MongoURI)
	}
	return v.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
